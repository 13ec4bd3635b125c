// Package config provides application configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates all required settings on startup to
// prevent runtime configuration errors.
//
// Configuration is loaded from environment variables with the Load() function,
// which returns a validated Config struct or an error if required variables
// are missing or invalid.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//
//	// Use configuration
//	server := &http.Server{
//	    Addr: ":" + cfg.Server.Port,
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It aggregates all configuration sections into a single struct
// for easy access throughout the application.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	ImgBB     ImgBBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Catalog   CatalogConfig
}

// ServerConfig holds server-specific configuration including port and
// environment.
type ServerConfig struct {
	Port        string
	Environment string
}

// FirebaseConfig holds the identity provider and document store
// configuration. The endpoint URLs default to the public Google endpoints
// and are overridable for emulators and tests.
type FirebaseConfig struct {
	APIKey            string // Web API key passed as ?key= on identity endpoints
	ProjectID         string // Firestore project id
	AuthEndpoint      string // Identity Toolkit base URL
	TokenEndpoint     string // Secure Token base URL (ID token refresh)
	FirestoreEndpoint string // Firestore REST base URL
}

// ImgBBConfig holds the image hosting configuration.
type ImgBBConfig struct {
	APIKey   string // ImgBB API key sent in the upload form body
	Endpoint string // Upload base URL, overridable for tests
}

// RedisConfig holds Redis configuration including connection parameters,
// authentication, database selection, and pool size.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int // Connection pool size
}

// JWTConfig holds gateway token configuration including the signing secret
// and token expiration durations.
type JWTConfig struct {
	Secret        []byte
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration // Refresh token lifetime (default: 7 days)
}

// CORSConfig holds Cross-Origin Resource Sharing (CORS) configuration
// to control which origins can access the API.
type CORSConfig struct {
	AllowedOrigins []string // List of allowed origin URLs
}

// RateLimitConfig holds rate limiting configuration to protect against
// abuse and ensure fair resource usage.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration // Time window for rate limiting (default: 1 minute)
}

// CatalogConfig holds catalog-specific tuning, currently the polling
// interval behind the live product watch stream.
type CatalogConfig struct {
	WatchInterval time.Duration
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present (for local development) but
// doesn't fail if the file is missing (for production deployments).
//
// Required environment variables:
//   - FIREBASE_API_KEY: Identity provider web API key
//   - FIREBASE_PROJECT_ID: Document store project id
//   - IMGBB_API_KEY: Image hosting API key
//   - JWT_SECRET: Secret for gateway token signing (>=32 bytes)
//
// Optional environment variables have sensible defaults.
//
// Returns an error if any required variable is missing or if validation fails.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	firebaseAPIKey, err := getEnvRequired("FIREBASE_API_KEY")
	if err != nil {
		return nil, err
	}

	firebaseProjectID, err := getEnvRequired("FIREBASE_PROJECT_ID")
	if err != nil {
		return nil, err
	}

	imgbbAPIKey, err := getEnvRequired("IMGBB_API_KEY")
	if err != nil {
		return nil, err
	}

	jwtSecret, err := getEnvRequired("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENV", "development"),
		},
		Firebase: FirebaseConfig{
			APIKey:            firebaseAPIKey,
			ProjectID:         firebaseProjectID,
			AuthEndpoint:      getEnv("FIREBASE_AUTH_URL", "https://identitytoolkit.googleapis.com"),
			TokenEndpoint:     getEnv("FIREBASE_TOKEN_URL", "https://securetoken.googleapis.com"),
			FirestoreEndpoint: getEnv("FIRESTORE_URL", "https://firestore.googleapis.com"),
		},
		ImgBB: ImgBBConfig{
			APIKey:   imgbbAPIKey,
			Endpoint: getEnv("IMGBB_URL", "https://api.imgbb.com"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),
		},
		JWT: JWTConfig{
			Secret:        []byte(jwtSecret),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 168*time.Hour), // 7 days
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Catalog: CatalogConfig{
			WatchInterval: getEnvAsDuration("CATALOG_WATCH_INTERVAL", 10*time.Second),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if all required configuration is present and valid.
// It performs comprehensive validation including:
//   - Port numbers are valid integers
//   - Endpoint URLs are properly formatted
//   - JWT secret meets minimum length requirement (32 bytes)
//   - Required upstream credentials are present
//
// This method is called automatically by Load() but can also be called
// independently for testing or validation purposes.
//
// Returns an error describing the first validation failure encountered,
// or nil if all configuration is valid.
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}

	// Validate Redis port
	if _, err := strconv.Atoi(c.Redis.Port); err != nil {
		return fmt.Errorf("redis port must be a valid integer: %w", err)
	}

	// Validate upstream configuration
	if c.Firebase.APIKey == "" {
		return fmt.Errorf("firebase API key is required")
	}
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase project id is required")
	}
	if c.ImgBB.APIKey == "" {
		return fmt.Errorf("imgbb API key is required")
	}

	// Validate endpoint URL formats
	for name, endpoint := range map[string]string{
		"auth":      c.Firebase.AuthEndpoint,
		"token":     c.Firebase.TokenEndpoint,
		"firestore": c.Firebase.FirestoreEndpoint,
		"imgbb":     c.ImgBB.Endpoint,
	} {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return fmt.Errorf("invalid %s endpoint URL: %w", name, err)
		}
	}

	// Validate JWT secret
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}

	// Validate catalog watch interval
	if c.Catalog.WatchInterval <= 0 {
		return fmt.Errorf("catalog watch interval must be positive")
	}

	return nil
}

// Address returns the Redis server address in "host:port" format.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: cfg.Redis.Address(),
//	})
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions for environment variable parsing

// getEnv retrieves an environment variable with a default fallback.
// Returns the environment variable value if set, otherwise returns defaultValue.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired retrieves a required environment variable.
// Returns an error if the variable is not set or is empty.
//
// Use this for configuration that has no sensible default and must be
// explicitly provided by the operator.
func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with a default fallback.
// Supports Go duration format: "300ms", "1.5h", "2h45m", etc.
// If the variable is not set or cannot be parsed, returns defaultValue.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice retrieves an environment variable as a string slice with a default fallback.
// Parses comma-separated values into a slice.
// If the variable is not set, returns defaultValue.
//
// Example:
//
//	// ALLOWED_ORIGINS=http://localhost:3000,https://example.com
//	origins := getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
