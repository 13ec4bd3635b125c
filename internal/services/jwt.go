package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

// TokenStore defines the Redis operations needed by the JWT service:
// refresh token storage and token blacklisting. Abstracted as an interface
// for testing and dependency injection.
type TokenStore interface {
	SetRefreshToken(ctx context.Context, tokenID, userID string, expiry time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (string, error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
	BlacklistToken(ctx context.Context, jti string, expiry time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTService handles gateway token generation, validation, and lifecycle.
// These are the tokens the storefront clients hold; they never see the
// upstream identity provider's tokens, which stay server-side in the
// session record.
//
// It provides:
//   - Token pair generation (access + refresh tokens)
//   - Token validation with blacklist checking
//   - Token refresh with rotation
//   - Token revocation via blacklisting
//
// Tokens use HS256 signing. Refresh tokens are stored in Redis for
// validation, and revoked tokens are blacklisted for their remaining
// lifetime.
type JWTService struct {
	secret        []byte        // Secret key for JWT signing (HS256)
	accessExpiry  time.Duration // Access token lifetime (default: 15 minutes)
	refreshExpiry time.Duration // Refresh token lifetime (default: 7 days)
	store         TokenStore    // Redis for refresh token storage and blacklisting
}

// TokenPair represents a complete authentication token set returned to clients.
// Contains both an access token (for API requests) and a refresh token
// (for obtaining new access tokens when the current one expires).
type TokenPair struct {
	AccessToken  string    `json:"access_token"`  // JWT access token for API authentication
	RefreshToken string    `json:"refresh_token"` // JWT refresh token for token renewal
	ExpiresAt    time.Time `json:"expires_at"`    // Access token expiration time
}

// Claims represents the custom JWT claims embedded in gateway tokens.
// UserID carries the identity provider's uid, SessionID binds the token to
// one Redis session record, and JTI uniquely identifies the token for
// blacklisting.
type Claims struct {
	UserID               string `json:"user_id"`    // Identity provider uid
	Email                string `json:"email"`      // User's email for display purposes
	SessionID            string `json:"session_id"` // Redis session this token belongs to
	JTI                  string `json:"jti"`        // Unique token ID for blacklisting
	jwt.RegisteredClaims        // Standard JWT claims (exp, iat, nbf)
}

// NewJWTService creates a new JWT service with the provided configuration.
//
// Parameters:
//   - cfg: JWT configuration including secret and expiry times
//   - store: Redis-backed token store for refresh tokens and the blacklist
func NewJWTService(cfg *config.JWTConfig, store TokenStore) *JWTService {
	return &JWTService{
		secret:        cfg.Secret,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		store:         store,
	}
}

// GenerateTokenPair creates access and refresh tokens for a user session.
// This is the primary method for creating authenticated tokens after a
// successful upstream sign-in. It generates:
//  1. An access token (short-lived) for API authentication
//  2. A refresh token (long-lived) for obtaining new access tokens
//
// The refresh token's JTI is stored in Redis for validation during refresh.
//
// Parameters:
//   - ctx: Context for timeout and cancellation
//   - userID: Identity provider uid of the authenticated user
//   - email: User's email for inclusion in token claims
//   - sessionID: Redis session the tokens are bound to
//
// Returns a TokenPair with both tokens and access token expiration time,
// or an error if generation or storage fails.
func (s *JWTService) GenerateTokenPair(ctx context.Context, userID, email, sessionID string) (*TokenPair, error) {
	// Generate access token
	accessJTI := generateJTI()
	accessToken, expiresAt, err := s.generateToken(userID, email, sessionID, accessJTI, s.accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	// Generate refresh token
	refreshJTI := generateJTI()
	refreshToken, _, err := s.generateToken(userID, email, sessionID, refreshJTI, s.refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Store refresh token in Redis
	if err := s.store.SetRefreshToken(ctx, refreshJTI, userID, s.refreshExpiry); err != nil {
		log.Error().Err(err).Msg("Failed to store refresh token in Redis")
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("access_jti", accessJTI).
		Str("refresh_jti", refreshJTI).
		Msg("Token pair generated successfully")

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// generateToken creates a JWT token with the specified claims and expiry.
// The token is signed using HS256 with the configured secret; standard
// claims (exp, iat, nbf) are set automatically.
func (s *JWTService) generateToken(userID, email, sessionID, jti string, expiry time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(expiry)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims if valid.
// Performs signature verification, expiration checking, and blacklist
// verification. Used by the authentication middleware before granting
// access to protected endpoints.
//
// Returns an error if the signature is invalid, the token has expired or
// been revoked, or the token is malformed.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Check if token is blacklisted
	blacklisted, err := s.store.IsTokenBlacklisted(ctx, claims.JTI)
	if err != nil {
		log.Error().Err(err).Str("jti", claims.JTI).Msg("Failed to check token blacklist")
		return nil, fmt.Errorf("failed to verify token status: %w", err)
	}
	if blacklisted {
		return nil, fmt.Errorf("token has been revoked")
	}

	return claims, nil
}

// RefreshAccessToken generates a new token pair using a valid refresh token.
//
// The process:
//  1. Validates the refresh token
//  2. Verifies it exists in Redis (hasn't been revoked)
//  3. Generates a new token pair bound to the same session
//  4. Deletes the old refresh token (rotation)
//
// Rotation ensures each refresh token can only be used once.
func (s *JWTService) RefreshAccessToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	// Validate refresh token
	claims, err := s.ValidateToken(ctx, refreshTokenString)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	// Verify refresh token exists in Redis
	storedUserID, err := s.store.GetRefreshToken(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("refresh token not found or expired: %w", err)
	}

	if storedUserID != claims.UserID {
		return nil, fmt.Errorf("token user mismatch")
	}

	// Generate new token pair
	tokenPair, err := s.GenerateTokenPair(ctx, claims.UserID, claims.Email, claims.SessionID)
	if err != nil {
		return nil, err
	}

	// Delete old refresh token from Redis
	if err := s.store.DeleteRefreshToken(ctx, claims.JTI); err != nil {
		log.Warn().Err(err).Str("jti", claims.JTI).Msg("Failed to delete old refresh token")
	}

	log.Info().
		Str("user_id", claims.UserID).
		Msg("Access token refreshed successfully")

	return tokenPair, nil
}

// RevokeToken adds a token to the blacklist, immediately invalidating it.
// Used on logout. The blacklist entry's TTL equals the token's remaining
// lifetime, so it expires on its own once the token would have anyway.
//
// Returns nil if the token is already expired or unparseable; there is
// nothing useful to revoke in either case.
func (s *JWTService) RevokeToken(ctx context.Context, tokenString string) error {
	// Parse token to get JTI and expiration
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})

	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse token for revocation")
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	// Calculate remaining TTL
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		// Token already expired, no need to blacklist
		return nil
	}

	// Add to blacklist
	if err := s.store.BlacklistToken(ctx, claims.JTI, ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	log.Info().
		Str("jti", claims.JTI).
		Str("user_id", claims.UserID).
		Msg("Token revoked successfully")

	return nil
}

// generateJTI generates a unique JWT ID using cryptographically secure
// random bytes. Returns a URL-safe base64-encoded string of 16 random bytes.
func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
