// Package database provides the gateway's only local storage: a Redis
// wrapper for session records, refresh token tracking, token blacklisting,
// and rate limit counters. All domain data (profiles, products) lives in the
// external document store and is never persisted here.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/pkg/config"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// RedisDB wraps a Redis client for session storage and token bookkeeping.
// All keys use structured naming patterns for organization and monitoring:
//
//	session:{uid}:{sessionID}  JSON session record (includes upstream tokens)
//	refresh_token:{jti}        gateway refresh token -> uid
//	blacklist:{jti}            revoked gateway tokens
//	ratelimit:{ip}:{endpoint}  fixed-window counters
type RedisDB struct {
	client *redis.Client // Underlying Redis client with connection pooling
}

// NewRedisDB creates a new Redis connection with automatic retry.
// Uses exponential backoff while the server comes up, which smooths over
// container start ordering in local and CI environments.
//
// Retry configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3 seconds
//   - Total timeout: 30 seconds
//
// Returns the connected Redis client or an error if all retries fail.
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Verify connection with retry
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.DatabaseRetryConfig()
	retryConfig.MaxAttempts = 5
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second

	var lastErr error
	err := utils.Retry(ctx, retryConfig, func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})

	if err != nil {
		client.Close()
		if lastErr != nil {
			return nil, fmt.Errorf("failed to connect to Redis after retries: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Successfully connected to Redis")

	return &RedisDB{client: client}, nil
}

// Close closes the Redis connection and releases all resources.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is alive and responsive.
// Used by health check endpoints to verify Redis availability.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetRefreshToken stores a gateway refresh token ID mapped to a user ID.
// The token ID (JWT's JTI claim) is the key; the entry expires together
// with the token itself.
func (r *RedisDB) SetRefreshToken(ctx context.Context, tokenID, userID string, expiry time.Duration) error {
	key := fmt.Sprintf("refresh_token:%s", tokenID)
	if err := r.client.Set(ctx, key, userID, expiry).Err(); err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves the user ID associated with a refresh token.
// Returns an error if the token doesn't exist or has expired.
func (r *RedisDB) GetRefreshToken(ctx context.Context, tokenID string) (string, error) {
	key := fmt.Sprintf("refresh_token:%s", tokenID)
	userID, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("refresh token not found or expired")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return userID, nil
}

// DeleteRefreshToken removes a refresh token from storage.
// Called during token rotation to invalidate the old token.
func (r *RedisDB) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	key := fmt.Sprintf("refresh_token:%s", tokenID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// SetSession stores a session record as a JSON blob with automatic
// expiration. The record carries the upstream tokens, so these keys must
// never be exposed through any API surface.
//
// Key pattern: "session:{uid}:{sessionID}"
func (r *RedisDB) SetSession(ctx context.Context, uid, sessionID string, record any, expiry time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := fmt.Sprintf("session:%s:%s", uid, sessionID)
	if err := r.client.Set(ctx, key, payload, expiry).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// GetSession retrieves a session record into target.
// Returns an error if the session doesn't exist or has expired.
func (r *RedisDB) GetSession(ctx context.Context, uid, sessionID string, target any) error {
	key := fmt.Sprintf("session:%s:%s", uid, sessionID)
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("session not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return nil
}

// DeleteSession removes a session from Redis.
// Called when a user logs out from a specific device.
func (r *RedisDB) DeleteSession(ctx context.Context, uid, sessionID string) error {
	key := fmt.Sprintf("session:%s:%s", uid, sessionID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListUserSessions returns all session IDs for a user using SCAN.
// Uses SCAN instead of KEYS to avoid blocking Redis in production;
// iterates in batches of 100 keys.
//
// Key pattern: "session:{uid}:*"
func (r *RedisDB) ListUserSessions(ctx context.Context, uid string) ([]string, error) {
	pattern := fmt.Sprintf("session:%s:*", uid)
	prefix := fmt.Sprintf("session:%s:", uid)

	var sessions []string
	var cursor uint64

	for {
		var keys []string
		var err error

		keys, cursor, err = r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, key := range keys {
			if len(key) > len(prefix) {
				sessions = append(sessions, key[len(prefix):])
			}
		}

		// Cursor returns to 0 when the iteration is complete
		if cursor == 0 {
			break
		}
	}

	return sessions, nil
}

// CountSessions counts active sessions across all users using SCAN.
// Feeds the active sessions gauge; approximate by nature, since sessions
// expire while the scan runs.
func (r *RedisDB) CountSessions(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64

	for {
		var keys []string
		var err error

		keys, cursor, err = r.client.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count sessions: %w", err)
		}
		total += int64(len(keys))

		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// BlacklistToken adds a gateway token to the blacklist for revocation.
// Blacklisted tokens are rejected even if they have valid signatures.
// The entry expires when the token would naturally expire, preventing
// unbounded growth.
func (r *RedisDB) BlacklistToken(ctx context.Context, jti string, expiry time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	if err := r.client.Set(ctx, key, "true", expiry).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks if a token has been revoked.
// Called during gateway token validation to enforce revocation.
func (r *RedisDB) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// IncrementRateLimit increments the rate limit counter for an IP+endpoint.
// Implements a fixed window limiter: the first request in a window sets the
// counter to 1 and starts the expiry timer, subsequent requests increment,
// and the counter resets automatically when the window expires.
//
// Returns the current count (including this request).
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", ip, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count, nil
}

// GetRateLimitCount retrieves the current rate limit count without
// incrementing. Useful for exposing remaining quota headers.
func (r *RedisDB) GetRateLimitCount(ctx context.Context, ip, endpoint string) (int64, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", ip, endpoint)
	count, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit count: %w", err)
	}
	return count, nil
}
