package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/database"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// RateLimiter implements distributed rate limiting using Redis.
// Protects endpoints from abuse by limiting the number of requests per IP
// address within a time window.
//
// Features:
//   - Per-IP rate limiting
//   - Per-endpoint tracking (different limits for different endpoints)
//   - Distributed across multiple instances (Redis-backed)
//   - Automatic window expiration
//   - Standard rate limit headers (X-RateLimit-*)
//
// Redis key pattern: "ratelimit:{ip}:{endpoint}" with TTL equal to window.
type RateLimiter struct {
	redis          *database.RedisDB // Redis for distributed counters
	requestsPerMin int               // Maximum requests allowed per window
	window         time.Duration     // Time window for rate limiting
}

// NewRateLimiter creates a new rate limiter.
//
// Example:
//
//	// Allow 60 requests per minute
//	limiter := middleware.NewRateLimiter(redisDB, 60, time.Minute)
//
//	// Apply to sensitive endpoints
//	r.With(limiter.Limit("login")).Post("/api/v1/auth/login", handler.Login)
func NewRateLimiter(redis *database.RedisDB, requestsPerMin int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:          redis,
		requestsPerMin: requestsPerMin,
		window:         window,
	}
}

// Limit creates middleware that applies rate limiting to an endpoint.
// Each endpoint can have independent limits by using different endpoint
// identifiers.
//
// Process:
//  1. Extract client IP address (handles proxies and X-Forwarded-For)
//  2. Increment Redis counter for this IP+endpoint combination
//  3. Return 429 if the count exceeds the limit, otherwise add rate limit
//     headers and continue
//
// On Redis errors the request is allowed through to avoid blocking
// legitimate traffic; errors are logged for monitoring.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract IP address using centralized utility
			ip := utils.ExtractClientIP(r)

			// Increment rate limit counter
			count, err := rl.redis.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Failed to check rate limit")
				// Continue on error to avoid blocking legitimate requests
				next.ServeHTTP(w, r)
				return
			}

			// Check if limit exceeded
			if count > int64(rl.requestsPerMin) {
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMin))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))

				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			// Set rate limit headers
			remaining := rl.requestsPerMin - int(count)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			next.ServeHTTP(w, r)
		})
	}
}
