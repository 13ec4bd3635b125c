// Package middleware provides HTTP middleware components for the API.
// Middleware functions wrap HTTP handlers to provide cross-cutting concerns
// like authentication, authorization, logging, metrics, and rate limiting.
//
// Middleware in this package:
//   - JWT authentication loading the caller's session into context
//   - Admin capability enforcement with fresh per-request role reads
//   - Structured request/response logging with correlation IDs
//   - Prometheus metrics collection
//   - Rate limiting per IP address
//
// All middleware is designed to be composable with Chi router.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/models"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// SessionKey is the context key for the authenticated session.
	// Set by JWTAuth after successful token validation.
	SessionKey contextKey = "session"
)

// JWTAuth creates middleware that validates gateway tokens and loads the
// backing session into the request context. This is the primary
// authentication middleware for protected endpoints.
//
// Token sources (checked in order):
//  1. Authorization header: "Bearer <token>"
//  2. Cookie: access_token=<token>
//
// The middleware performs:
//   - Token signature verification
//   - Expiration checking
//   - Blacklist verification (for revoked tokens)
//   - Session lookup; a token whose session was revoked is rejected even
//     if the token itself is still valid
//
// On failure the request is rejected with 401 Unauthorized.
func JWTAuth(jwtService *services.JWTService, sessions *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				// Try to get token from cookie as fallback
				cookie, err := r.Cookie("access_token")
				if err != nil {
					log.Warn().Msg("Missing authorization token")
					utils.RespondWithError(w, r, http.StatusUnauthorized, "Missing token")
					return
				}
				authHeader = cookie.Value
			} else {
				// Remove "Bearer " prefix
				authHeader = strings.TrimPrefix(authHeader, "Bearer ")
			}

			// Validate token
			claims, err := jwtService.ValidateToken(r.Context(), authHeader)
			if err != nil {
				log.Warn().Err(err).Msg("Invalid token")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			// Load the backing session; its absence means logout or expiry
			session, err := sessions.GetSession(r.Context(), claims.UserID, claims.SessionID)
			if err != nil {
				log.Warn().
					Err(err).
					Str("uid", claims.UserID).
					Str("session_id", claims.SessionID).
					Msg("Token references missing session")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)

			log.Debug().
				Str("uid", session.UID).
				Str("email", session.Email).
				Msg("User authenticated via JWT")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin creates middleware that enforces the admin capability.
// Must be mounted inside JWTAuth.
//
// The capability is resolved fresh from the profile document on every
// request, never cached. A role revoked upstream therefore takes effect on
// the very next mutation attempt, and any failure to read the profile
// degrades to the non-admin path.
func RequireAdmin(sessions *services.SessionService, profiles *services.ProfileService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := GetSession(r.Context())
			if !ok {
				utils.RespondWithError(w, r, http.StatusUnauthorized, "Missing session")
				return
			}

			idToken, err := sessions.IDToken(r.Context(), session)
			if err != nil {
				log.Warn().Err(err).Str("uid", session.UID).Msg("Failed to obtain upstream token for capability check")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
				return
			}

			capability := profiles.ResolveCapability(r.Context(), idToken, session.UID)
			if !capability.IsAdmin() {
				log.Warn().
					Str("uid", session.UID).
					Str("path", r.URL.Path).
					Msg("Admin capability denied")
				utils.RespondWithError(w, r, http.StatusForbidden, "Você não tem permissão para realizar esta ação")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSession extracts the authenticated session from the request context.
// Returns the session and a boolean indicating whether it was found.
// Handlers behind JWTAuth use this to access the caller's identity and
// upstream tokens.
func GetSession(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*models.Session)
	return session, ok
}
