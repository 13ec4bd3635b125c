// Package handlers contains the HTTP endpoint implementations: the
// authentication surface, the catalog surface, and health checks.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/middleware"
	"github.com/soudorock6666/Pet-Shop/internal/models"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/pkg/utils"
)

// IdentityClient defines the identity provider operations the auth surface
// needs. Abstracted for testing and dependency injection.
type IdentityClient interface {
	SignIn(ctx context.Context, email, password string) (*firebase.Credentials, error)
	SignUp(ctx context.Context, email, password string) (*firebase.Credentials, error)
	Reauthenticate(ctx context.Context, email, currentPassword string) (*firebase.Credentials, error)
	UpdatePassword(ctx context.Context, idToken, newPassword string) (*firebase.Credentials, error)
}

// TokenService defines the gateway token operations the auth surface needs.
type TokenService interface {
	GenerateTokenPair(ctx context.Context, userID, email, sessionID string) (*services.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RevokeToken(ctx context.Context, token string) error
}

// emailPattern is the same permissive shape check the storefront clients
// apply: something, an @, something, a dot, something. Real validation is
// the identity provider's job; this only catches obvious typos before a
// network round trip is spent on them.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthHandler handles all authentication-related HTTP endpoints.
// It coordinates the identity provider, gateway tokens, server-side
// sessions, profile documents, and the shell bootstrap state:
//   - Email/password login and registration
//   - Gateway token refresh and revocation
//   - Password changes with reauthentication
//   - Session listing and revocation
//   - Shell state inspection and streaming
type AuthHandler struct {
	identity     IdentityClient           // Identity provider client
	tokens       TokenService             // Gateway token operations
	sessions     *services.SessionService // Server-side session management
	profiles     *services.ProfileService // Profile lifecycle and capability resolution
	bootstrap    *services.Bootstrap      // Shell auth state machine
	isProduction bool                     // Production mode flag (affects cookie settings)
}

// NewAuthHandler creates an authentication handler with all dependencies.
func NewAuthHandler(
	identity IdentityClient,
	tokens TokenService,
	sessions *services.SessionService,
	profiles *services.ProfileService,
	bootstrap *services.Bootstrap,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		tokens:       tokens,
		sessions:     sessions,
		profiles:     profiles,
		bootstrap:    bootstrap,
		isProduction: isProduction,
	}
}

// credentialsRequest is the login/registration request body.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// authResponse is returned after login, registration, and refresh.
type authResponse struct {
	Tokens     *services.TokenPair `json:"tokens"`
	UID        string              `json:"uid"`
	Email      string              `json:"email"`
	Capability models.Capability   `json:"capability"`
}

// Login authenticates an email/password pair against the identity provider
// and establishes a gateway session.
//
// Flow:
//  1. Shape-check the email locally (no network on obvious typos)
//  2. Sign in upstream
//  3. Create the server-side session holding the upstream tokens
//  4. Ensure the profile document exists and stamp lastLogin
//  5. Mint gateway tokens, set cookies, publish the shell state
//
// Upstream failures come back with the localized end-user message; raw
// provider codes are never surfaced.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(req.Email) {
		middleware.IncrementAuthAttempts("invalid_email")
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "email", "Email inválido")
		return
	}
	if req.Password == "" {
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "password", "Senha é obrigatória")
		return
	}

	start := time.Now()
	creds, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.RecordUpstreamRequest("identity", "sign_in", "error", time.Since(start))
		h.respondAuthError(w, r, err)
		return
	}
	middleware.RecordUpstreamRequest("identity", "sign_in", "success", time.Since(start))

	session, err := h.sessions.CreateSession(r.Context(),
		creds,
		services.ExtractDeviceInfo(r.UserAgent()),
		utils.ExtractClientIP(r),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Erro ao autenticar. Tente novamente")
		return
	}

	// Best effort: stamp lastLogin, or repair a missing profile document
	if err := h.profiles.EnsureProfile(r.Context(), creds.IDToken, creds.UID, creds.Email); err != nil {
		log.Warn().Err(err).Str("uid", creds.UID).Msg("Failed to ensure profile")
	}

	tokens, err := h.tokens.GenerateTokenPair(r.Context(), creds.UID, creds.Email, session.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate tokens")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Erro ao autenticar. Tente novamente")
		return
	}

	h.setSessionCookies(w, tokens, session.ID)
	h.bootstrap.OnSignedIn(r.Context(), session)
	middleware.IncrementAuthAttempts("success")

	// The response capability comes from the caller's own profile. The
	// bootstrap snapshot is process-wide and may already reflect a later
	// event from another client.
	capability := h.profiles.ResolveCapability(r.Context(), creds.IDToken, creds.UID)
	utils.RespondWithJSON(w, r, http.StatusOK, authResponse{
		Tokens:     tokens,
		UID:        creds.UID,
		Email:      creds.Email,
		Capability: capability,
	})
}

// Register creates a new account upstream, writes the initial profile
// document, and signs the user in. Every new account starts with the
// default capability.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(req.Email) {
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "email", "Email inválido")
		return
	}
	if len(req.Password) < 6 {
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "password", "A senha deve ter pelo menos 6 caracteres")
		return
	}

	start := time.Now()
	creds, err := h.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.RecordUpstreamRequest("identity", "sign_up", "error", time.Since(start))
		h.respondAuthError(w, r, err)
		return
	}
	middleware.RecordUpstreamRequest("identity", "sign_up", "success", time.Since(start))

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(creds.Email, "@", 2)[0]
	}
	if err := h.profiles.CreateProfile(r.Context(), creds.IDToken, creds.UID, creds.Email, name); err != nil {
		// The account exists upstream; the user can still operate with the
		// default capability and the profile can be repaired on next login
		log.Error().Err(err).Str("uid", creds.UID).Msg("Failed to create profile document")
	}

	session, err := h.sessions.CreateSession(r.Context(),
		creds,
		services.ExtractDeviceInfo(r.UserAgent()),
		utils.ExtractClientIP(r),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Erro ao autenticar. Tente novamente")
		return
	}

	tokens, err := h.tokens.GenerateTokenPair(r.Context(), creds.UID, creds.Email, session.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate tokens")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Erro ao autenticar. Tente novamente")
		return
	}

	h.setSessionCookies(w, tokens, session.ID)
	h.bootstrap.OnSignedIn(r.Context(), session)

	utils.RespondWithJSON(w, r, http.StatusCreated, authResponse{
		Tokens:     tokens,
		UID:        creds.UID,
		Email:      creds.Email,
		Capability: models.CapabilityUser,
	})
}

// RefreshToken rotates the gateway token pair using a valid refresh token.
// Accepts the token from the refresh_token cookie or a JSON body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	// Try cookie first
	cookie, err := r.Cookie("refresh_token")
	if err == nil {
		refreshToken = cookie.Value
	} else {
		// Try request body
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
			return
		}
		refreshToken = req.RefreshToken
	}

	if refreshToken == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing refresh token")
		return
	}

	tokens, err := h.tokens.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh token")
		middleware.IncrementTokenRefresh("invalid_token")
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	middleware.IncrementTokenRefresh("success")

	// Set new tokens in cookies
	utils.SetAuthCookie(w, "access_token", tokens.AccessToken, tokens.ExpiresAt, h.isProduction)
	utils.SetAuthCookie(w, "refresh_token", tokens.RefreshToken, time.Now().Add(168*time.Hour), h.isProduction)

	utils.RespondWithJSON(w, r, http.StatusOK, tokens)
}

// Logout ends the current session: revokes the gateway tokens, deletes the
// session record (discarding the upstream tokens with it), clears the
// cookies, and publishes the unauthenticated shell state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Revoke whatever tokens the client presented
	if accessCookie, err := r.Cookie("access_token"); err == nil {
		if err := h.tokens.RevokeToken(r.Context(), accessCookie.Value); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke access token")
		}
	}
	if refreshCookie, err := r.Cookie("refresh_token"); err == nil {
		if err := h.tokens.RevokeToken(r.Context(), refreshCookie.Value); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke refresh token")
		}
	}

	if session, ok := middleware.GetSession(r.Context()); ok {
		if err := h.sessions.RevokeSession(r.Context(), session.UID, session.ID); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke session")
		}
	}

	utils.ClearAllAuthCookies(w, []string{"access_token", "refresh_token", "session_id"})
	h.bootstrap.OnSignedOut()

	utils.RespondWithMessage(w, r, http.StatusOK, "Logged out successfully")
}

// ChangePassword changes the account password after verifying the current
// one. Reauthentication happens upstream with a fresh sign-in so a recent
// ID token backs the credential change; all other sessions are revoked
// afterwards.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	if len(req.NewPassword) < 6 {
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "new_password", "A senha deve ter pelo menos 6 caracteres")
		return
	}

	creds, err := h.identity.Reauthenticate(r.Context(), session.Email, req.CurrentPassword)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}

	updated, err := h.identity.UpdatePassword(r.Context(), creds.IDToken, req.NewPassword)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}

	// The password change rotated the upstream tokens; keep this session
	// alive with the new pair, then log out every other device
	if err := h.sessions.UpdateTokens(r.Context(), session, updated); err != nil {
		log.Warn().Err(err).Msg("Failed to store rotated tokens")
	}

	others, err := h.sessions.ListUserSessions(r.Context(), session.UID)
	if err == nil {
		for _, other := range others {
			if other.ID == session.ID {
				continue
			}
			if err := h.sessions.RevokeSession(r.Context(), session.UID, other.ID); err != nil {
				log.Warn().Err(err).Str("session_id", other.ID).Msg("Failed to revoke session")
			}
		}
	}

	log.Info().Str("uid", session.UID).Msg("Password changed")
	utils.RespondWithMessage(w, r, http.StatusOK, "Password changed successfully")
}

// Me returns the current user's profile and freshly resolved capability.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	capability := h.profiles.ResolveCapability(r.Context(), idToken, session.UID)

	profile, err := h.profiles.GetProfile(r.Context(), idToken, session.UID)
	if err != nil {
		if !errors.Is(err, firebase.ErrNotFound) {
			log.Warn().Err(err).Str("uid", session.UID).Msg("Failed to fetch profile")
		}
		// No profile document; answer with what the session knows
		profile = &models.UserProfile{Email: session.Email, Role: "user"}
	}

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"uid":        session.UID,
		"profile":    profile,
		"capability": capability,
	})
}

// UpdateProfile merges user-editable display fields into the profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.RespondWithFieldError(w, r, http.StatusBadRequest, "name", "Nome é obrigatório")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	if err := h.profiles.UpdateProfile(r.Context(), idToken, session.UID, strings.TrimSpace(req.Name)); err != nil {
		log.Error().Err(err).Str("uid", session.UID).Msg("Failed to update profile")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	utils.RespondWithMessage(w, r, http.StatusOK, "Profile updated successfully")
}

// PromoteUser grants the admin role to another user. The route sits behind
// the admin middleware; the write itself still carries the caller's upstream
// ID token, so the document store's rules get the final say.
func (h *AuthHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	uid := chi.URLParam(r, "uid")
	if uid == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing user ID")
		return
	}

	idToken, err := h.sessions.IDToken(r.Context(), session)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Session expired")
		return
	}

	if err := h.profiles.MakeAdmin(r.Context(), idToken, uid); err != nil {
		if errors.Is(err, firebase.ErrNotFound) {
			utils.RespondWithError(w, r, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		log.Error().Err(err).Str("target_uid", uid).Msg("Failed to grant admin role")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to promote user")
		return
	}

	log.Info().
		Str("uid", session.UID).
		Str("target_uid", uid).
		Msg("User promoted to admin")

	utils.RespondWithMessage(w, r, http.StatusOK, "Usuário promovido a administrador")
}

// State returns the current shell snapshot. Unauthenticated callers may
// poll this to decide which surface to render, so the identity fields are
// stripped before answering.
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.bootstrap.Current().Public())
}

// StateStream streams shell snapshots as server-sent events. The current
// snapshot is delivered immediately, then every change until the client
// disconnects.
func (h *AuthHandler) StateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events, unsubscribe := h.bootstrap.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case snapshot, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, "state", snapshot.Public()); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// ListSessions lists all active sessions for the current user with device
// information, for the "active sessions" UI. The current session is marked
// via the session_id cookie.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := h.sessions.ListUserSessions(r.Context(), session.UID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sessions")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	type sessionResponse struct {
		ID        string `json:"id"`
		Device    string `json:"device"`
		IPAddress string `json:"ip_address"`
		CreatedAt string `json:"created_at"`
		IsCurrent bool   `json:"is_current"`
	}

	response := make([]sessionResponse, len(sessions))
	for i, info := range sessions {
		response[i] = sessionResponse{
			ID:        info.ID,
			Device:    info.DeviceInfo,
			IPAddress: info.IPAddress,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
			IsCurrent: info.ID == session.ID,
		}
	}

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"sessions": response,
	})
}

// RevokeSession revokes a specific session, logging out that device only.
// The session ID comes from the URL: DELETE /api/v1/auth/sessions/{id}.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Missing session ID")
		return
	}

	if err := h.sessions.RevokeSession(r.Context(), session.UID, sessionID); err != nil {
		log.Error().Err(err).Msg("Failed to revoke session")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to revoke session")
		return
	}

	utils.RespondWithMessage(w, r, http.StatusOK, "Session revoked successfully")
}

// RevokeOtherSessions revokes all sessions except the current one,
// implementing "log out all other devices".
func (h *AuthHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := h.sessions.ListUserSessions(r.Context(), session.UID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sessions")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	revokedCount := 0
	for _, info := range sessions {
		if info.ID == session.ID {
			continue
		}
		if err := h.sessions.RevokeSession(r.Context(), session.UID, info.ID); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", info.ID).
				Msg("Failed to revoke session")
		} else {
			revokedCount++
		}
	}

	log.Info().
		Str("uid", session.UID).
		Int("revoked_count", revokedCount).
		Msg("Other sessions revoked")

	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":       "Other sessions revoked successfully",
		"revoked_count": revokedCount,
	})
}

// setSessionCookies applies the standard post-login cookie set.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, tokens *services.TokenPair, sessionID string) {
	utils.SetAuthCookie(w, "access_token", tokens.AccessToken, tokens.ExpiresAt, h.isProduction)
	utils.SetAuthCookie(w, "refresh_token", tokens.RefreshToken, time.Now().Add(168*time.Hour), h.isProduction)
	utils.SetAuthCookie(w, "session_id", sessionID, time.Now().Add(168*time.Hour), h.isProduction)
}

// respondAuthError maps identity provider failures onto HTTP responses
// carrying the localized end-user message.
func (h *AuthHandler) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *firebase.AuthError
	if !errors.As(err, &authErr) {
		log.Error().Err(err).Msg("Unexpected authentication failure")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Erro ao autenticar. Tente novamente")
		return
	}

	middleware.IncrementAuthAttempts(string(authErr.Code))

	status := http.StatusUnauthorized
	switch authErr.Code {
	case firebase.CodeInvalidEmail, firebase.CodeWeakPassword:
		status = http.StatusBadRequest
	case firebase.CodeEmailInUse:
		status = http.StatusConflict
	case firebase.CodeTooManyRequests:
		status = http.StatusTooManyRequests
	case firebase.CodeNetworkFailed:
		status = http.StatusBadGateway
	case firebase.CodeOperationNotAllowed:
		status = http.StatusForbidden
	case firebase.CodeUnknown:
		status = http.StatusInternalServerError
	}

	log.Warn().
		Str("code", string(authErr.Code)).
		Str("upstream", authErr.Upstream).
		Msg("Authentication rejected")

	utils.RespondWithError(w, r, status, authErr.UserMessage())
}
