package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// SessionStore defines the Redis operations needed for session persistence.
// Abstracted as an interface for testing and dependency injection.
type SessionStore interface {
	SetSession(ctx context.Context, uid, sessionID string, record any, expiry time.Duration) error
	GetSession(ctx context.Context, uid, sessionID string, target any) error
	ListUserSessions(ctx context.Context, uid string) ([]string, error)
	DeleteSession(ctx context.Context, uid, sessionID string) error
}

// TokenRefresher renews upstream ID tokens. Implemented by the identity
// provider client.
type TokenRefresher interface {
	RefreshIDToken(ctx context.Context, refreshToken string) (*firebase.Credentials, error)
}

// storedSession is the Redis representation of a session. Unlike
// models.Session it serializes the upstream tokens, which is exactly why it
// stays unexported: nothing outside this package ever marshals it.
type storedSession struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *storedSession) toModel() *models.Session {
	return &models.Session{
		ID:           s.ID,
		UID:          s.UID,
		Email:        s.Email,
		IDToken:      s.IDToken,
		RefreshToken: s.RefreshToken,
		TokenExpiry:  s.TokenExpiry,
		DeviceInfo:   s.DeviceInfo,
		IPAddress:    s.IPAddress,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func storedFrom(session *models.Session) *storedSession {
	return &storedSession{
		ID:           session.ID,
		UID:          session.UID,
		Email:        session.Email,
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		TokenExpiry:  session.TokenExpiry,
		DeviceInfo:   session.DeviceInfo,
		IPAddress:    session.IPAddress,
		CreatedAt:    session.CreatedAt,
		ExpiresAt:    session.ExpiresAt,
	}
}

// refreshSkew is how close to expiry an upstream ID token may get before
// IDToken renews it proactively. Renewing early avoids handing the document
// store a token that expires mid-request.
const refreshSkew = 2 * time.Minute

// SessionService manages the gateway's server-side sessions. Each session
// holds the upstream identity provider tokens for one signed-in device, so
// document store calls can always be made on the user's behalf without the
// client ever seeing those tokens.
//
// It provides:
//   - Creating sessions after upstream sign-in
//   - Transparent upstream ID token renewal near expiry
//   - Listing active sessions per user
//   - Revoking individual or all sessions
//   - Extracting device information from User-Agent headers
type SessionService struct {
	store         SessionStore   // Redis for session persistence
	refresher     TokenRefresher // Identity provider client for token renewal
	sessionExpiry time.Duration  // Session lifetime (default: 7 days)
}

// NewSessionService creates a new session service.
//
// Parameters:
//   - store: Session store implementation (typically RedisDB)
//   - refresher: Identity provider client used to renew upstream tokens
//   - sessionExpiry: How long sessions remain valid (e.g., 7*24*time.Hour)
func NewSessionService(store SessionStore, refresher TokenRefresher, sessionExpiry time.Duration) *SessionService {
	return &SessionService{
		store:         store,
		refresher:     refresher,
		sessionExpiry: sessionExpiry,
	}
}

// CreateSession creates a new session after a successful upstream sign-in.
// Generates a unique session ID and persists the upstream credentials
// together with device metadata.
//
// Parameters:
//   - ctx: Context for timeout and cancellation
//   - creds: Upstream credentials returned by the identity provider
//   - deviceInfo: Parsed User-Agent string (use ExtractDeviceInfo)
//   - ipAddress: Client IP address (use utils.ExtractClientIP)
//
// Returns the created session or an error if persistence fails.
func (s *SessionService) CreateSession(ctx context.Context, creds *firebase.Credentials, deviceInfo, ipAddress string) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:           uuid.New().String(),
		UID:          creds.UID,
		Email:        creds.Email,
		IDToken:      creds.IDToken,
		RefreshToken: creds.RefreshToken,
		TokenExpiry:  now.Add(creds.ExpiresIn),
		DeviceInfo:   deviceInfo,
		IPAddress:    ipAddress,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionExpiry),
	}

	if err := s.store.SetSession(ctx, session.UID, session.ID, storedFrom(session), s.sessionExpiry); err != nil {
		log.Error().
			Err(err).
			Str("uid", session.UID).
			Msg("Failed to create session")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("uid", session.UID).
		Str("session_id", session.ID).
		Str("device", deviceInfo).
		Msg("Session created successfully")

	return session, nil
}

// GetSession retrieves a session with its upstream tokens.
// Returns an error if the session does not exist or has expired.
func (s *SessionService) GetSession(ctx context.Context, uid, sessionID string) (*models.Session, error) {
	var stored storedSession
	if err := s.store.GetSession(ctx, uid, sessionID, &stored); err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return stored.toModel(), nil
}

// IDToken returns an upstream ID token for the session that is guaranteed
// to remain valid for at least refreshSkew. When the stored token is close
// to expiry it is renewed through the identity provider and the session
// record is updated in place.
//
// The session argument is mutated to carry the fresh tokens.
func (s *SessionService) IDToken(ctx context.Context, session *models.Session) (string, error) {
	if time.Until(session.TokenExpiry) > refreshSkew {
		return session.IDToken, nil
	}

	creds, err := s.refresher.RefreshIDToken(ctx, session.RefreshToken)
	if err != nil {
		log.Warn().
			Err(err).
			Str("uid", session.UID).
			Str("session_id", session.ID).
			Msg("Failed to renew upstream ID token")
		return "", fmt.Errorf("failed to renew upstream token: %w", err)
	}

	session.IDToken = creds.IDToken
	session.RefreshToken = creds.RefreshToken
	session.TokenExpiry = time.Now().Add(creds.ExpiresIn)

	// Persist the rotated tokens with the session's remaining lifetime
	remaining := time.Until(session.ExpiresAt)
	if remaining <= 0 {
		return "", fmt.Errorf("session expired")
	}
	if err := s.store.SetSession(ctx, session.UID, session.ID, storedFrom(session), remaining); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", session.ID).
			Msg("Failed to persist renewed tokens")
	}

	log.Debug().
		Str("uid", session.UID).
		Str("session_id", session.ID).
		Msg("Upstream ID token renewed")

	return session.IDToken, nil
}

// UpdateTokens replaces the session's upstream tokens, used after operations
// that rotate them upstream (password change).
func (s *SessionService) UpdateTokens(ctx context.Context, session *models.Session, creds *firebase.Credentials) error {
	session.IDToken = creds.IDToken
	session.RefreshToken = creds.RefreshToken
	session.TokenExpiry = time.Now().Add(creds.ExpiresIn)

	remaining := time.Until(session.ExpiresAt)
	if remaining <= 0 {
		return fmt.Errorf("session expired")
	}
	if err := s.store.SetSession(ctx, session.UID, session.ID, storedFrom(session), remaining); err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}
	return nil
}

// ListUserSessions returns sanitized views of all active sessions for a
// user, for the "active sessions" feature. Invalid or expired sessions are
// skipped.
func (s *SessionService) ListUserSessions(ctx context.Context, uid string) ([]*models.SessionInfo, error) {
	sessionIDs, err := s.store.ListUserSessions(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*models.SessionInfo, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		session, err := s.GetSession(ctx, uid, sessionID)
		if err != nil {
			// Skip invalid sessions
			log.Warn().
				Err(err).
				Str("uid", uid).
				Str("session_id", sessionID).
				Msg("Failed to get session info")
			continue
		}
		sessions = append(sessions, session.Info())
	}

	return sessions, nil
}

// RevokeSession deletes a specific session, logging out that device while
// keeping others active.
func (s *SessionService) RevokeSession(ctx context.Context, uid, sessionID string) error {
	if err := s.store.DeleteSession(ctx, uid, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	log.Info().
		Str("uid", uid).
		Str("session_id", sessionID).
		Msg("Session revoked successfully")

	return nil
}

// RevokeAllSessions deletes all sessions for a user, logging them out
// everywhere. Used after password changes and for "log out all devices".
// Individual deletion failures are logged but don't stop the process.
func (s *SessionService) RevokeAllSessions(ctx context.Context, uid string) error {
	sessionIDs, err := s.store.ListUserSessions(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, sessionID := range sessionIDs {
		if err := s.store.DeleteSession(ctx, uid, sessionID); err != nil {
			log.Warn().
				Err(err).
				Str("uid", uid).
				Str("session_id", sessionID).
				Msg("Failed to delete session")
		}
	}

	log.Info().
		Str("uid", uid).
		Int("count", len(sessionIDs)).
		Msg("All sessions revoked")

	return nil
}

// ExtractDeviceInfo extracts human-readable device information from a
// User-Agent header for display in session lists.
//
// Returns a formatted string like "Chrome 120 · Windows 11 · Desktop" or
// "Unknown Device" if the User-Agent is empty.
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	// Build friendly device string
	var parts []string

	// Browser
	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}

	// Operating System
	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	// Device type
	if ua.Mobile {
		parts = append(parts, "Mobile")
	} else if ua.Tablet {
		parts = append(parts, "Tablet")
	} else if ua.Desktop {
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		// Fallback to truncated user agent
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}
