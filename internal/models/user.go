// Package models defines the core domain models for the application.
// These models represent the data structures used throughout the system
// for user profiles, sessions, capabilities, and catalog products.
//
// All persistent state lives in the external document store; the types here
// are transient in-memory representations of those documents plus the
// gateway's own session bookkeeping. Sensitive fields are marked with
// `json:"-"` to prevent accidental exposure in API responses.
package models

import "time"

// Capability is the resolved access level of an authenticated user.
// It controls which routes and actions the gateway exposes. The zero-trust
// default is CapabilityUser: any ambiguity (missing profile, read failure)
// degrades to the least-privileged level.
type Capability string

const (
	// CapabilityUser is the default capability. Users can browse the
	// catalog and manage their own account.
	CapabilityUser Capability = "user"

	// CapabilityAdmin is granted only when the user's profile document
	// carries role == "admin". Admins can create, update, and delete
	// catalog products.
	CapabilityAdmin Capability = "admin"
)

// IsAdmin reports whether the capability grants catalog mutation access.
func (c Capability) IsAdmin() bool {
	return c == CapabilityAdmin
}

// UserProfile mirrors a document in the `users` collection, keyed by the
// identity provider's user id. Exactly one profile exists per user; it is
// created on first successful authentication.
//
// Timestamps are stored as ISO 8601 strings, matching what the mobile
// clients wrote into the collection historically.
//
// JSON example:
//
//	{
//	  "email": "maria@example.com",
//	  "role": "user",
//	  "name": "maria",
//	  "createdAt": "2024-01-15T10:30:00Z",
//	  "lastLogin": "2024-01-20T14:45:00Z"
//	}
type UserProfile struct {
	Email     string `json:"email"`               // Email from the identity provider
	Role      string `json:"role"`                // "user" or "admin" (defaults to "user")
	Name      string `json:"name"`                // Display name, derived from the email local-part
	CreatedAt string `json:"createdAt"`           // Profile creation time (ISO 8601)
	LastLogin string `json:"lastLogin"`           // Most recent login time (ISO 8601)
	UpdatedAt string `json:"updatedAt,omitempty"` // Last profile update, set on role changes
}

// Capability derives the access level from the stored role field.
// Anything other than an explicit "admin" role resolves to user.
func (p *UserProfile) Capability() Capability {
	if p != nil && p.Role == string(CapabilityAdmin) {
		return CapabilityAdmin
	}
	return CapabilityUser
}

// Session is an authenticated gateway session backed by Redis storage.
// It is created after a successful upstream sign-in and holds the upstream
// credentials needed to act on the user's behalf against the document store.
//
// The upstream tokens are intentionally excluded from JSON serialization:
// they never leave the gateway.
type Session struct {
	ID           string    `json:"id"`          // Unique session identifier
	UID          string    `json:"uid"`         // Identity provider user id
	Email        string    `json:"email"`       // User's email address
	IDToken      string    `json:"-"`           // Upstream ID token (NEVER exposed)
	RefreshToken string    `json:"-"`           // Upstream refresh token (NEVER exposed)
	TokenExpiry  time.Time `json:"-"`           // When the upstream ID token expires
	DeviceInfo   string    `json:"device_info"` // Parsed client device description
	IPAddress    string    `json:"ip_address"`  // Client IP address
	CreatedAt    time.Time `json:"created_at"`  // Session creation timestamp
	ExpiresAt    time.Time `json:"expires_at"`  // Session expiration timestamp
}

// SessionInfo is a sanitized view of Session for API responses, safe to
// return in session listing endpoints.
type SessionInfo struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Info returns the sanitized view of the session.
func (s *Session) Info() *SessionInfo {
	return &SessionInfo{
		ID:         s.ID,
		DeviceInfo: s.DeviceInfo,
		IPAddress:  s.IPAddress,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}
