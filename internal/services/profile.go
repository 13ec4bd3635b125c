package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// usersCollection is the document store collection holding user profiles,
// keyed by the identity provider uid.
const usersCollection = "users"

// ProfileStore defines the document store operations needed for profile
// management. Abstracted as an interface for testing.
type ProfileStore interface {
	GetDocument(ctx context.Context, idToken, collection, id string) (*firebase.Document, error)
	SetDocument(ctx context.Context, idToken, collection, id string, fields map[string]firebase.Value, merge bool) error
}

// ProfileService manages user profile documents and resolves capabilities
// from them. The profile document is the single source of truth for a
// user's role; everything else (tokens, sessions) carries no authority.
type ProfileService struct {
	store ProfileStore
}

// NewProfileService creates a profile service backed by the document store.
func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store}
}

// ResolveCapability reads the user's profile and derives their capability.
//
// The resolution is strictly least-privilege:
//   - Profile absent: CapabilityUser
//   - Profile read fails for any reason: CapabilityUser
//   - role field anything but exactly "admin": CapabilityUser
//   - role == "admin": CapabilityAdmin
//
// No failure mode can yield elevated access. The read always goes upstream;
// capabilities are never cached, so a role change takes effect on the next
// protected request.
func (p *ProfileService) ResolveCapability(ctx context.Context, idToken, uid string) models.Capability {
	profile, err := p.GetProfile(ctx, idToken, uid)
	if err != nil {
		if !errors.Is(err, firebase.ErrNotFound) {
			log.Warn().
				Err(err).
				Str("uid", uid).
				Msg("Profile read failed, degrading to user capability")
		}
		return models.CapabilityUser
	}
	return profile.Capability()
}

// GetProfile fetches the user's profile document. Returns
// firebase.ErrNotFound when no profile exists for the uid.
func (p *ProfileService) GetProfile(ctx context.Context, idToken, uid string) (*models.UserProfile, error) {
	doc, err := p.store.GetDocument(ctx, idToken, usersCollection, uid)
	if err != nil {
		return nil, err
	}

	return &models.UserProfile{
		Email:     doc.GetString("email"),
		Role:      doc.GetString("role"),
		Name:      doc.GetString("name"),
		CreatedAt: doc.GetString("createdAt"),
		LastLogin: doc.GetString("lastLogin"),
		UpdatedAt: doc.GetString("updatedAt"),
	}, nil
}

// CreateProfile writes the initial profile document for a newly registered
// user. Every new account starts with the "user" role; promotion to admin
// goes through MakeAdmin.
func (p *ProfileService) CreateProfile(ctx context.Context, idToken, uid, email, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	fields := map[string]firebase.Value{
		"email":     firebase.StringVal(email),
		"role":      firebase.StringVal("user"),
		"name":      firebase.StringVal(name),
		"createdAt": firebase.StringVal(now),
		"lastLogin": firebase.StringVal(now),
	}

	if err := p.store.SetDocument(ctx, idToken, usersCollection, uid, fields, false); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().
		Str("uid", uid).
		Str("email", email).
		Msg("Profile created")

	return nil
}

// EnsureProfile guarantees a profile document exists after a successful
// authentication. An absent profile is created with the default role and a
// name derived from the email local-part (the historical client behavior);
// an existing one only gets its lastLogin stamped.
func (p *ProfileService) EnsureProfile(ctx context.Context, idToken, uid, email string) error {
	_, err := p.GetProfile(ctx, idToken, uid)
	if errors.Is(err, firebase.ErrNotFound) {
		name := strings.SplitN(email, "@", 2)[0]
		return p.CreateProfile(ctx, idToken, uid, email, name)
	}
	if err != nil {
		return err
	}
	return p.RecordLogin(ctx, idToken, uid)
}

// RecordLogin stamps lastLogin on the user's profile with a merge write so
// the role and every other field stay untouched. A missing profile is not
// an error here; a user can authenticate upstream without a profile and
// simply operates with the default capability.
func (p *ProfileService) RecordLogin(ctx context.Context, idToken, uid string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	fields := map[string]firebase.Value{
		"lastLogin": firebase.StringVal(now),
	}

	if err := p.store.SetDocument(ctx, idToken, usersCollection, uid, fields, true); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// MakeAdmin grants the admin role with a merge write, leaving the rest of
// the profile untouched. The target must already have a profile document;
// granting admin to a uid nobody has signed in with would create a
// half-empty profile that ResolveCapability then trusts.
func (p *ProfileService) MakeAdmin(ctx context.Context, idToken, uid string) error {
	if _, err := p.GetProfile(ctx, idToken, uid); err != nil {
		return fmt.Errorf("failed to load profile for promotion: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	fields := map[string]firebase.Value{
		"role":      firebase.StringVal(string(models.CapabilityAdmin)),
		"updatedAt": firebase.StringVal(now),
	}

	if err := p.store.SetDocument(ctx, idToken, usersCollection, uid, fields, true); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}

	log.Info().Str("uid", uid).Msg("Admin role granted")
	return nil
}

// UpdateProfile merges the given display fields into the user's profile.
// Only name is user-editable; role and email never pass through here.
func (p *ProfileService) UpdateProfile(ctx context.Context, idToken, uid, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	fields := map[string]firebase.Value{
		"name":      firebase.StringVal(name),
		"updatedAt": firebase.StringVal(now),
	}

	if err := p.store.SetDocument(ctx, idToken, usersCollection, uid, fields, true); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	log.Info().Str("uid", uid).Msg("Profile updated")
	return nil
}
