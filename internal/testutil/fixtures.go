// Package testutil provides common testing utilities, fixtures, and fake
// upstream servers for use across all test files in the project.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/models"
)

// TestProfile creates a profile fixture with the default role
func TestProfile() *models.UserProfile {
	return &models.UserProfile{
		Email:     "test@example.com",
		Role:      "user",
		Name:      "Test User",
		CreatedAt: "2026-01-15T10:30:00Z",
		LastLogin: "2026-01-20T14:30:00Z",
	}
}

// TestAdminProfile creates a profile fixture with the admin role
func TestAdminProfile() *models.UserProfile {
	profile := TestProfile()
	profile.Email = "admin@example.com"
	profile.Role = "admin"
	return profile
}

// TestProduct creates a product fixture
func TestProduct() models.Product {
	return models.Product{
		ID:         "prod-1",
		Produto:    "Ração Premium",
		Descricao:  "Ração para cães adultos",
		Quantidade: 12,
		Categoria:  "racao",
		Imagem:     "https://i.ibb.co/abc123/racao.jpg",
		CreatedAt:  "2026-01-10T09:00:00Z",
	}
}

// TestDraft creates a valid product draft fixture
func TestDraft() *models.ProductDraft {
	return &models.ProductDraft{
		Produto:    "Ração Premium",
		Descricao:  "Ração para cães adultos",
		Quantidade: "12",
		Categoria:  "racao",
	}
}

// TestCredentials creates upstream credentials as the identity provider
// would return them after a successful sign-in
func TestCredentials() *firebase.Credentials {
	return &firebase.Credentials{
		UID:          "uid-123",
		Email:        "test@example.com",
		IDToken:      "upstream-id-token",
		RefreshToken: "upstream-refresh-token",
		ExpiresIn:    time.Hour,
	}
}

// TestSession creates a session fixture holding upstream tokens
func TestSession() *models.Session {
	now := time.Now()
	return &models.Session{
		ID:           uuid.New().String(),
		UID:          "uid-123",
		Email:        "test@example.com",
		IDToken:      "upstream-id-token",
		RefreshToken: "upstream-refresh-token",
		TokenExpiry:  now.Add(time.Hour),
		DeviceInfo:   "Chrome 120 · Windows 11 · Desktop",
		IPAddress:    "203.0.113.42",
		CreatedAt:    now,
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
	}
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Safari       string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}

// IPAddresses provides test IP addresses
var IPAddresses = struct {
	Public    string
	Private   string
	Localhost string
}{
	Public:    "203.0.113.42",
	Private:   "192.168.1.100",
	Localhost: "127.0.0.1",
}
