// Package firebase provides HTTP clients for the managed backends the
// storefront delegates to: the identity provider (sign-in, sign-up, password
// management, token refresh) and the document store (the `users` and
// `produtos` collections).
//
// The gateway owns no durable state of its own; everything these clients
// touch lives upstream. Both clients speak the public REST wire formats so
// they can be pointed at emulators or test servers through configuration.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

// Credentials is an authenticated upstream session: the identity provider's
// user id plus the tokens needed to act on the user's behalf.
type Credentials struct {
	UID          string        // Identity provider user id
	Email        string        // Verified email address
	IDToken      string        // Short-lived bearer token for document store calls
	RefreshToken string        // Long-lived token for renewing the ID token
	ExpiresIn    time.Duration // ID token lifetime as reported upstream
}

// AuthClient talks to the identity provider's REST API. All methods return
// *AuthError on provider-reported failures, with the upstream code already
// mapped to the closed enum in errors.go.
type AuthClient struct {
	apiKey        string
	authEndpoint  string // Identity Toolkit base URL
	tokenEndpoint string // Secure Token base URL
	httpClient    *http.Client
}

// NewAuthClient creates an identity provider client from configuration.
func NewAuthClient(cfg *config.FirebaseConfig) *AuthClient {
	return &AuthClient{
		apiKey:        cfg.APIKey,
		authEndpoint:  strings.TrimSuffix(cfg.AuthEndpoint, "/"),
		tokenEndpoint: strings.TrimSuffix(cfg.TokenEndpoint, "/"),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// credentialsResponse matches the Identity Toolkit account endpoints.
// ExpiresIn arrives as a string of seconds.
type credentialsResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignIn authenticates an email/password pair and returns upstream
// credentials. Provider failures (wrong password, unknown user, throttling)
// come back as *AuthError; transport failures map to CodeNetworkFailed.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	var resp credentialsResponse
	err := c.postJSON(ctx, c.accountURL("signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	log.Info().Str("uid", resp.LocalID).Msg("Upstream sign-in succeeded")
	return credentialsFrom(&resp), nil
}

// SignUp registers a new email/password account and returns upstream
// credentials for the freshly created user.
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	var resp credentialsResponse
	err := c.postJSON(ctx, c.accountURL("signUp"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	log.Info().Str("uid", resp.LocalID).Msg("Upstream sign-up succeeded")
	return credentialsFrom(&resp), nil
}

// Reauthenticate verifies the user's current password by performing a fresh
// sign-in. The resulting tokens are returned so a follow-up credential
// change can use a recent ID token.
func (c *AuthClient) Reauthenticate(ctx context.Context, email, currentPassword string) (*Credentials, error) {
	creds, err := c.SignIn(ctx, email, currentPassword)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// UpdatePassword changes the account password. The ID token must be recent;
// the provider reports CREDENTIAL_TOO_OLD_LOGIN_AGAIN otherwise, which maps
// to CodeRequiresRecentLogin. Returns refreshed credentials, because a
// password change rotates the upstream tokens.
func (c *AuthClient) UpdatePassword(ctx context.Context, idToken, newPassword string) (*Credentials, error) {
	var resp credentialsResponse
	err := c.postJSON(ctx, c.accountURL("update"), map[string]any{
		"idToken":           idToken,
		"password":          newPassword,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	log.Info().Str("uid", resp.LocalID).Msg("Upstream password updated")
	return credentialsFrom(&resp), nil
}

// RefreshIDToken exchanges a refresh token for a fresh ID token via the
// secure-token endpoint. Unlike the account endpoints, this one speaks
// form-encoded requests and snake_case responses.
func (c *AuthClient) RefreshIDToken(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.tokenEndpoint, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeAuthError(httpResp)
	}

	var resp struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode token refresh response: %w", err)
	}

	return &Credentials{
		UID:          resp.UserID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    parseExpiresIn(resp.ExpiresIn),
	}, nil
}

// accountURL builds an Identity Toolkit account endpoint URL.
func (c *AuthClient) accountURL(action string) string {
	return fmt.Sprintf("%s/v1/accounts:%s?key=%s", c.authEndpoint, action, url.QueryEscape(c.apiKey))
}

// postJSON sends a JSON request and decodes the success body into out.
// Non-2xx responses are decoded into an *AuthError.
func (c *AuthClient) postJSON(ctx context.Context, endpoint string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		authErr := decodeAuthError(resp)
		log.Warn().
			Str("code", string(authErr.Code)).
			Str("upstream", authErr.Upstream).
			Msg("Identity provider rejected request")
		return authErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAuthError extracts the provider error code from a failed response
// and maps it onto the closed enum.
func decodeAuthError(resp *http.Response) *AuthError {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return &AuthError{Code: CodeUnknown, Upstream: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return mapUpstreamCode(body.Error.Message)
}

// credentialsFrom converts a wire response into Credentials.
func credentialsFrom(resp *credentialsResponse) *Credentials {
	return &Credentials{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    parseExpiresIn(resp.ExpiresIn),
	}
}

// parseExpiresIn converts the provider's seconds-as-string lifetime.
// Falls back to one hour, the provider's documented default.
func parseExpiresIn(raw string) time.Duration {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}
