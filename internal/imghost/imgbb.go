// Package imghost uploads product images to the external image hosting
// service and returns publicly addressable URLs. The catalog mutation flow
// consults it synchronously before any document write: no product document
// may ever reference an image that failed to upload.
package imghost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

// Client uploads base64-encoded images over a form-encoded HTTP POST.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient returns an image hosting client from configuration.
// Uploads get a generous timeout; image payloads are large.
func NewClient(cfg *config.ImgBBConfig) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/") + "/1/upload",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload sends a base64-encoded image and returns its hosted URL.
// Returns a non-nil error whenever the service does not report success with
// a URL; callers treat any error as a hard failure of the whole submission.
func (c *Client) Upload(ctx context.Context, imageBase64 string) (string, error) {
	body := url.Values{
		"key":   {c.apiKey},
		"image": {imageBase64},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return "", fmt.Errorf("imghost: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imghost: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("imghost: decoding response: %w", err)
	}

	if !result.Success || result.Data.URL == "" {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("upstream_error", result.Error.Message).
			Msg("Image upload rejected")
		return "", fmt.Errorf("imghost: upload rejected")
	}

	return result.Data.URL, nil
}
