package imghost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soudorock6666/Pet-Shop/internal/testutil"
	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

func TestUpload(t *testing.T) {
	t.Run("returns the hosted URL on success", func(t *testing.T) {
		images := testutil.NewFakeImageHost()
		defer images.Close()

		client := NewClient(images.Config())
		url, err := client.Upload(context.Background(), "base64-payload")
		require.NoError(t, err)

		assert.Contains(t, url, "https://i.ibb.co/")
		assert.Equal(t, 1, images.Uploads())
	})

	t.Run("sends the API key and image as a form upload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/1/upload", r.URL.Path)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "test-imgbb-key", r.PostForm.Get("key"))
			assert.Equal(t, "base64-payload", r.PostForm.Get("image"))

			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"url": "https://i.ibb.co/abc/img.jpg"},
			})
		}))
		defer server.Close()

		client := NewClient(&config.ImgBBConfig{APIKey: "test-imgbb-key", Endpoint: server.URL})
		url, err := client.Upload(context.Background(), "base64-payload")
		require.NoError(t, err)
		assert.Equal(t, "https://i.ibb.co/abc/img.jpg", url)
	})

	t.Run("rejected upload is a hard error", func(t *testing.T) {
		images := testutil.NewFakeImageHost()
		defer images.Close()
		images.SetFail(true)

		client := NewClient(images.Config())
		_, err := client.Upload(context.Background(), "base64-payload")

		assert.Error(t, err)
		assert.Equal(t, 0, images.Uploads())
	})

	t.Run("success without a URL is still rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))
		defer server.Close()

		client := NewClient(&config.ImgBBConfig{APIKey: "k", Endpoint: server.URL})
		_, err := client.Upload(context.Background(), "base64-payload")
		assert.Error(t, err)
	})

	t.Run("unreachable host is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := NewClient(&config.ImgBBConfig{APIKey: "k", Endpoint: server.URL})
		_, err := client.Upload(context.Background(), "base64-payload")
		assert.Error(t, err)
	})
}
