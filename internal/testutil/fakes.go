package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

// FakeIdentity is an in-process stand-in for the identity provider's REST
// API. Accounts are registered up front with AddUser; sign-in checks the
// stored password and answers with deterministic tokens.
//
// Setting FailCode forces every request to fail with that upstream code,
// for exercising the error mapping.
type FakeIdentity struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[string]string // email -> password
	failCode string
}

// NewFakeIdentity starts a fake identity provider. Callers must Close it.
func NewFakeIdentity() *FakeIdentity {
	f := &FakeIdentity{users: map[string]string{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// Close shuts the fake server down.
func (f *FakeIdentity) Close() { f.Server.Close() }

// AddUser registers an account the fake will accept.
func (f *FakeIdentity) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
}

// SetFailCode forces every subsequent request to fail with the given
// upstream code. An empty code restores normal behavior.
func (f *FakeIdentity) SetFailCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCode = code
}

// Config returns a provider configuration pointing at the fake.
func (f *FakeIdentity) Config() *config.FirebaseConfig {
	return &config.FirebaseConfig{
		APIKey:        "test-api-key",
		ProjectID:     "test-project",
		AuthEndpoint:  f.Server.URL,
		TokenEndpoint: f.Server.URL,
	}
}

func (f *FakeIdentity) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	failCode := f.failCode
	f.mu.Unlock()

	if failCode != "" {
		writeIdentityError(w, http.StatusBadRequest, failCode)
		return
	}

	switch {
	case strings.Contains(r.URL.Path, "accounts:signInWithPassword"):
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		password, exists := f.users[req.Email]
		f.mu.Unlock()

		if !exists {
			writeIdentityError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
			return
		}
		if password != req.Password {
			writeIdentityError(w, http.StatusBadRequest, "INVALID_PASSWORD")
			return
		}
		writeCredentials(w, req.Email)

	case strings.Contains(r.URL.Path, "accounts:signUp"):
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		_, exists := f.users[req.Email]
		if !exists {
			f.users[req.Email] = req.Password
		}
		f.mu.Unlock()

		if exists {
			writeIdentityError(w, http.StatusBadRequest, "EMAIL_EXISTS")
			return
		}
		if len(req.Password) < 6 {
			writeIdentityError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		writeCredentials(w, req.Email)

	case strings.Contains(r.URL.Path, "accounts:update"):
		writeCredentials(w, "test@example.com")

	case strings.Contains(r.URL.Path, "/v1/token"):
		json.NewEncoder(w).Encode(map[string]string{
			"user_id":       "uid-test",
			"id_token":      "refreshed-id-token",
			"refresh_token": "refreshed-refresh-token",
			"expires_in":    "3600",
		})

	default:
		http.NotFound(w, r)
	}
}

func writeCredentials(w http.ResponseWriter, email string) {
	json.NewEncoder(w).Encode(map[string]string{
		"localId":      "uid-" + strings.SplitN(email, "@", 2)[0],
		"email":        email,
		"idToken":      "id-token-" + email,
		"refreshToken": "refresh-token-" + email,
		"expiresIn":    "3600",
	})
}

func writeIdentityError(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": code},
	})
}

// FakeStore is an in-memory stand-in for the document store's REST API.
// Documents live in collections keyed by id; merge writes honor the
// updateMask query parameters the real API uses.
type FakeStore struct {
	Server *httptest.Server

	mu          sync.Mutex
	collections map[string]map[string]map[string]firebase.Value
	nextID      int
	failAll     bool
	denyAll     bool
}

// NewFakeStore starts a fake document store. Callers must Close it.
func NewFakeStore() *FakeStore {
	f := &FakeStore{collections: map[string]map[string]map[string]firebase.Value{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// Close shuts the fake server down.
func (f *FakeStore) Close() { f.Server.Close() }

// Config returns a provider configuration pointing at the fake. The
// identity endpoints stay unset; combine with FakeIdentity when both are
// needed.
func (f *FakeStore) Config() *config.FirebaseConfig {
	return &config.FirebaseConfig{
		APIKey:            "test-api-key",
		ProjectID:         "test-project",
		FirestoreEndpoint: f.Server.URL,
	}
}

// SetFailAll makes every request fail with a 500 while set, for exercising
// upstream failure handling.
func (f *FakeStore) SetFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

// SetDenyAll makes every request fail with a 403 while set, simulating the
// store's authorization rules rejecting the presented token.
func (f *FakeStore) SetDenyAll(deny bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyAll = deny
}

// Seed writes a document directly into a collection.
func (f *FakeStore) Seed(collection, id string, fields map[string]firebase.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = map[string]map[string]firebase.Value{}
	}
	f.collections[collection][id] = fields
}

// Get reads a document's fields directly, or nil when absent.
func (f *FakeStore) Get(collection, id string) map[string]firebase.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[collection][id]
}

func (f *FakeStore) docName(collection, id string) string {
	return fmt.Sprintf("projects/test-project/databases/(default)/documents/%s/%s", collection, id)
}

func (f *FakeStore) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	if f.denyAll {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// Strip the fixed prefix, leaving "{collection}" or "{collection}/{id}"
	const prefix = "/v1/projects/test-project/databases/(default)/documents/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	collection := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		// List collection
		docs := make([]map[string]any, 0)
		for id, fields := range f.collections[collection] {
			docs = append(docs, map[string]any{
				"name":   f.docName(collection, id),
				"fields": fields,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"documents": docs})

	case len(parts) == 1 && r.Method == http.MethodPost:
		// Create with generated id
		var body struct {
			Fields map[string]firebase.Value `json:"fields"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.nextID++
		id := fmt.Sprintf("gen-%d", f.nextID)
		if f.collections[collection] == nil {
			f.collections[collection] = map[string]map[string]firebase.Value{}
		}
		f.collections[collection][id] = body.Fields

		json.NewEncoder(w).Encode(map[string]any{
			"name":   f.docName(collection, id),
			"fields": body.Fields,
		})

	case len(parts) == 2:
		id := parts[1]
		switch r.Method {
		case http.MethodGet:
			fields, ok := f.collections[collection][id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"name":   f.docName(collection, id),
				"fields": fields,
			})

		case http.MethodPatch:
			var body struct {
				Fields map[string]firebase.Value `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)

			if f.collections[collection] == nil {
				f.collections[collection] = map[string]map[string]firebase.Value{}
			}

			mask := r.URL.Query()["updateMask.fieldPaths"]
			if len(mask) > 0 {
				// Merge write touching only masked fields
				existing := f.collections[collection][id]
				if existing == nil {
					existing = map[string]firebase.Value{}
				}
				for _, field := range mask {
					if value, ok := body.Fields[field]; ok {
						existing[field] = value
					}
				}
				f.collections[collection][id] = existing
			} else {
				f.collections[collection][id] = body.Fields
			}

			json.NewEncoder(w).Encode(map[string]any{
				"name":   f.docName(collection, id),
				"fields": f.collections[collection][id],
			})

		case http.MethodDelete:
			delete(f.collections[collection], id)
			w.Write([]byte("{}"))

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

// FakeImageHost is an in-process stand-in for the image hosting upload API.
type FakeImageHost struct {
	Server *httptest.Server

	mu      sync.Mutex
	uploads int
	fail    bool
}

// NewFakeImageHost starts a fake image host. Callers must Close it.
func NewFakeImageHost() *FakeImageHost {
	f := &FakeImageHost{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// Close shuts the fake server down.
func (f *FakeImageHost) Close() { f.Server.Close() }

// Config returns an image host configuration pointing at the fake.
func (f *FakeImageHost) Config() *config.ImgBBConfig {
	return &config.ImgBBConfig{
		APIKey:   "test-imgbb-key",
		Endpoint: f.Server.URL,
	}
}

// SetFail makes uploads fail while set.
func (f *FakeImageHost) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// Uploads reports how many uploads were accepted.
func (f *FakeImageHost) Uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func (f *FakeImageHost) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"message": "upload failed"},
		})
		return
	}

	f.uploads++
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": map[string]any{
			"url": fmt.Sprintf("https://i.ibb.co/test/upload-%d.jpg", f.uploads),
		},
	})
}
