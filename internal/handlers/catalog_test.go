package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/imghost"
	"github.com/soudorock6666/Pet-Shop/internal/middleware"
	"github.com/soudorock6666/Pet-Shop/internal/models"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/internal/testutil"
	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

type catalogTestEnv struct {
	router         chi.Router
	store          *testutil.FakeStore
	images         *testutil.FakeImageHost
	jwtService     *services.JWTService
	sessionService *services.SessionService
	cleanup        func()
}

// setupCatalogRouter builds the product routes exactly as the server mounts
// them: reads behind authentication, mutations additionally behind the admin
// capability check.
func setupCatalogRouter(t *testing.T) *catalogTestEnv {
	t.Helper()

	mr, mrCleanup := testutil.SetupMiniRedis(t)
	redisDB := testutil.NewTestRedisDB(t, mr)

	identity := testutil.NewFakeIdentity()
	store := testutil.NewFakeStore()
	images := testutil.NewFakeImageHost()

	storeClient := firebase.NewFirestoreClient(store.Config())

	jwtService := services.NewJWTService(&config.JWTConfig{
		Secret:        []byte("test-secret-key-min-32-bytes-long!!"),
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}, redisDB)

	sessionService := services.NewSessionService(redisDB, firebase.NewAuthClient(identity.Config()), 7*24*time.Hour)
	profileService := services.NewProfileService(storeClient)
	catalogService := services.NewCatalogService(storeClient, 20*time.Millisecond)
	mutationService := services.NewMutationService(storeClient, imghost.NewClient(images.Config()))

	handler := NewCatalogHandler(catalogService, mutationService, sessionService)

	requireAuth := middleware.JWTAuth(jwtService, sessionService)
	requireAdmin := middleware.RequireAdmin(sessionService, profileService)

	router := chi.NewRouter()
	router.Route("/api/v1/products", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", handler.ListProducts)
		r.Get("/{id}", handler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/", handler.CreateProduct)
			r.Put("/{id}", handler.UpdateProduct)
			r.Delete("/{id}", handler.DeleteProduct)
		})
	})

	return &catalogTestEnv{
		router:         router,
		store:          store,
		images:         images,
		jwtService:     jwtService,
		sessionService: sessionService,
		cleanup: func() {
			identity.Close()
			store.Close()
			images.Close()
			mrCleanup()
			redisDB.Close()
		},
	}
}

// signInAs creates a session with the given role and returns a bearer token.
func (env *catalogTestEnv) signInAs(t *testing.T, role string) string {
	t.Helper()

	ctx := context.Background()
	creds := testutil.TestCredentials()
	session, err := env.sessionService.CreateSession(ctx, creds, "device", testutil.IPAddresses.Public)
	require.NoError(t, err)

	if role != "" {
		env.store.Seed("users", session.UID, map[string]firebase.Value{
			"role": firebase.StringVal(role),
		})
	}

	tokens, err := env.jwtService.GenerateTokenPair(ctx, session.UID, session.Email, session.ID)
	require.NoError(t, err)

	return tokens.AccessToken
}

func (env *catalogTestEnv) do(t *testing.T, method, url string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := testutil.MakeRequest(t, method, url, body)
	if token != "" {
		testutil.SetAuthHeader(req, token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestListProducts(t *testing.T) {
	t.Run("lists the catalog for any authenticated user", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto":    firebase.StringVal("Ração Premium"),
			"quantidade": firebase.IntVal(12),
			"categoria":  firebase.StringVal("racao"),
		})

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodGet, "/api/v1/products", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			Products []models.Product `json:"products"`
			Count    int              `json:"count"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "Ração Premium", resp.Products[0].Produto)
	})

	t.Run("filters via the categoria query parameter", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto":   firebase.StringVal("Ração Premium"),
			"categoria": firebase.StringVal("racao"),
		})
		env.store.Seed("produtos", "p2", map[string]firebase.Value{
			"produto":   firebase.StringVal("Aquário 50L"),
			"categoria": firebase.StringVal("aquarios"),
		})

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodGet, "/api/v1/products?categoria=RACAO", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			Products []models.Product `json:"products"`
			Count    int              `json:"count"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		rec := env.do(t, http.MethodGet, "/api/v1/products", nil, "")
		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
	})
}

func TestGetProduct(t *testing.T) {
	t.Run("fetches one product", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto":    firebase.StringVal("Ração Premium"),
			"quantidade": firebase.IntVal(12),
		})

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodGet, "/api/v1/products/p1", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var product models.Product
		testutil.ParseJSONResponse(t, rec, &product)
		assert.Equal(t, "p1", product.ID)
		assert.Equal(t, 12, product.Quantidade)
	})

	t.Run("unknown id answers 404 with localized message", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodGet, "/api/v1/products/missing", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusNotFound)
		assert.Contains(t, rec.Body.String(), "Produto não encontrado")
	})
}

func TestCreateProduct(t *testing.T) {
	t.Run("admin creates a product", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		token := env.signInAs(t, "admin")
		rec := env.do(t, http.MethodPost, "/api/v1/products", testutil.TestDraft(), token)

		testutil.AssertStatusCode(t, rec, http.StatusCreated)
		assert.Contains(t, rec.Body.String(), "Produto salvo com sucesso")

		var resp struct {
			ID string `json:"id"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		require.NotEmpty(t, resp.ID)

		fields := env.store.Get("produtos", resp.ID)
		require.NotNil(t, fields)
		assert.Equal(t, "Ração Premium", fields["produto"].AsString())
		assert.NotEmpty(t, fields["createdAt"].AsString())
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodPost, "/api/v1/products", testutil.TestDraft(), token)

		testutil.AssertStatusCode(t, rec, http.StatusForbidden)
		assert.Contains(t, rec.Body.String(), "Você não tem permissão")
	})

	t.Run("invalid draft answers 400 with the offending field", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		draft := testutil.TestDraft()
		draft.Quantidade = "abc"

		token := env.signInAs(t, "admin")
		rec := env.do(t, http.MethodPost, "/api/v1/products", draft, token)

		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "quantidade")
		assert.Equal(t, 0, env.images.Uploads())
	})

	t.Run("upload failure aborts the write", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.images.SetFail(true)

		draft := testutil.TestDraft()
		draft.ImageBase64 = "aGVsbG8="

		token := env.signInAs(t, "admin")
		rec := env.do(t, http.MethodPost, "/api/v1/products", draft, token)

		testutil.AssertStatusCode(t, rec, http.StatusBadGateway)
		assert.Nil(t, env.store.Get("produtos", "gen-1"))
	})
}

func TestUpdateProduct(t *testing.T) {
	t.Run("admin update preserves unlisted fields", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto":   firebase.StringVal("Ração Velha"),
			"imagem":    firebase.StringVal("https://i.ibb.co/old.jpg"),
			"createdAt": firebase.StringVal("2026-01-10T09:00:00Z"),
		})

		// Edit forms send the stored image url back with the draft
		draft := testutil.TestDraft()
		draft.ImagemURL = "https://i.ibb.co/old.jpg"

		token := env.signInAs(t, "admin")
		rec := env.do(t, http.MethodPut, "/api/v1/products/p1", draft, token)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		fields := env.store.Get("produtos", "p1")
		assert.Equal(t, "Ração Premium", fields["produto"].AsString())
		assert.Equal(t, "https://i.ibb.co/old.jpg", fields["imagem"].AsString())
		assert.Equal(t, "2026-01-10T09:00:00Z", fields["createdAt"].AsString())
	})

	t.Run("mid-session role revocation blocks the next mutation", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		token := env.signInAs(t, "admin")

		rec := env.do(t, http.MethodPost, "/api/v1/products", testutil.TestDraft(), token)
		require.Equal(t, http.StatusCreated, rec.Code)

		// Role revoked upstream; the same still-valid token no longer mutates
		env.store.Seed("users", "uid-123", map[string]firebase.Value{
			"role": firebase.StringVal("user"),
		})

		rec = env.do(t, http.MethodPost, "/api/v1/products", testutil.TestDraft(), token)
		testutil.AssertStatusCode(t, rec, http.StatusForbidden)
	})
}

func TestDeleteProduct(t *testing.T) {
	t.Run("admin deletes a product", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto": firebase.StringVal("Ração Premium"),
		})

		token := env.signInAs(t, "admin")
		rec := env.do(t, http.MethodDelete, "/api/v1/products/p1", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
		assert.Contains(t, rec.Body.String(), "Produto excluído com sucesso")
		assert.Nil(t, env.store.Get("produtos", "p1"))
	})

	t.Run("non-admin cannot delete", func(t *testing.T) {
		env := setupCatalogRouter(t)
		defer env.cleanup()

		env.store.Seed("produtos", "p1", map[string]firebase.Value{
			"produto": firebase.StringVal("Ração Premium"),
		})

		token := env.signInAs(t, "user")
		rec := env.do(t, http.MethodDelete, "/api/v1/products/p1", nil, token)

		testutil.AssertStatusCode(t, rec, http.StatusForbidden)
		assert.NotNil(t, env.store.Get("produtos", "p1"))
	})
}
