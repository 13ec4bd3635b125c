package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soudorock6666/Pet-Shop/internal/firebase"
	"github.com/soudorock6666/Pet-Shop/internal/middleware"
	"github.com/soudorock6666/Pet-Shop/internal/models"
	"github.com/soudorock6666/Pet-Shop/internal/services"
	"github.com/soudorock6666/Pet-Shop/internal/testutil"
	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

type authHandlerEnv struct {
	handler        *AuthHandler
	identity       *testutil.FakeIdentity
	store          *testutil.FakeStore
	jwtService     *services.JWTService
	sessionService *services.SessionService
	bootstrap      *services.Bootstrap
	cleanup        func()
}

func setupAuthHandler(t *testing.T) *authHandlerEnv {
	t.Helper()

	mr, mrCleanup := testutil.SetupMiniRedis(t)
	redisDB := testutil.NewTestRedisDB(t, mr)

	identity := testutil.NewFakeIdentity()
	store := testutil.NewFakeStore()

	authClient := firebase.NewAuthClient(identity.Config())
	storeClient := firebase.NewFirestoreClient(store.Config())

	jwtService := services.NewJWTService(&config.JWTConfig{
		Secret:        []byte("test-secret-key-min-32-bytes-long!!"),
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}, redisDB)

	sessionService := services.NewSessionService(redisDB, authClient, 7*24*time.Hour)
	profileService := services.NewProfileService(storeClient)
	bootstrap := services.NewBootstrap(profileService)
	bootstrap.OnSignedOut()

	handler := NewAuthHandler(authClient, jwtService, sessionService, profileService, bootstrap, false)

	return &authHandlerEnv{
		handler:        handler,
		identity:       identity,
		store:          store,
		jwtService:     jwtService,
		sessionService: sessionService,
		bootstrap:      bootstrap,
		cleanup: func() {
			identity.Close()
			store.Close()
			mrCleanup()
			redisDB.Close()
		},
	}
}

// login runs the full login flow and returns the parsed response.
func (env *authHandlerEnv) login(t *testing.T, email, password string) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()

	req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	rec := httptest.NewRecorder()
	env.handler.Login(rec, req)

	var resp authResponse
	if rec.Code == http.StatusOK {
		testutil.ParseJSONResponse(t, rec, &resp)
	}
	return rec, resp
}

// authedRequest builds a request whose context carries the given session,
// as JWTAuth would have left it.
func authedRequest(t *testing.T, method, url string, body interface{}, session *models.Session) *http.Request {
	t.Helper()
	req := testutil.MakeRequest(t, method, url, body)
	ctx := context.WithValue(req.Context(), middleware.SessionKey, session)
	return req.WithContext(ctx)
}

func TestLogin(t *testing.T) {
	t.Run("successful login returns tokens and sets cookies", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")

		rec, resp := env.login(t, "test@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusOK)

		assert.Equal(t, "uid-test", resp.UID)
		assert.Equal(t, "test@example.com", resp.Email)
		require.NotNil(t, resp.Tokens)
		assert.NotEmpty(t, resp.Tokens.AccessToken)
		assert.NotEmpty(t, resp.Tokens.RefreshToken)

		testutil.AssertCookie(t, rec, "access_token")
		testutil.AssertCookie(t, rec, "refresh_token")
		testutil.AssertCookie(t, rec, "session_id")

		// Shell state reflects the sign-in
		assert.Equal(t, services.StateAuthenticated, env.bootstrap.Current().State)
	})

	t.Run("admin capability is resolved on login", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("admin@example.com", "password123")
		env.store.Seed("users", "uid-admin", map[string]firebase.Value{
			"role": firebase.StringVal("admin"),
		})

		rec, resp := env.login(t, "admin@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusOK)
		assert.Equal(t, models.CapabilityAdmin, resp.Capability)
	})

	t.Run("response capability is the caller's own, not the shell snapshot's", func(t *testing.T) {
		// The bootstrap state machine is process-wide; another client's
		// sign-in can own the published snapshot by the time this login
		// answers. Pin the bootstrap's resolver to the wrong capability
		// to prove the response is derived from the caller's profile.
		mr, mrCleanup := testutil.SetupMiniRedis(t)
		defer mrCleanup()
		redisDB := testutil.NewTestRedisDB(t, mr)
		defer redisDB.Close()

		identity := testutil.NewFakeIdentity()
		defer identity.Close()
		store := testutil.NewFakeStore()
		defer store.Close()

		jwtService := services.NewJWTService(&config.JWTConfig{
			Secret:        []byte("test-secret-key-min-32-bytes-long!!"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
		}, redisDB)
		sessionService := services.NewSessionService(redisDB, firebase.NewAuthClient(identity.Config()), 7*24*time.Hour)
		profileService := services.NewProfileService(firebase.NewFirestoreClient(store.Config()))
		bootstrap := services.NewBootstrap(pinnedResolver{capability: models.CapabilityUser})
		bootstrap.OnSignedOut()

		handler := NewAuthHandler(firebase.NewAuthClient(identity.Config()), jwtService, sessionService, profileService, bootstrap, false)

		identity.AddUser("admin@example.com", "password123")
		store.Seed("users", "uid-admin", map[string]firebase.Value{
			"email": firebase.StringVal("admin@example.com"),
			"role":  firebase.StringVal("admin"),
		})

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "admin@example.com",
			"password": "password123",
		})
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp authResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, models.CapabilityAdmin, resp.Capability)
	})

	t.Run("missing profile document is recreated on login", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("maria@example.com", "password123")

		rec, resp := env.login(t, "maria@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusOK)

		fields := env.store.Get("users", resp.UID)
		require.NotNil(t, fields)
		assert.Equal(t, "user", fields["role"].AsString())
		assert.Equal(t, "maria", fields["name"].AsString())
	})

	t.Run("malformed email is rejected before any upstream call", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		// The fake would accept anything; a 400 here proves the shape
		// check fired locally
		rec, _ := env.login(t, "not-an-email", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "Email inválido")
	})

	t.Run("empty password is rejected locally", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		rec, _ := env.login(t, "test@example.com", "")
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "Senha é obrigatória")
	})

	t.Run("wrong password returns localized message", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")

		rec, _ := env.login(t, "test@example.com", "wrong")
		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
		assert.Contains(t, rec.Body.String(), "Senha incorreta")
	})

	t.Run("unknown user returns localized message", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		rec, _ := env.login(t, "nobody@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
		assert.Contains(t, rec.Body.String(), "Usuário não encontrado")
	})

	t.Run("upstream throttling maps to 429", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.SetFailCode("TOO_MANY_ATTEMPTS_TRY_LATER")

		rec, _ := env.login(t, "test@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusTooManyRequests)
		assert.Contains(t, rec.Body.String(), "Muitas tentativas")
	})
}

func TestRegister(t *testing.T) {
	t.Run("creates account, profile, and session", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "new@example.com",
			"password": "password123",
			"name":     "New User",
		})
		rec := httptest.NewRecorder()
		env.handler.Register(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusCreated)

		var resp authResponse
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, "uid-new", resp.UID)
		assert.Equal(t, models.CapabilityUser, resp.Capability)

		// Profile document exists with the default role
		fields := env.store.Get("users", "uid-new")
		require.NotNil(t, fields)
		assert.Equal(t, "user", fields["role"].AsString())
		assert.Equal(t, "New User", fields["name"].AsString())
	})

	t.Run("short password is rejected locally", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "new@example.com",
			"password": "123",
		})
		rec := httptest.NewRecorder()
		env.handler.Register(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "pelo menos 6 caracteres")
	})

	t.Run("duplicate email maps to 409", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("taken@example.com", "password123")

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "taken@example.com",
			"password": "password123",
		})
		rec := httptest.NewRecorder()
		env.handler.Register(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusConflict)
		assert.Contains(t, rec.Body.String(), "já está em uso")
	})
}

func TestRefreshTokenEndpoint(t *testing.T) {
	t.Run("rotates the pair from a cookie", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")
		_, loginResp := env.login(t, "test@example.com", "password123")

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/refresh", nil)
		testutil.SetCookie(req, "refresh_token", loginResp.Tokens.RefreshToken)
		rec := httptest.NewRecorder()
		env.handler.RefreshToken(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var tokens services.TokenPair
		testutil.ParseJSONResponse(t, rec, &tokens)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEqual(t, loginResp.Tokens.RefreshToken, tokens.RefreshToken)

		// The old refresh token was rotated out
		req = testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/refresh", nil)
		testutil.SetCookie(req, "refresh_token", loginResp.Tokens.RefreshToken)
		rec = httptest.NewRecorder()
		env.handler.RefreshToken(rec, req)
		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
	})

	t.Run("accepts the token from the request body", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")
		_, loginResp := env.login(t, "test@example.com", "password123")

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": loginResp.Tokens.RefreshToken,
		})
		rec := httptest.NewRecorder()
		env.handler.RefreshToken(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": "garbage",
		})
		rec := httptest.NewRecorder()
		env.handler.RefreshToken(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the session and clears cookies", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")
		_, loginResp := env.login(t, "test@example.com", "password123")

		session, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, session, 1)

		full, err := env.sessionService.GetSession(context.Background(), loginResp.UID, session[0].ID)
		require.NoError(t, err)

		req := authedRequest(t, http.MethodPost, "/api/v1/auth/logout", nil, full)
		testutil.SetCookie(req, "access_token", loginResp.Tokens.AccessToken)
		testutil.SetCookie(req, "refresh_token", loginResp.Tokens.RefreshToken)
		rec := httptest.NewRecorder()
		env.handler.Logout(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		// Session record is gone
		remaining, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		// Presented tokens no longer validate
		_, err = env.jwtService.ValidateToken(context.Background(), loginResp.Tokens.AccessToken)
		assert.Error(t, err)

		// Shell state is unauthenticated again
		assert.Equal(t, services.StateUnauthenticated, env.bootstrap.Current().State)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("reauthenticates then revokes other sessions", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "oldpassword")
		_, loginResp := env.login(t, "test@example.com", "oldpassword")
		env.login(t, "test@example.com", "oldpassword") // second device

		sessions, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		current, err := env.sessionService.GetSession(context.Background(), loginResp.UID, sessions[0].ID)
		require.NoError(t, err)

		req := authedRequest(t, http.MethodPost, "/api/v1/auth/password", map[string]string{
			"current_password": "oldpassword",
			"new_password":     "newpassword",
		}, current)
		rec := httptest.NewRecorder()
		env.handler.ChangePassword(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		// Only the current session survives
		remaining, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, current.ID, remaining[0].ID)
	})

	t.Run("wrong current password is rejected", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "oldpassword")
		_, loginResp := env.login(t, "test@example.com", "oldpassword")

		sessions, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		current, err := env.sessionService.GetSession(context.Background(), loginResp.UID, sessions[0].ID)
		require.NoError(t, err)

		req := authedRequest(t, http.MethodPost, "/api/v1/auth/password", map[string]string{
			"current_password": "wrong",
			"new_password":     "newpassword",
		}, current)
		rec := httptest.NewRecorder()
		env.handler.ChangePassword(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusUnauthorized)
		assert.Contains(t, rec.Body.String(), "Senha incorreta")
	})

	t.Run("short new password is rejected locally", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := authedRequest(t, http.MethodPost, "/api/v1/auth/password", map[string]string{
			"current_password": "oldpassword",
			"new_password":     "123",
		}, testutil.TestSession())
		rec := httptest.NewRecorder()
		env.handler.ChangePassword(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
	})
}

func TestMe(t *testing.T) {
	t.Run("returns profile and fresh capability", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		session := testutil.TestSession()
		env.store.Seed("users", session.UID, map[string]firebase.Value{
			"email": firebase.StringVal(session.Email),
			"role":  firebase.StringVal("admin"),
			"name":  firebase.StringVal("Test User"),
		})

		req := authedRequest(t, http.MethodGet, "/api/v1/auth/me", nil, session)
		rec := httptest.NewRecorder()
		env.handler.Me(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			UID        string             `json:"uid"`
			Profile    models.UserProfile `json:"profile"`
			Capability models.Capability  `json:"capability"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, session.UID, resp.UID)
		assert.Equal(t, "Test User", resp.Profile.Name)
		assert.Equal(t, models.CapabilityAdmin, resp.Capability)
	})

	t.Run("answers with a fallback profile when the document is missing", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		session := testutil.TestSession()

		req := authedRequest(t, http.MethodGet, "/api/v1/auth/me", nil, session)
		rec := httptest.NewRecorder()
		env.handler.Me(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			Profile    models.UserProfile `json:"profile"`
			Capability models.Capability  `json:"capability"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.Equal(t, session.Email, resp.Profile.Email)
		assert.Equal(t, models.CapabilityUser, resp.Capability)
	})
}

func TestUpdateProfileEndpoint(t *testing.T) {
	t.Run("merges the display name", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		session := testutil.TestSession()
		env.store.Seed("users", session.UID, map[string]firebase.Value{
			"role": firebase.StringVal("admin"),
			"name": firebase.StringVal("Old Name"),
		})

		req := authedRequest(t, http.MethodPut, "/api/v1/auth/profile", map[string]string{
			"name": "New Name",
		}, session)
		rec := httptest.NewRecorder()
		env.handler.UpdateProfile(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		fields := env.store.Get("users", session.UID)
		assert.Equal(t, "New Name", fields["name"].AsString())
		assert.Equal(t, "admin", fields["role"].AsString())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := authedRequest(t, http.MethodPut, "/api/v1/auth/profile", map[string]string{
			"name": "  ",
		}, testutil.TestSession())
		rec := httptest.NewRecorder()
		env.handler.UpdateProfile(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
	})
}

func TestPromoteUser(t *testing.T) {
	// The admin middleware guards the route; the handler itself only needs
	// a session to sign the store write with.
	t.Run("grants the admin role with a merge write", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.store.Seed("users", "uid-maria", map[string]firebase.Value{
			"email": firebase.StringVal("maria@example.com"),
			"role":  firebase.StringVal("user"),
		})

		rec := httptest.NewRecorder()
		env.handler.PromoteUser(rec, promoteRequest(t, "uid-maria"))

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		fields := env.store.Get("users", "uid-maria")
		assert.Equal(t, "admin", fields["role"].AsString())
		assert.Equal(t, "maria@example.com", fields["email"].AsString())
		assert.NotEmpty(t, fields["updatedAt"].AsString())
	})

	t.Run("unknown uid is a 404", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		rec := httptest.NewRecorder()
		env.handler.PromoteUser(rec, promoteRequest(t, "uid-ghost"))

		testutil.AssertStatusCode(t, rec, http.StatusNotFound)
		assert.Contains(t, rec.Body.String(), "Usuário não encontrado")
		assert.Nil(t, env.store.Get("users", "uid-ghost"))
	})
}

// pinnedResolver reports the same capability for every uid, standing in
// for a shell snapshot owned by some other client's sign-in.
type pinnedResolver struct{ capability models.Capability }

func (p pinnedResolver) ResolveCapability(context.Context, string, string) models.Capability {
	return p.capability
}

// promoteRequest builds an authenticated promotion request with the target
// uid bound as a route parameter.
func promoteRequest(t *testing.T, uid string) *http.Request {
	t.Helper()
	req := authedRequest(t, http.MethodPost, "/api/v1/users/"+uid+"/promote", nil, testutil.TestSession())
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("uid", uid)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestState(t *testing.T) {
	t.Run("reports the current shell snapshot", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		req := testutil.MakeRequest(t, http.MethodGet, "/api/v1/auth/state", nil)
		rec := httptest.NewRecorder()
		env.handler.State(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var snapshot services.ShellSnapshot
		testutil.ParseJSONResponse(t, rec, &snapshot)
		assert.Equal(t, services.StateUnauthenticated, snapshot.State)
	})

	t.Run("never exposes the signed-in user's identity", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("maria@example.com", "password123")
		rec, resp := env.login(t, "maria@example.com", "password123")
		testutil.AssertStatusCode(t, rec, http.StatusOK)

		req := testutil.MakeRequest(t, http.MethodGet, "/api/v1/auth/state", nil)
		stateRec := httptest.NewRecorder()
		env.handler.State(stateRec, req)

		testutil.AssertStatusCode(t, stateRec, http.StatusOK)

		var snapshot services.ShellSnapshot
		testutil.ParseJSONResponse(t, stateRec, &snapshot)
		assert.Equal(t, services.StateAuthenticated, snapshot.State)
		assert.Empty(t, snapshot.UID)
		assert.Empty(t, snapshot.Email)
		assert.NotContains(t, stateRec.Body.String(), resp.UID)
		assert.NotContains(t, stateRec.Body.String(), "maria@example.com")
	})
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("lists sessions marking the current one", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")
		_, loginResp := env.login(t, "test@example.com", "password123")
		env.login(t, "test@example.com", "password123")

		sessions, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		current, err := env.sessionService.GetSession(context.Background(), loginResp.UID, sessions[0].ID)
		require.NoError(t, err)

		req := authedRequest(t, http.MethodGet, "/api/v1/auth/sessions", nil, current)
		rec := httptest.NewRecorder()
		env.handler.ListSessions(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			Sessions []struct {
				ID        string `json:"id"`
				IsCurrent bool   `json:"is_current"`
			} `json:"sessions"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		require.Len(t, resp.Sessions, 2)

		currentMarked := 0
		for _, s := range resp.Sessions {
			if s.IsCurrent {
				currentMarked++
				assert.Equal(t, current.ID, s.ID)
			}
		}
		assert.Equal(t, 1, currentMarked)
	})

	t.Run("revoke-others keeps only the current session", func(t *testing.T) {
		env := setupAuthHandler(t)
		defer env.cleanup()

		env.identity.AddUser("test@example.com", "password123")
		_, loginResp := env.login(t, "test@example.com", "password123")
		env.login(t, "test@example.com", "password123")
		env.login(t, "test@example.com", "password123")

		sessions, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, sessions, 3)

		current, err := env.sessionService.GetSession(context.Background(), loginResp.UID, sessions[0].ID)
		require.NoError(t, err)

		req := authedRequest(t, http.MethodPost, "/api/v1/auth/sessions/revoke-others", nil, current)
		rec := httptest.NewRecorder()
		env.handler.RevokeOtherSessions(rec, req)

		testutil.AssertStatusCode(t, rec, http.StatusOK)

		var resp struct {
			RevokedCount int `json:"revoked_count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.RevokedCount)

		remaining, err := env.sessionService.ListUserSessions(context.Background(), loginResp.UID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, current.ID, remaining[0].ID)
	})
}
