package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/identity"
	"github.com/terraconstructs/estate/internal/identity/identitytest"
	"github.com/terraconstructs/estate/internal/logging"
	estatemiddleware "github.com/terraconstructs/estate/internal/middleware"
	"github.com/terraconstructs/estate/internal/migrations"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
)

type testServer struct {
	handler  http.Handler
	db       *bun.DB
	repo     repository.PrincipalRepository
	verifier *identitytest.Verifier
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()

	db, err := bunx.NewDB("file::memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	repo := repository.NewBunPrincipalRepository(db)
	verifier := identitytest.NewVerifier()
	reg := prometheus.NewRegistry()

	svc, err := iam.NewIAMService(iam.IAMServiceDependencies{
		Principals: repo,
		Verifier:   identity.WithTimeout(verifier, time.Second),
		Metrics:    telemetry.NewAuthMetrics(reg),
		Logger:     logging.Discard(),
	}, iam.IAMServiceConfig{StoreTimeout: time.Second})
	require.NoError(t, err)

	router, err := NewRouter(RouterOptions{
		IAMService:       svc,
		Logger:           logging.Discard(),
		IdentityProvider: "firebase",
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimit:        rl,
		HTTPMetrics:      telemetry.NewHTTPMetrics(reg),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	require.NoError(t, err)

	return &testServer{handler: router, db: db, repo: repo, verifier: verifier}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// register signs up token's subject and returns the created record.
func (s *testServer) register(t *testing.T, token, subject, email string) principalResponse {
	t.Helper()
	s.verifier.Add(token, identity.Claims{Subject: subject, Email: email, EmailVerified: true})
	rec := s.do(t, http.MethodPost, "/auth/register", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[principalResponse](t, rec)
}

func (s *testServer) makeAdmin(t *testing.T, id string) {
	t.Helper()
	_, err := s.repo.SetRole(context.Background(), id, auth.RoleAdmin)
	require.NoError(t, err)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[estatemiddleware.ErrorBody](t, rec)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestNewRouter_RequiresService(t *testing.T) {
	_, err := NewRouter(RouterOptions{})
	require.Error(t, err)
}

func TestRegistrationLifecycle(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	created := s.register(t, "tok-e1", "E1", "a@x.com")
	assert.Equal(t, "E1", created.ExternalID)
	assert.Equal(t, "a@x.com", created.Email)
	assert.Equal(t, auth.RoleUser, created.Role)
	assert.Equal(t, []string{}, created.Favorites)

	rec := s.do(t, http.MethodPost, "/auth/register", "tok-e1", nil)
	assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeAlreadyRegistered)

	rec = s.do(t, http.MethodGet, "/auth/me", "tok-e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[principalResponse](t, rec)
	assert.Equal(t, created.ID, me.ID)
	assert.NotNil(t, me.LastLoginAt)
}

func TestRegister_RoleInBodyIgnored(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.verifier.Add("tok", identity.Claims{Subject: "E1", Email: "a@x.com"})

	rec := s.do(t, http.MethodPost, "/auth/register", "tok", map[string]string{"role": "admin", "displayName": "Ann"})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[principalResponse](t, rec)
	assert.Equal(t, auth.RoleUser, p.Role)
	assert.Equal(t, "Ann", p.DisplayName)
}

func TestRegister_MalformedBody(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.verifier.Add("tok", identity.Claims{Subject: "E1", Email: "a@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeInvalidRequest)

	// Without a token the authentication failure wins over the body.
	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnauthorized, estatemiddleware.CodeNoToken)

	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnauthorized, estatemiddleware.CodeInvalidToken)
}

func TestRegister_RateLimited(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/auth/register", "", nil)
		assertError(t, rec, http.StatusUnauthorized, estatemiddleware.CodeNoToken)
	}
	rec := s.do(t, http.MethodPost, "/auth/register", "", nil)
	assertError(t, rec, http.StatusTooManyRequests, estatemiddleware.CodeRateLimited)
}

func TestAuthenticationFailures(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.verifier.Add("stranger", identity.Claims{Subject: "E9", Email: "z@x.com"})

	assertError(t, s.do(t, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized, estatemiddleware.CodeNoToken)
	assertError(t, s.do(t, http.MethodGet, "/auth/me", "forged", nil), http.StatusUnauthorized, estatemiddleware.CodeInvalidToken)
	assertError(t, s.do(t, http.MethodGet, "/auth/me", "stranger", nil), http.StatusForbidden, estatemiddleware.CodeNotRegistered)
	assertError(t, s.do(t, http.MethodGet, "/api/protected", "", nil), http.StatusUnauthorized, estatemiddleware.CodeNoToken)
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	created := s.register(t, "tok", "E1", "a@x.com")

	rec := s.do(t, http.MethodPut, "/auth/me", "tok", map[string]string{
		"displayName": "Ann",
		"phoneNumber": "+15551234567",
		"role":        "admin",
		"email":       "evil@x.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[principalResponse](t, rec)
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, "Ann", p.DisplayName)
	assert.Equal(t, "+15551234567", p.PhoneNumber)
	assert.Equal(t, auth.RoleUser, p.Role)
	assert.Equal(t, "a@x.com", p.Email)

	rec = s.do(t, http.MethodPut, "/auth/me", "tok", map[string]string{"phoneNumber": "555-1234"})
	assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeInvalidRequest)
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.register(t, "tok", "E1", "a@x.com")

	rec := s.do(t, http.MethodPost, "/auth/favorites/L1", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"L1"}, decode[favoritesResponse](t, rec).Favorites)

	rec = s.do(t, http.MethodPost, "/auth/favorites/L1", "tok", nil)
	assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeAlreadyFavorited)

	rec = s.do(t, http.MethodDelete, "/auth/favorites/absent", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"L1"}, decode[favoritesResponse](t, rec).Favorites)

	rec = s.do(t, http.MethodDelete, "/auth/favorites/L1", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[favoritesResponse](t, rec)
	assert.Equal(t, []string{}, body.Favorites)
	assert.NotEmpty(t, body.Message)
}

func TestAdministration(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	admin := s.register(t, "tok-admin", "A1", "admin@x.com")
	s.makeAdmin(t, admin.ID)
	user := s.register(t, "tok-e1", "E1", "a@x.com")

	t.Run("non admin is forbidden", func(t *testing.T) {
		assertError(t, s.do(t, http.MethodGet, "/auth/users", "tok-e1", nil), http.StatusForbidden, estatemiddleware.CodeForbidden)
		assertError(t, s.do(t, http.MethodGet, "/api/admin", "tok-e1", nil), http.StatusForbidden, estatemiddleware.CodeForbidden)
		rec := s.do(t, http.MethodPut, "/auth/users/"+user.ID+"/role", "tok-e1", map[string]string{"role": "admin"})
		assertError(t, rec, http.StatusForbidden, estatemiddleware.CodeForbidden)
	})

	t.Run("invalid role", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/auth/users/"+user.ID+"/role", "tok-admin", map[string]string{"role": "root"})
		assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeInvalidRole)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/auth/users/nope/role", "tok-admin", map[string]string{"role": "agent"})
		assertError(t, rec, http.StatusNotFound, estatemiddleware.CodeNotFound)
	})

	t.Run("elevate to agent", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/auth/users/"+user.ID+"/role", "tok-admin", map[string]string{"role": "agent"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, auth.RoleAgent, decode[principalResponse](t, rec).Role)

		assertError(t, s.do(t, http.MethodGet, "/api/admin", "tok-e1", nil), http.StatusForbidden, estatemiddleware.CodeForbidden)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/admin", "tok-admin", nil).Code)
	})

	t.Run("list with filters", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/auth/users", "tok-admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode[usersResponse](t, rec).Count)

		rec = s.do(t, http.MethodGet, "/auth/users?role=agent", "tok-admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		agents := decode[usersResponse](t, rec)
		require.Len(t, agents.Users, 1)
		assert.Equal(t, user.ID, agents.Users[0].ID)

		rec = s.do(t, http.MethodGet, `/auth/users?filter=email+matches+%22%5Eadmin%22`, "tok-admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		admins := decode[usersResponse](t, rec)
		require.Len(t, admins.Users, 1)
		assert.Equal(t, admin.ID, admins.Users[0].ID)

		rec = s.do(t, http.MethodGet, "/auth/users?filter=%3D%3D%3D", "tok-admin", nil)
		assertError(t, rec, http.StatusBadRequest, estatemiddleware.CodeInvalidRequest)
	})
}

func TestProtectedRoute(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	created := s.register(t, "tok", "E1", "a@x.com")

	rec := s.do(t, http.MethodGet, "/api/protected", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[messageResponse](t, rec)
	require.NotNil(t, body.User)
	assert.Equal(t, created.ID, body.User.ID)
	assert.Equal(t, auth.RoleUser, body.User.Role)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	rec := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[healthResponse](t, rec)
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "connected", body.Database)
	assert.Equal(t, "firebase", body.IdentityProvider)
	assert.False(t, body.Timestamp.IsZero())

	require.NoError(t, s.db.Close())
	rec = s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", decode[healthResponse](t, rec).Database)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.do(t, http.MethodGet, "/api/health", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "estateapi_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/auth/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	assertError(t, s.do(t, http.MethodGet, "/nope", "", nil), http.StatusNotFound, estatemiddleware.CodeNotFound)
}
