package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/faisal-mohamed/rfp/internal/auth"
	"github.com/faisal-mohamed/rfp/internal/observability"
	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

type memoryUsers struct {
	users map[string]*auth.User
}

func (m memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrUnknownAccount
}

func (m memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUnknownAccount
	}
	clone := *u
	return &clone, nil
}

func (memoryUsers) TouchLastLogin(context.Context, string, time.Time) error {
	return nil
}

type testServer struct {
	handler http.Handler
	tokens  *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)
	users := memoryUsers{users: map[string]*auth.User{
		"admin": {ID: "admin", Email: "admin@example.com", PasswordHash: hash, Role: rbac.RoleAdmin, Kind: rbac.KindAdmin, Active: true},
	}}

	sessions := shared.NewSessionManager(client, "rfp_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "rfp", time.Minute)
	authService := auth.NewService(users, hasher, logger)
	rbacMW := rbac.Middleware{Logger: logger}

	handler := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		AuthMiddleware:     auth.Middleware{Service: authService, Tokens: tokens, Sessions: sessions, Logger: logger},
		AuthHandler:        auth.NewHandler(logger, authService, tokens, sessions, csrf),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacMW),
		Metrics:            observability.NewMetrics(),
	})
	return &testServer{handler: handler, tokens: tokens}
}

func (s *testServer) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.7:4000"
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Result().Cookies(), "anonymous reads do not create sessions")
}

func TestUnknownRouteIsProblem(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestCookieSessionRequiresCSRF(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token     string `json:"token"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "rfp_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	sessionHeader := http.Header{"Cookie": {cookie.Name + "=" + cookie.Value}}

	rec = srv.do(http.MethodGet, "/permissions/me", "", sessionHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/users":true`)

	rec = srv.do(http.MethodPost, "/auth/logout", "", sessionHeader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	withToken := sessionHeader.Clone()
	withToken.Set("X-CSRF-Token", login.CSRFToken)
	rec = srv.do(http.MethodPost, "/auth/logout", "", withToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(http.MethodGet, "/permissions/me", "", sessionHeader)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerRequestsSkipCSRF(t *testing.T) {
	srv := newTestServer(t)
	token, _, err := srv.tokens.Issue("admin")
	require.NoError(t, err)

	rec := srv.do(http.MethodPost, "/auth/logout", "", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(http.MethodGet, "/healthz", "", nil)
	rec := srv.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rfp_http_requests_total")
}
