package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/server/config"
	"github.com/dmitrijs2005/bookstore/internal/server/metrics"
	"github.com/dmitrijs2005/bookstore/internal/server/password"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
	"github.com/dmitrijs2005/bookstore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookstore/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	router *gin.Engine
	clock  *testClock
	users  *services.UserService
}

func generousRates() config.Rates {
	return config.Rates{
		Default: ratelimit.Rate{Limit: 100, Window: time.Second},
		Normal:  ratelimit.Rate{Limit: 100, Window: time.Minute},
		Slow:    ratelimit.Rate{Limit: 100, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, rates config.Rates, opts ...Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	users, err := services.NewUserService(nil, repomanager.NewMemoryRepositoryManager(),
		&config.Config{SecretKey: "test-secret", TokenLifetime: 600 * time.Second},
		services.WithHasher(password.NewHasher(4)), services.WithClock(clock.Now))
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiterWithClock(clock.Now)
	r, err := NewRouter(NewAPI(users, limiter, rates, opts...), []string{"10.0.0.1"})
	require.NoError(t, err)

	return &testServer{router: r, clock: clock, users: users}
}

type reqOpt func(*http.Request)

func basic(u, p string) reqOpt { return func(r *http.Request) { r.SetBasicAuth(u, p) } }
func bearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}
func from(addr string) reqOpt { return func(r *http.Request) { r.RemoteAddr = addr } }
func header(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (s *testServer) do(method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) registerUser(t *testing.T, name, pw string) {
	t.Helper()
	w := s.do(http.MethodPost, "/users", map[string]string{"username": name, "password": pw})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) tokenFor(t *testing.T, name, pw string) string {
	t.Helper()
	w := s.do(http.MethodGet, "/token", nil, basic(name, pw))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestEntrance(t *testing.T) {
	s := newTestServer(t, generousRates())

	w := s.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	data := body["data"].([]any)
	assert.Len(t, data, len(routes))

	first := data[0].(map[string]any)
	assert.Equal(t, "/", first["url"])
	assert.Equal(t, false, first["require_login"])
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, generousRates())

	w := s.do(http.MethodPost, "/users", map[string]string{
		"username": "alice", "password": "secret123", "email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "alice@example.com", data["email"])
	assert.NotZero(t, data["id"])
	assert.NotContains(t, w.Body.String(), "secret123")
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/users", map[string]string{"username": "alice", "password": "other-pass"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"status": "error", "message": "User already exist"}, decode(t, w))

	w = s.do(http.MethodPost, "/users", map[string]string{
		"username": "alicia", "password": "secret123", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t, generousRates())

	for name, body := range map[string]any{
		"short password":                    map[string]string{"username": "bob", "password": "short"},
		"long password":                     map[string]string{"username": "bob", "password": strings.Repeat("p", 61)},
		"missing username":                  map[string]string{"password": "secret123"},
		"long username":                     map[string]string{"username": strings.Repeat("u", 121), "password": "secret123"},
		"bad email":                         map[string]string{"username": "bob", "password": "secret123", "email": "nope"},
		"multibyte password over 60 bytes":  map[string]string{"username": "bob", "password": strings.Repeat("é", 60)},
		"multibyte username over 120 bytes": map[string]string{"username": strings.Repeat("é", 61), "password": "secret123"},
		"not an object":                     []int{1, 2},
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/users", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", decode(t, w)["status"])
		})
	}
}

func TestRegister_LimitsCountBytes(t *testing.T) {
	s := newTestServer(t, generousRates())

	// 4 runes, 8 bytes.
	w := s.do(http.MethodPost, "/users", map[string]string{"username": "ëlsa", "password": "éééé"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/users", map[string]string{"username": strings.Repeat("é", 60), "password": strings.Repeat("é", 30)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/users", map[string]string{"username": "zoe", "password": strings.Repeat("é", 31)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

func TestToken(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.registerUser(t, "alice", "secret123")

	w := s.do(http.MethodGet, "/token", nil, basic("alice", "secret123"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 600, body["expires_in"])
	assert.NotEmpty(t, body["token"])

	w = s.do(http.MethodGet, "/token?expires_in=60", nil, basic("alice", "secret123"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 60, decode(t, w)["expires_in"])

	for _, bad := range []string{"0", "-5", "soon", "18446744074", "9223372037", "99999999999999999999"} {
		w = s.do(http.MethodGet, "/token?expires_in="+bad, nil, basic("alice", "secret123"))
		assert.Equal(t, http.StatusBadRequest, w.Code, "expires_in=%s", bad)
	}
}

func TestProtectedRoutes_Unauthorized(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.registerUser(t, "alice", "secret123")

	for name, opts := range map[string][]reqOpt{
		"no credentials":   nil,
		"wrong password":   {basic("alice", "wrong-pass")},
		"unknown user":     {basic("mallory", "secret123")},
		"garbage bearer":   {bearer("a.b.c")},
		"unknown scheme":   {header("Authorization", "Digest abc")},
		"empty basic user": {basic("", "secret123")},
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/me", nil, opts...)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="bookstore"`, w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, map[string]any{"status": "error", "message": "Authentication failed."}, decode(t, w))
		})
	}
}

func TestTokenAuthentication(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.registerUser(t, "alice", "secret123")
	tok := s.tokenFor(t, "alice", "secret123")

	w := s.do(http.MethodGet, "/me", nil, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["data"].(map[string]any)["username"])

	w = s.do(http.MethodGet, "/me", nil, basic(tok, "anything"))
	require.Equal(t, http.StatusOK, w.Code)

	s.clock.Advance(601 * time.Second)
	w = s.do(http.MethodGet, "/me", nil, bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserAuth(t *testing.T) {
	s := newTestServer(t, generousRates())
	s.registerUser(t, "alice", "secret123")
	tok := s.tokenFor(t, "alice", "secret123")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := s.do(method, "/user-auth", map[string]string{"username_or_token": "alice", "password": "secret123"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"status": "success", "data": "alice"}, decode(t, w))

		w = s.do(method, "/user-auth", map[string]string{"username_or_token": tok, "password": ""})
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(method, "/user-auth", map[string]string{"username_or_token": "alice", "password": "nope-nope"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(http.MethodPost, "/user-auth", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit_SlowClassKeyedByUser(t *testing.T) {
	rates := generousRates()
	rates.Slow = ratelimit.Rate{Limit: 1, Window: time.Minute}
	s := newTestServer(t, rates)
	s.registerUser(t, "alice", "secret123")
	s.registerUser(t, "bob", "secret456")

	w := s.do(http.MethodGet, "/token", nil, basic("alice", "secret123"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	s.clock.Advance(20 * time.Second)
	w = s.do(http.MethodGet, "/token", nil, basic("alice", "secret123"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get("Retry-After"))
	assert.Equal(t, map[string]any{"status": "error", "message": "Rate limit exceeded: 1 per minute"}, decode(t, w))

	// Same address, different user: separate window.
	w = s.do(http.MethodGet, "/token", nil, basic("bob", "secret456"))
	assert.Equal(t, http.StatusOK, w.Code)

	// Other classes do not share the slow window.
	w = s.do(http.MethodGet, "/me", nil, basic("alice", "secret123"))
	assert.Equal(t, http.StatusOK, w.Code)

	s.clock.Advance(40 * time.Second)
	w = s.do(http.MethodGet, "/token", nil, basic("alice", "secret123"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_PublicRoutesKeyedByOrigin(t *testing.T) {
	rates := generousRates()
	rates.Normal = ratelimit.Rate{Limit: 2, Window: time.Minute}
	s := newTestServer(t, rates)

	for i, name := range []string{"u1", "u2"} {
		w := s.do(http.MethodPost, "/users", map[string]string{"username": name, "password": "secret123"}, from("192.0.2.7:1000"))
		require.Equal(t, http.StatusCreated, w.Code, "request %d", i)
	}

	w := s.do(http.MethodPost, "/users", map[string]string{"username": "u3", "password": "secret123"}, from("192.0.2.7:2000"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w = s.do(http.MethodPost, "/users", map[string]string{"username": "u3", "password": "secret123"}, from("192.0.2.8:1000"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimit_TrustedProxyForwardedFor(t *testing.T) {
	rates := generousRates()
	rates.Default = ratelimit.Rate{Limit: 1, Window: time.Second}
	s := newTestServer(t, rates)

	proxy := from("10.0.0.1:5555")

	w := s.do(http.MethodGet, "/", nil, proxy, header("X-Forwarded-For", "203.0.113.1"))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/", nil, proxy, header("X-Forwarded-For", "203.0.113.2"))
	require.Equal(t, http.StatusOK, w.Code, "distinct forwarded clients get distinct windows")
	w = s.do(http.MethodGet, "/", nil, proxy, header("X-Forwarded-For", "203.0.113.1"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Untrusted peers cannot choose their key.
	untrusted := from("198.51.100.9:1")
	w = s.do(http.MethodGet, "/", nil, untrusted, header("X-Forwarded-For", "203.0.113.3"))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/", nil, untrusted, header("X-Forwarded-For", "203.0.113.4"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Rate) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimit_BackendErrorLetsRequestThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users, err := services.NewUserService(nil, repomanager.NewMemoryRepositoryManager(),
		&config.Config{SecretKey: "k"}, services.WithHasher(password.NewHasher(4)))
	require.NoError(t, err)

	r, err := NewRouter(NewAPI(users, failingLimiter{}, generousRates()), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, generousRates())

	w := s.do(http.MethodGet, "/healthz", nil, header("X-Request-ID", "abc-123"))
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/healthz", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestHealthzAndNotFound(t *testing.T) {
	s := newTestServer(t, generousRates())

	w := s.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, w))

	w = s.do(http.MethodGet, "/authors", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rates := generousRates()
	rates.Default = ratelimit.Rate{Limit: 1, Window: time.Second}
	s := newTestServer(t, rates, WithMetrics(m, reg))

	s.do(http.MethodGet, "/", nil)
	s.do(http.MethodGet, "/", nil)

	w := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bookstore_ratelimit_rejections_total{class="default"} 1`)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(-time.Second))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
