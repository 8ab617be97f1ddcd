package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/metrics"
	"github.com/roach88/storefront/internal/session"
	"github.com/roach88/storefront/internal/testutil"
)

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	catalog  *catalog.Memory
	sessions *session.Manager
}

func setupServer(t *testing.T, opts ...session.Option) *testEnv {
	t.Helper()

	mem := catalog.NewMemory(testutil.NewSequentialGenerator("p"))
	dir := identity.NewMemoryDirectory(bcrypt.MinCost)
	_, err := dir.Add("admin@campus.edu", "secret")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mgr := session.NewManager(mem, dir, append([]session.Option{session.WithMetrics(m)}, opts...)...)
	t.Cleanup(mgr.CloseAll)

	srv := httptest.NewServer(New(mgr, Options{Metrics: m, Gatherer: reg}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar, Timeout: 10 * time.Second}, catalog: mem, sessions: mgr}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) openSession(t *testing.T) {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/signin", `{"email":"admin@campus.edu","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func (e *testEnv) waitView(t *testing.T, pred func(engine.ViewDescription) bool) engine.ViewDescription {
	t.Helper()
	var v engine.ViewDescription
	require.Eventually(t, func() bool {
		resp, body := e.do(t, http.MethodGet, "/api/view", "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		v = engine.ViewDescription{}
		if err := json.Unmarshal(body, &v); err != nil {
			return false
		}
		return pred(v)
	}, 5*time.Second, 10*time.Millisecond)
	return v
}

func decodeError(t *testing.T, body []byte) jsonError {
	t.Helper()
	var e jsonError
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealthz(t *testing.T) {
	env := setupServer(t)
	resp, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := setupServer(t)
	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-42")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-Id"))
}

func TestView_RequiresSession(t *testing.T) {
	env := setupServer(t)
	resp, body := env.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "no_session", decodeError(t, body).Code)
}

func TestView_StudentCatalogWhenSignedOut(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	v := env.waitView(t, func(engine.ViewDescription) bool { return true })
	assert.Equal(t, engine.ModeStudentCatalog, v.Mode)
	assert.Equal(t, engine.StatusReady, v.Status)
	assert.False(t, v.IsAuthenticated)
	assert.Empty(t, v.Products)
}

func TestMutations_RequireSignIn(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	resp, body := env.do(t, http.MethodPost, "/api/products", `{"name":"Pen","price":"1.50","description":"blue"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "not_signed_in", decodeError(t, body).Code)

	list, err := env.catalog.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSignIn_Errors(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		message string
	}{
		{
			name:    "missing password",
			body:    `{"email":"admin@campus.edu","password":""}`,
			status:  http.StatusBadRequest,
			code:    "auth/missing-fields",
			message: "Please fill in both email and password.",
		},
		{
			name:    "wrong password",
			body:    `{"email":"admin@campus.edu","password":"nope"}`,
			status:  http.StatusUnauthorized,
			code:    "auth/invalid-credential",
			message: "Login failed: auth/invalid-credential",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/auth/signin", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			e := decodeError(t, body)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.message, e.Error)
		})
	}
}

func TestAdminFlow(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)
	env.signIn(t)

	env.waitView(t, func(v engine.ViewDescription) bool {
		return v.Mode == engine.ModeAdminDashboard && v.IsAuthenticated
	})

	resp, body := env.do(t, http.MethodPost, "/api/products", `{"name":"Pen","price":"1.5","description":"blue"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"id":"p-1"}`, string(body))

	v := env.waitView(t, func(v engine.ViewDescription) bool { return len(v.Products) == 1 })
	assert.Equal(t, "p-1", v.Products[0].ID)
	assert.Equal(t, 1.5, v.Products[0].Price)
	assert.True(t, v.Products[0].InStock)

	resp, _ = env.do(t, http.MethodPost, "/api/products/p-1/toggle-stock", `{"inStock":true}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.waitView(t, func(v engine.ViewDescription) bool { return len(v.Products) == 1 && !v.Products[0].InStock })

	resp, _ = env.do(t, http.MethodPut, "/api/products/p-1/stock", `{"inStock":true}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.waitView(t, func(v engine.ViewDescription) bool { return len(v.Products) == 1 && v.Products[0].InStock })

	resp, _ = env.do(t, http.MethodDelete, "/api/products/p-1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.waitView(t, func(v engine.ViewDescription) bool { return len(v.Products) == 0 })

	resp, _ = env.do(t, http.MethodPost, "/api/auth/signout", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.waitView(t, func(v engine.ViewDescription) bool {
		return v.Mode == engine.ModeStudentCatalog && !v.IsAuthenticated
	})
}

func TestMutationErrors(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)
	env.signIn(t)

	resp, body := env.do(t, http.MethodPost, "/api/products", `{"name":"Pen","price":"abc","description":"blue"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, "Failed to add product.", e.Error)
	assert.Equal(t, "invalid_product", e.Code)

	resp, body = env.do(t, http.MethodPost, "/api/products", `{"name":"","price":1,"description":"blue"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Details, "name")

	resp, body = env.do(t, http.MethodDelete, "/api/products/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Failed to delete product.", decodeError(t, body).Error)

	resp, body = env.do(t, http.MethodPut, "/api/products/missing/stock", `{"inStock":false}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Failed to update stock status.", decodeError(t, body).Error)

	resp, _ = env.do(t, http.MethodPut, "/api/products/missing/stock", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMode(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	resp, _ := env.do(t, http.MethodPost, "/api/view/mode", `{"mode":"gallery"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Signed out, a request for the admin dashboard changes nothing.
	resp, _ = env.do(t, http.MethodPost, "/api/view/mode", `{"mode":"admin_dashboard"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	v := env.waitView(t, func(engine.ViewDescription) bool { return true })
	assert.Equal(t, engine.ModeStudentCatalog, v.Mode)

	resp, _ = env.do(t, http.MethodPost, "/api/view/reload", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestCloseSession(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	resp, _ := env.do(t, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.catalog.Subscribers())
}

func readEvents(t *testing.T, body io.Reader) <-chan engine.ViewDescription {
	t.Helper()
	out := make(chan engine.ViewDescription, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(body)
		for sc.Scan() {
			line := sc.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var v engine.ViewDescription
			if err := json.Unmarshal([]byte(data), &v); err != nil {
				return
			}
			out <- v
		}
	}()
	return out
}

func TestViewEvents_StreamsViews(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/view/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp.Body)

	env.signIn(t)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-events:
			require.True(t, ok, "stream ended early")
			if v.Mode == engine.ModeAdminDashboard && v.IsAuthenticated {
				return
			}
		case <-deadline:
			t.Fatal("admin view never streamed")
		}
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestViewEvents_OpenStreamKeepsSessionAlive(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	env := setupServer(t, session.WithIdleTimeout(30*time.Minute), session.WithNow(clock.Now))
	env.openSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/view/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp.Body)
	select {
	case _, ok := <-events:
		require.True(t, ok, "stream ended early")
	case <-time.After(5 * time.Second):
		t.Fatal("no view streamed")
	}

	// The catalog is quiet for longer than the idle timeout.
	clock.Advance(31 * time.Minute)
	assert.Equal(t, 0, env.sessions.Sweep())
	assert.Equal(t, 1, env.sessions.Len())

	resp2, _ := env.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	// Once the viewer leaves, the idle timeout applies again.
	cancel()
	require.Eventually(t, func() bool {
		clock.Advance(31 * time.Minute)
		return env.sessions.Sweep() == 1
	}, 5*time.Second, 10*time.Millisecond)

	resp3, _ := env.do(t, http.MethodGet, "/api/view", "")
	assert.Equal(t, http.StatusUnauthorized, resp3.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupServer(t)
	env.openSession(t)

	require.Eventually(t, func() bool {
		resp, body := env.do(t, http.MethodGet, "/metrics", "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		text := string(body)
		return strings.Contains(text, `storefront_http_requests_total{method="POST",route="/api/session",status="201"} 1`) &&
			strings.Contains(text, "storefront_session_active 1")
	}, 5*time.Second, 10*time.Millisecond)
}
