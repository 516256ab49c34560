package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/loangw/internal/auth/jwt"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

var testKey = []byte("gateway-test-key")

// backend is a fake service recording the requests it receives.
type backend struct {
	srv     *httptest.Server
	mu      sync.Mutex
	reqs    []*http.Request
	bodies  []string
	handler http.HandlerFunc
}

func newBackend(t *testing.T, h http.HandlerFunc) *backend {
	t.Helper()

	b := &backend{handler: h}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.reqs = append(b.reqs, r.Clone(r.Context()))
		b.bodies = append(b.bodies, string(body))
		b.mu.Unlock()

		if b.handler != nil {
			b.handler(w, r)
			return
		}
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *backend) hits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

func (b *backend) last() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reqs[len(b.reqs)-1]
}

func closedURL(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return "http://" + addr
}

// testConfig points every default service at a healthy fake backend.
func testConfig(t *testing.T) (*config.GatewayConfig, map[string]*backend) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Auth.SecretKey = string(testKey)

	backends := make(map[string]*backend, len(cfg.Services))
	for i := range cfg.Services {
		b := newBackend(t, nil)
		backends[cfg.Services[i].Name] = b
		cfg.Services[i].URL = b.srv.URL
		cfg.Services[i].Timeout = config.Duration(2 * time.Second)
	}

	return cfg, backends
}

func setService(cfg *config.GatewayConfig, name, url string, mutate func(*config.ServiceConfig)) {
	for i := range cfg.Services {
		if cfg.Services[i].Name == name {
			cfg.Services[i].URL = url
			if mutate != nil {
				mutate(&cfg.Services[i])
			}
		}
	}
}

func newTestGateway(t *testing.T, cfg *config.GatewayConfig, opts ...Option) *Gateway {
	t.Helper()

	v, err := jwt.NewVerifier(testKey, jwt.AlgHS256)
	require.NoError(t, err)

	all := append([]Option{WithVerifier(v), WithLogger(observability.NopLogger())}, opts...)
	g, err := New(cfg, all...)
	require.NoError(t, err)

	return g
}

func token(t *testing.T, sub string, userID interface{}) string {
	t.Helper()

	tok, err := jwxjwt.NewBuilder().
		Subject(sub).
		Claim(jwt.ClaimUserID, userID).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.HS256, testKey))
	require.NoError(t, err)

	return string(signed)
}

func do(g *Gateway, r *http.Request) *httptest.ResponseRecorder {
	if r.RemoteAddr == "" {
		r.RemoteAddr = "192.0.2.10:5555"
	}
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, r)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

type stubVerifier struct{}

func (stubVerifier) Verify(context.Context, string) (*jwt.Claims, error) {
	return nil, jwt.ErrTokenInvalid
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyBackend drops connections without answering while down is set.
func flakyBackend(t *testing.T, down *atomic.Bool) *backend {
	t.Helper()

	return newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		if down.Load() {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"loans":[]}`))
	})
}
