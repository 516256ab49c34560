package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

func backend(t *testing.T, status int, hits *int32) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func closedAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return "http://" + addr
}

func svc(t *testing.T, name, base string) config.ServiceDescriptor {
	t.Helper()

	u, err := url.Parse(base)
	require.NoError(t, err)

	return config.ServiceDescriptor{Name: name, BaseURL: u, Timeout: time.Second}
}

func TestAggregator_AllHealthy(t *testing.T) {
	t.Parallel()

	var hits int32
	now := time.Unix(1700000000, 500000000)
	a := NewAggregator([]config.ServiceDescriptor{
		svc(t, "user", backend(t, http.StatusOK, &hits)),
		svc(t, "loan", backend(t, http.StatusOK, &hits)),
	}, WithClock(func() time.Time { return now }))

	report := a.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.InDelta(t, 1700000000.5, report.Timestamp, 1e-3)
	require.Len(t, report.Services, 2)
	for _, name := range []string{"user", "loan"} {
		h := report.Services[name]
		assert.Equal(t, StatusHealthy, h.Status)
		require.NotNil(t, h.ResponseTime)
		assert.GreaterOrEqual(t, *h.ResponseTime, 0.0)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestAggregator_Degraded(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics()
	a := NewAggregator([]config.ServiceDescriptor{
		svc(t, "user", backend(t, http.StatusOK, nil)),
		svc(t, "risk", backend(t, http.StatusServiceUnavailable, nil)),
		svc(t, "file", closedAddr(t)),
	}, WithMetrics(metrics), WithTimeout(time.Second))

	report := a.Check(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusHealthy, report.Services["user"].Status)

	risk := report.Services["risk"]
	assert.Equal(t, StatusUnhealthy, risk.Status)
	assert.NotNil(t, risk.ResponseTime)

	file := report.Services["file"]
	assert.Equal(t, StatusUnhealthy, file.Status)
	assert.Nil(t, file.ResponseTime)

	expected := `
# HELP gateway_backend_health Backend health from the last /health probe (1=healthy, 0=unhealthy)
# TYPE gateway_backend_health gauge
gateway_backend_health{service="file"} 0
gateway_backend_health{service="risk"} 0
gateway_backend_health{service="user"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "gateway_backend_health"))
}

func TestAggregator_ProbeTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	a := NewAggregator([]config.ServiceDescriptor{svc(t, "file", srv.URL)}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	report := a.Check(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Nil(t, report.Services["file"].ResponseTime)
}

func TestAggregator_CustomPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	a := NewAggregator([]config.ServiceDescriptor{svc(t, "user", srv.URL)}, WithPath("/healthz"))
	assert.Equal(t, StatusHealthy, a.Check(context.Background()).Status)
}

func TestReport_JSON(t *testing.T) {
	t.Parallel()

	rt := 0.25
	data, err := json.Marshal(Report{
		Status: StatusDegraded,
		Services: map[string]ServiceHealth{
			"loan": {Status: StatusHealthy, ResponseTime: &rt},
			"file": {Status: StatusUnhealthy},
		},
		Timestamp: 1700000000.5,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": "degraded",
		"services": {
			"loan": {"status": "healthy", "response_time": 0.25},
			"file": {"status": "unhealthy", "response_time": null}
		},
		"timestamp": 1700000000.5
	}`, string(data))
}
