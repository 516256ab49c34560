package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedEndpoint is the endpoint label for requests that matched no route,
// keeping label cardinality bounded.
const UnmatchedEndpoint = "unmatched"

// Metrics holds the gateway's Prometheus collectors on a private registry.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	rateLimited        *prometheus.CounterVec
	forwardOutcomes    *prometheus.CounterVec
	backendHealth      *prometheus.GaugeVec
	storeFallbacks     *prometheus.CounterVec
	storeOps           *prometheus.CounterVec
	storeOpDuration    *prometheus.HistogramVec
	buildInfo          *prometheus.GaugeVec
	registry           *prometheus.Registry
}

// NewMetrics creates and registers all gateway collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	m.breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state changes",
		},
		[]string{"service", "state"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	m.rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	m.forwardOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "forward_outcomes_total",
			Help:      "Classified outcomes of backend forward calls",
		},
		[]string{"service", "outcome"},
	)

	m.backendHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "backend_health",
			Help:      "Backend health from the last /health probe (1=healthy, 0=unhealthy)",
		},
		[]string{"service"},
	)

	m.storeFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_store_fallback_total",
			Help: "Rate limit checks served by the local fallback store",
		},
		[]string{"reason"},
	)

	m.storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_store_operations_total",
			Help: "Rate limit store operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratelimit_store_operation_duration_seconds",
			Help:    "Duration of rate limit store operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "build_info",
			Help:      "Build information for the gateway",
		},
		[]string{"version", "commit"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.breakerTransitions,
		m.breakerState,
		m.rateLimited,
		m.forwardOutcomes,
		m.backendHealth,
		m.storeFallbacks,
		m.storeOps,
		m.storeOpDuration,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// InitServices pre-populates per-service series so they are exported at zero
// before the first request.
func (m *Metrics) InitServices(services []string) {
	for _, s := range services {
		m.SetBreakerState(s, 0)
	}
}

// RecordRequest records a completed inbound request.
func (m *Metrics) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	if endpoint == "" {
		endpoint = UnmatchedEndpoint
	}
	m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBreakerTransition counts a breaker entering state and updates the
// state gauge with its numeric code.
func (m *Metrics) RecordBreakerTransition(service, state string, code int) {
	m.breakerTransitions.WithLabelValues(service, state).Inc()
	m.breakerState.WithLabelValues(service).Set(float64(code))
}

// SetBreakerState sets the state gauge without counting a transition.
func (m *Metrics) SetBreakerState(service string, code int) {
	m.breakerState.WithLabelValues(service).Set(float64(code))
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited(endpoint string) {
	if endpoint == "" {
		endpoint = UnmatchedEndpoint
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordForwardOutcome counts a classified forward result.
func (m *Metrics) RecordForwardOutcome(service, outcome string) {
	m.forwardOutcomes.WithLabelValues(service, outcome).Inc()
}

// SetBackendHealth records the last probe result for service.
func (m *Metrics) SetBackendHealth(service string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.backendHealth.WithLabelValues(service).Set(v)
}

// RecordStoreFallback counts a rate-limit check answered by the fallback store.
func (m *Metrics) RecordStoreFallback(reason string) {
	m.storeFallbacks.WithLabelValues(reason).Inc()
}

// RecordStoreOperation records one shared store round trip.
func (m *Metrics) RecordStoreOperation(operation, status string, duration time.Duration) {
	m.storeOps.WithLabelValues(operation, status).Inc()
	m.storeOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBuildInfo exports version metadata.
func (m *Metrics) SetBuildInfo(version, commit string) {
	m.buildInfo.WithLabelValues(version, commit).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
