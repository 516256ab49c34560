package health

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates at least one service is unhealthy.
	StatusDegraded Status = "degraded"
)

// ServiceHealth is the probe result of one service. ResponseTime is in
// seconds and nil when the probe failed at the transport level.
type ServiceHealth struct {
	Status       Status   `json:"status"`
	ResponseTime *float64 `json:"response_time"`
}

// Report is the composite health answer. Timestamp is unix seconds.
type Report struct {
	Status    Status                   `json:"status"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp float64                  `json:"timestamp"`
}

// Aggregator probes every backend service.
type Aggregator struct {
	services []config.ServiceDescriptor
	client   *http.Client
	timeout  time.Duration
	path     string
	now      func() time.Time
	metrics  *observability.Metrics
	logger   observability.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithPath sets the probed path.
func WithPath(path string) Option {
	return func(a *Aggregator) {
		if path != "" {
			a.path = path
		}
	}
}

// WithClient sets the HTTP client used for probes.
func WithClient(c *http.Client) Option {
	return func(a *Aggregator) {
		a.client = c
	}
}

// WithClock sets the time source for the report timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithMetrics publishes probe results as gauges.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an aggregator over services.
func NewAggregator(services []config.ServiceDescriptor, opts ...Option) *Aggregator {
	a := &Aggregator{
		services: append([]config.ServiceDescriptor(nil), services...),
		client:   &http.Client{},
		timeout:  config.DefaultHealthTimeout,
		path:     config.DefaultHealthPath,
		now:      time.Now,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Check probes all services concurrently and returns the composite report.
func (a *Aggregator) Check(ctx context.Context) Report {
	results := make([]ServiceHealth, len(a.services))

	var g errgroup.Group
	for i, svc := range a.services {
		g.Go(func() error {
			results[i] = a.probe(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    StatusHealthy,
		Services:  make(map[string]ServiceHealth, len(a.services)),
		Timestamp: float64(a.now().UnixNano()) / float64(time.Second),
	}
	for i, svc := range a.services {
		h := results[i]
		report.Services[svc.Name] = h
		if h.Status != StatusHealthy {
			report.Status = StatusDegraded
		}
		if a.metrics != nil {
			a.metrics.SetBackendHealth(svc.Name, h.Status == StatusHealthy)
		}
	}

	return report
}

func (a *Aggregator) probe(ctx context.Context, svc config.ServiceDescriptor) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.BaseString()+a.path, http.NoBody)
	if err != nil {
		return ServiceHealth{Status: StatusUnhealthy}
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithContext(ctx).Warn("health probe failed",
			observability.String("service", svc.Name),
			observability.Error(err),
		)
		return ServiceHealth{Status: StatusUnhealthy}
	}
	_ = resp.Body.Close()
	elapsed := time.Since(start).Seconds()

	status := StatusHealthy
	if resp.StatusCode != http.StatusOK {
		status = StatusUnhealthy
	}

	return ServiceHealth{Status: status, ResponseTime: &elapsed}
}
