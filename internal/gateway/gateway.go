package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/loangw/internal/auth"
	"github.com/vyrodovalexey/loangw/internal/circuitbreaker"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/health"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/proxy"
	"github.com/vyrodovalexey/loangw/internal/ratelimit"
	"github.com/vyrodovalexey/loangw/internal/router"
)

// Lifecycle errors.
var (
	ErrNilConfig         = errors.New("configuration is required")
	ErrNilVerifier       = errors.New("token verifier is required")
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")
	ErrGatewayNotRunning = errors.New("gateway is not running")
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateRunning indicates the gateway is serving.
	StateRunning
	// StateStopping indicates the gateway is shutting down.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway is the HTTP entry point of the platform.
type Gateway struct {
	config   *config.GatewayConfig
	services map[string]config.ServiceDescriptor
	routes   *router.Table
	breakers *circuitbreaker.Registry
	auth     *auth.Delegate
	health   *health.Aggregator
	clientIP *ratelimit.ClientIPExtractor

	verifier    auth.Verifier
	limiter     *ratelimit.Limiter
	forwarder   *proxy.Forwarder
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      observability.Logger
	breakerOpts []circuitbreaker.Option
	healthOpts  []health.Option

	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	state    atomic.Int32
	done     chan struct{}
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer sets the tracer used by the default forwarder.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithVerifier sets the bearer token verifier.
func WithVerifier(v auth.Verifier) Option {
	return func(g *Gateway) {
		g.verifier = v
	}
}

// WithLimiter enables rate limiting with l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gateway) {
		g.limiter = l
	}
}

// WithForwarder replaces the default forwarder.
func WithForwarder(f *proxy.Forwarder) Option {
	return func(g *Gateway) {
		g.forwarder = f
	}
}

// WithBreakerOptions adds options to every circuit breaker.
func WithBreakerOptions(opts ...circuitbreaker.Option) Option {
	return func(g *Gateway) {
		g.breakerOpts = append(g.breakerOpts, opts...)
	}
}

// WithHealthOptions adds options to the health aggregator.
func WithHealthOptions(opts ...health.Option) Option {
	return func(g *Gateway) {
		g.healthOpts = append(g.healthOpts, opts...)
	}
}

// New validates cfg and builds the gateway. A verifier is required; rate
// limiting is active only when a limiter is given.
func New(cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	g := &Gateway{
		config: cfg,
		logger: observability.NopLogger(),
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.verifier == nil {
		return nil, ErrNilVerifier
	}

	descs, err := config.Services(cfg)
	if err != nil {
		return nil, err
	}

	if g.metrics == nil {
		g.metrics = observability.NewMetrics()
	}

	g.services = make(map[string]config.ServiceDescriptor, len(descs))
	for _, d := range descs {
		g.services[d.Name] = d
	}

	g.routes = router.FromConfig(cfg.Routes)

	breakerOpts := append([]circuitbreaker.Option{
		circuitbreaker.WithObserver(circuitbreaker.MetricsObserver(g.metrics)),
		circuitbreaker.WithObserver(circuitbreaker.LogObserver(g.logger)),
	}, g.breakerOpts...)
	g.breakers = circuitbreaker.NewRegistry(descs, breakerOpts...)
	g.metrics.InitServices(g.breakers.Names())

	g.auth = auth.NewDelegate(g.verifier, cfg.Auth, auth.WithLogger(g.logger))

	if g.forwarder == nil {
		g.forwarder = proxy.New(
			proxy.WithLogger(g.logger),
			proxy.WithMetrics(g.metrics),
			proxy.WithTracer(g.tracer),
		)
	}

	healthOpts := append([]health.Option{
		health.WithTimeout(cfg.Health.Timeout.Duration()),
		health.WithPath(cfg.Health.Path),
		health.WithMetrics(g.metrics),
		health.WithLogger(g.logger),
	}, g.healthOpts...)
	g.health = health.NewAggregator(descs, healthOpts...)

	g.clientIP = ratelimit.NewClientIPExtractor(cfg.RateLimit.TrustedProxies)
	g.engine = g.buildEngine()
	g.state.Store(int32(StateStopped))

	return g, nil
}

func (g *Gateway) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.RedirectTrailingSlash = false
	e.RedirectFixedPath = false

	e.Use(
		Recovery(g.logger),
		RequestID(),
		AccessLog(g.logger),
		Metrics(g.metrics, g.routes),
	)
	if g.limiter != nil {
		e.Use(RateLimit(g.limiter, g.clientIP, g.config.RateLimit.PathPrefix, g.routes, g.metrics, g.logger))
	}
	if g.config.CORS.Enabled {
		e.Use(CORS(g.config.CORS))
	}

	e.GET(PathHealth, g.handleHealth)
	e.GET(PathMetrics, gin.WrapH(g.metrics.Handler()))
	e.GET(PathBreakerStatus, g.handleBreakerStatus)
	e.POST(PathBreakerReset, g.handleBreakerReset)
	e.NoRoute(g.handleProxy)

	return e
}

// Handler returns the HTTP handler of the gateway.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Breakers returns the circuit breaker registry.
func (g *Gateway) Breakers() *circuitbreaker.Registry {
	return g.breakers
}

// State returns the lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Addr returns the bound listen address, or nil when not running.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return ErrGatewayNotStopped
	}

	addr := g.config.GetServerAddress()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           g.engine,
		ReadTimeout:       g.config.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      g.config.Server.WriteTimeout.Duration(),
		IdleTimeout:       g.config.Server.IdleTimeout.Duration(),
		MaxHeaderBytes:    1 << 20,
	}

	g.mu.Lock()
	g.server = srv
	g.listener = ln
	g.done = make(chan struct{})
	g.mu.Unlock()

	g.logger.Info("gateway started",
		observability.String("address", ln.Addr().String()),
		observability.Int("services", len(g.services)),
		observability.Int("routes", len(g.routes.Entries())),
		observability.Bool("rate_limit", g.limiter != nil),
	)

	go g.serve(srv, ln, g.done)

	return nil
}

func (g *Gateway) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		g.logger.Error("server error", observability.Error(err))
	}
}

// Stop drains in-flight requests until ctx ends, then closes remaining
// connections.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}
	defer g.state.Store(int32(StateStopped))

	g.mu.Lock()
	srv, done := g.server, g.done
	g.mu.Unlock()

	g.logger.Info("stopping gateway")

	var err error
	if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
		err = fmt.Errorf("failed to shutdown gracefully: %w", shutdownErr)
		if closeErr := srv.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	<-done

	g.mu.Lock()
	g.server = nil
	g.listener = nil
	g.mu.Unlock()

	g.logger.Info("gateway stopped")

	return err
}
