package config

import (
	"net"
	"strconv"
	"time"
)

// Default values for gateway configuration.
const (
	DefaultPort                 = 8000
	DefaultServiceTimeout       = 30 * time.Second
	DefaultFileServiceTimeout   = 60 * time.Second
	DefaultFailureThreshold     = 5
	DefaultRecoveryTimeout      = 60 * time.Second
	DefaultRateLimitWindow      = 60 * time.Second
	DefaultRateLimitMaxRequests = 100
	DefaultRateLimitPathPrefix  = "/api/"
	DefaultRateLimitKeyPrefix   = "rate_limit:"
	DefaultRedisURL             = "redis://localhost:6379/0"
	DefaultHealthTimeout        = 5 * time.Second
	DefaultHealthPath           = "/health"
	DefaultShutdownTimeout      = 30 * time.Second
	DefaultJWTAlgorithm         = "HS256"
)

// GatewayConfig is the root configuration of the gateway.
type GatewayConfig struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Services      []ServiceConfig     `yaml:"services" json:"services"`
	Routes        []RouteConfig       `yaml:"routes" json:"routes"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" json:"rateLimit"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Health        HealthConfig        `yaml:"health" json:"health"`
	CORS          CORSConfig          `yaml:"cors" json:"cors"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address" json:"address"`
	Port            int      `yaml:"port" json:"port"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// ServiceConfig describes one backend service.
type ServiceConfig struct {
	Name           string               `yaml:"name" json:"name"`
	URL            string               `yaml:"url" json:"url"`
	Timeout        Duration             `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the breaker of a service. Zero values take
// the gateway defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int      `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
	RecoveryTimeout  Duration `yaml:"recoveryTimeout,omitempty" json:"recoveryTimeout,omitempty"`
}

// RouteConfig maps a path prefix to a service name.
type RouteConfig struct {
	Prefix  string `yaml:"prefix" json:"prefix"`
	Service string `yaml:"service" json:"service"`
}

// RateLimitConfig configures client rate limiting.
type RateLimitConfig struct {
	Enabled        bool           `yaml:"enabled" json:"enabled"`
	Window         Duration       `yaml:"window" json:"window"`
	MaxRequests    int            `yaml:"maxRequests" json:"maxRequests"`
	PathPrefix     string         `yaml:"pathPrefix" json:"pathPrefix"`
	KeyPrefix      string         `yaml:"keyPrefix" json:"keyPrefix"`
	Exact          bool           `yaml:"exact" json:"exact"`
	Store          string         `yaml:"store" json:"store"`
	TrustedProxies []string       `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
	Redis          RedisConfig    `yaml:"redis" json:"redis"`
	Fallback       FallbackConfig `yaml:"fallback" json:"fallback"`
}

// Rate limit store kinds.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// RedisConfig configures the shared rate limit store.
type RedisConfig struct {
	URL          string   `yaml:"url" json:"url"`
	PoolSize     int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	DialTimeout  Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
}

// FallbackConfig configures the breaker guarding the Redis store.
type FallbackConfig struct {
	Enabled             bool     `yaml:"enabled" json:"enabled"`
	ConsecutiveFailures uint32   `yaml:"consecutiveFailures" json:"consecutiveFailures"`
	OpenTimeout         Duration `yaml:"openTimeout" json:"openTimeout"`
}

// AuthConfig configures the bearer token check.
type AuthConfig struct {
	SecretKey         string      `yaml:"secretKey" json:"-"`
	Algorithm         string      `yaml:"algorithm" json:"algorithm"`
	AnonymousServices []string    `yaml:"anonymousServices" json:"anonymousServices"`
	ExemptPaths       []string    `yaml:"exemptPaths" json:"exemptPaths"`
	Vault             VaultConfig `yaml:"vault" json:"vault"`
}

// VaultConfig locates the token signing key in a Vault KV v2 engine.
type VaultConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Address string   `yaml:"address" json:"address"`
	Token   string   `yaml:"token" json:"-"`
	Mount   string   `yaml:"mount" json:"mount"`
	Path    string   `yaml:"path" json:"path"`
	Key     string   `yaml:"key" json:"key"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// HealthConfig configures the backend health probes.
type HealthConfig struct {
	Timeout Duration `yaml:"timeout" json:"timeout"`
	Path    string   `yaml:"path" json:"path"`
}

// CORSConfig configures the CORS answer.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	AllowOrigins []string `yaml:"allowOrigins,omitempty" json:"allowOrigins,omitempty"`
}

// ObservabilityConfig groups logging and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// DefaultConfig returns the configuration of the stock lending platform
// deployment: six services on ports 8001-8006 behind eight routes.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            DefaultPort,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(90 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Services: []ServiceConfig{
			{Name: "user", URL: "http://localhost:8001", Timeout: Duration(DefaultServiceTimeout)},
			{Name: "loan", URL: "http://localhost:8002", Timeout: Duration(DefaultServiceTimeout)},
			{Name: "repayment", URL: "http://localhost:8003", Timeout: Duration(DefaultServiceTimeout)},
			{Name: "risk", URL: "http://localhost:8004", Timeout: Duration(DefaultServiceTimeout)},
			{Name: "notification", URL: "http://localhost:8005", Timeout: Duration(DefaultServiceTimeout)},
			{Name: "file", URL: "http://localhost:8006", Timeout: Duration(DefaultFileServiceTimeout)},
		},
		Routes: []RouteConfig{
			{Prefix: "/api/users", Service: "user"},
			{Prefix: "/api/loans", Service: "loan"},
			{Prefix: "/api/repayments", Service: "repayment"},
			{Prefix: "/api/risk", Service: "risk"},
			{Prefix: "/api/notifications", Service: "notification"},
			{Prefix: "/api/files", Service: "file"},
			{Prefix: "/api/upload", Service: "file"},
			{Prefix: "/api/download", Service: "file"},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      Duration(DefaultRateLimitWindow),
			MaxRequests: DefaultRateLimitMaxRequests,
			PathPrefix:  DefaultRateLimitPathPrefix,
			KeyPrefix:   DefaultRateLimitKeyPrefix,
			Store:       StoreRedis,
			Redis: RedisConfig{
				URL:         DefaultRedisURL,
				PoolSize:    10,
				DialTimeout: Duration(5 * time.Second),
			},
			Fallback: FallbackConfig{
				Enabled:             true,
				ConsecutiveFailures: 3,
				OpenTimeout:         Duration(10 * time.Second),
			},
		},
		Auth: AuthConfig{
			Algorithm:         DefaultJWTAlgorithm,
			AnonymousServices: []string{"user"},
			ExemptPaths:       []string{"/health", "/metrics"},
			Vault: VaultConfig{
				Mount: "secret",
				Path:  "loangw/auth",
				Key:   "secret_key",
			},
		},
		Health: HealthConfig{
			Timeout: Duration(DefaultHealthTimeout),
			Path:    DefaultHealthPath,
		},
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			Tracing: TracingConfig{ServiceName: "loangw", SamplingRate: 1.0},
		},
	}
}

// GetServerAddress returns host:port for the listener.
func (c *GatewayConfig) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}
