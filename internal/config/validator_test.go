package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*GatewayConfig)
		wantPath string
	}{
		{
			name:     "invalid port",
			mutate:   func(c *GatewayConfig) { c.Server.Port = 0 },
			wantPath: "server.port",
		},
		{
			name:     "no services",
			mutate:   func(c *GatewayConfig) { c.Services = nil; c.Routes = nil; c.Auth.AnonymousServices = nil },
			wantPath: "services",
		},
		{
			name:     "duplicate service",
			mutate:   func(c *GatewayConfig) { c.Services = append(c.Services, c.Services[0]) },
			wantPath: "services[6].name",
		},
		{
			name:     "relative url",
			mutate:   func(c *GatewayConfig) { c.Services[1].URL = "localhost:8002" },
			wantPath: "services[1].url",
		},
		{
			name:     "trailing slash url",
			mutate:   func(c *GatewayConfig) { c.Services[1].URL = "http://localhost:8002/" },
			wantPath: "services[1].url",
		},
		{
			name:     "negative timeout",
			mutate:   func(c *GatewayConfig) { c.Services[2].Timeout = -1 },
			wantPath: "services[2].timeout",
		},
		{
			name:     "negative threshold",
			mutate:   func(c *GatewayConfig) { c.Services[3].CircuitBreaker.FailureThreshold = -2 },
			wantPath: "services[3].circuitBreaker.failureThreshold",
		},
		{
			name:     "route to unknown service",
			mutate:   func(c *GatewayConfig) { c.Routes[0].Service = "ledger" },
			wantPath: "routes[0].service",
		},
		{
			name:     "duplicate route prefix",
			mutate:   func(c *GatewayConfig) { c.Routes[1].Prefix = c.Routes[0].Prefix },
			wantPath: "routes[1].prefix",
		},
		{
			name:     "zero max requests",
			mutate:   func(c *GatewayConfig) { c.RateLimit.MaxRequests = 0 },
			wantPath: "rateLimit.maxRequests",
		},
		{
			name:     "unknown store",
			mutate:   func(c *GatewayConfig) { c.RateLimit.Store = "etcd" },
			wantPath: "rateLimit.store",
		},
		{
			name:     "bad trusted proxy",
			mutate:   func(c *GatewayConfig) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "proxy"} },
			wantPath: "rateLimit.trustedProxies[1]",
		},
		{
			name:     "unsupported algorithm",
			mutate:   func(c *GatewayConfig) { c.Auth.Algorithm = "none" },
			wantPath: "auth.algorithm",
		},
		{
			name:     "vault without address",
			mutate:   func(c *GatewayConfig) { c.Auth.Vault.Enabled = true },
			wantPath: "auth.vault.address",
		},
		{
			name:     "zero health timeout",
			mutate:   func(c *GatewayConfig) { c.Health.Timeout = 0 },
			wantPath: "health.timeout",
		},
		{
			name:     "sampling rate out of range",
			mutate:   func(c *GatewayConfig) { c.Observability.Tracing.SamplingRate = 2 },
			wantPath: "observability.tracing.samplingRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))

			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidate_DisabledRateLimitSkipsChecks(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.MaxRequests = 0
	cfg.RateLimit.Store = ""

	assert.NoError(t, Validate(cfg))
}

func TestValidate_Nil(t *testing.T) {
	t.Parallel()

	err := Validate(nil)
	require.Error(t, err)
	assert.Equal(t, "configuration is nil", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: b", ValidationErrors{{Path: "a", Message: "b"}}.Error())

	multi := ValidationErrors{{Path: "a", Message: "b"}, {Message: "c"}}
	assert.Equal(t, "2 validation errors:\n  1. a: b\n  2. c\n", multi.Error())
}

func TestServices(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Services[1].CircuitBreaker = CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: Duration(DefaultRecoveryTimeout / 2)}
	cfg.Services[2].Timeout = 0

	descs, err := Services(cfg)
	require.NoError(t, err)
	require.Len(t, descs, 6)

	assert.Equal(t, "user", descs[0].Name)
	assert.Equal(t, "http://localhost:8001", descs[0].BaseString())
	assert.Equal(t, "localhost:8001", descs[0].BaseURL.Host)
	assert.Equal(t, DefaultFailureThreshold, descs[0].Breaker.FailureThreshold)
	assert.Equal(t, DefaultRecoveryTimeout, descs[0].Breaker.RecoveryTimeout)

	assert.Equal(t, 2, descs[1].Breaker.FailureThreshold)
	assert.Equal(t, DefaultRecoveryTimeout/2, descs[1].Breaker.RecoveryTimeout)

	assert.Equal(t, DefaultServiceTimeout, descs[2].Timeout)
	assert.Equal(t, DefaultFileServiceTimeout, descs[5].Timeout)
}

func TestServices_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Services[0].URL = "ftp://files"

	_, err := Services(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
