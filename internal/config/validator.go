package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate checks cfg and returns ValidationErrors listing every problem.
func Validate(cfg *GatewayConfig) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	known := v.validateServices(cfg.Services)
	v.validateRoutes(cfg.Routes, known)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateAuth(&cfg.Auth, known)
	v.validateHealth(&cfg.Health)
	v.validateObservability(&cfg.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Port < 1 || s.Port > 65535 {
		v.addError("server.port", "port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		v.addError("server.shutdownTimeout", "shutdownTimeout cannot be negative")
	}
}

// validateServices returns the set of service names seen.
func (v *Validator) validateServices(services []ServiceConfig) map[string]bool {
	known := make(map[string]bool, len(services))

	if len(services) == 0 {
		v.addError("services", "at least one service is required")
		return known
	}

	for i := range services {
		svc := &services[i]
		path := fmt.Sprintf("services[%d]", i)

		switch {
		case svc.Name == "":
			v.addError(path+".name", "name is required")
		case known[svc.Name]:
			v.addError(path+".name", fmt.Sprintf("duplicate service %q", svc.Name))
		default:
			known[svc.Name] = true
		}

		if _, err := parseBaseURL(svc.URL); err != nil {
			v.addError(path+".url", err.Error())
		}
		if svc.Timeout < 0 {
			v.addError(path+".timeout", "timeout must be positive")
		}
		if svc.CircuitBreaker.FailureThreshold < 0 {
			v.addError(path+".circuitBreaker.failureThreshold", "failureThreshold must be positive")
		}
		if svc.CircuitBreaker.RecoveryTimeout < 0 {
			v.addError(path+".circuitBreaker.recoveryTimeout", "recoveryTimeout must be positive")
		}
	}

	return known
}

func (v *Validator) validateRoutes(routes []RouteConfig, known map[string]bool) {
	if len(routes) == 0 {
		v.addError("routes", "at least one route is required")
		return
	}

	seen := make(map[string]bool, len(routes))
	for i, r := range routes {
		path := fmt.Sprintf("routes[%d]", i)

		if !strings.HasPrefix(r.Prefix, "/") {
			v.addError(path+".prefix", "prefix must start with '/'")
		} else if seen[r.Prefix] {
			v.addError(path+".prefix", fmt.Sprintf("duplicate prefix %q", r.Prefix))
		}
		seen[r.Prefix] = true

		if !known[r.Service] {
			v.addError(path+".service", fmt.Sprintf("unknown service %q", r.Service))
		}
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if !rl.Enabled {
		return
	}

	if rl.Window <= 0 {
		v.addError("rateLimit.window", "window must be positive")
	}
	if rl.MaxRequests <= 0 {
		v.addError("rateLimit.maxRequests", "maxRequests must be positive")
	}

	switch rl.Store {
	case StoreRedis:
		if rl.Redis.URL == "" {
			v.addError("rateLimit.redis.url", "url is required for the redis store")
		}
	case StoreMemory:
	default:
		v.addError("rateLimit.store", fmt.Sprintf("store must be %q or %q", StoreRedis, StoreMemory))
	}

	for i, p := range rl.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			v.addError(fmt.Sprintf("rateLimit.trustedProxies[%d]", i), fmt.Sprintf("invalid IP or CIDR %q", p))
		}
	}
}

var validAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

func (v *Validator) validateAuth(a *AuthConfig, known map[string]bool) {
	if !validAlgorithms[a.Algorithm] {
		v.addError("auth.algorithm", "algorithm must be one of HS256, HS384, HS512")
	}

	for i, name := range a.AnonymousServices {
		if !known[name] {
			v.addError(fmt.Sprintf("auth.anonymousServices[%d]", i), fmt.Sprintf("unknown service %q", name))
		}
	}

	if a.Vault.Enabled {
		if a.Vault.Address == "" {
			v.addError("auth.vault.address", "address is required when vault is enabled")
		}
		if a.Vault.Path == "" {
			v.addError("auth.vault.path", "path is required when vault is enabled")
		}
		if a.Vault.Key == "" {
			v.addError("auth.vault.key", "key is required when vault is enabled")
		}
	}
}

func (v *Validator) validateHealth(h *HealthConfig) {
	if h.Timeout <= 0 {
		v.addError("health.timeout", "timeout must be positive")
	}
	if !strings.HasPrefix(h.Path, "/") {
		v.addError("health.path", "path must start with '/'")
	}
}

var (
	validLevels  = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"": true, "json": true, "console": true}
)

func (v *Validator) validateObservability(o *ObservabilityConfig) {
	if !validLevels[o.Logging.Level] {
		v.addError("observability.logging.level", "level must be one of debug, info, warn, error")
	}
	if !validFormats[o.Logging.Format] {
		v.addError("observability.logging.format", "format must be json or console")
	}
	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
