package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BreakerSettings are the circuit breaker parameters of one service.
type BreakerSettings struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// ServiceDescriptor is the validated, immutable description of a backend.
type ServiceDescriptor struct {
	Name    string
	BaseURL *url.URL
	Timeout time.Duration
	Breaker BreakerSettings
}

// Services validates cfg and converts its service list into descriptors,
// applying defaults for unset timeouts and breaker settings. Order follows
// the configuration.
func Services(cfg *GatewayConfig) ([]ServiceDescriptor, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	out := make([]ServiceDescriptor, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		base, err := parseBaseURL(svc.URL)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}

		d := ServiceDescriptor{
			Name:    svc.Name,
			BaseURL: base,
			Timeout: svc.Timeout.Duration(),
			Breaker: BreakerSettings{
				FailureThreshold: svc.CircuitBreaker.FailureThreshold,
				RecoveryTimeout:  svc.CircuitBreaker.RecoveryTimeout.Duration(),
			},
		}
		if d.Timeout == 0 {
			d.Timeout = DefaultServiceTimeout
		}
		if d.Breaker.FailureThreshold == 0 {
			d.Breaker.FailureThreshold = DefaultFailureThreshold
		}
		if d.Breaker.RecoveryTimeout == 0 {
			d.Breaker.RecoveryTimeout = DefaultRecoveryTimeout
		}

		out = append(out, d)
	}

	return out, nil
}

// BaseString returns the base URL as configured, for verbatim concatenation
// with request paths.
func (d ServiceDescriptor) BaseString() string {
	return d.BaseURL.String()
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("url %q must not carry a query or fragment", raw)
	}
	if strings.HasSuffix(u.Path, "/") {
		return nil, fmt.Errorf("url %q must not end with '/'", raw)
	}

	return u, nil
}
