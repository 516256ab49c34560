package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/loangw/internal/auth/jwt"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

// ErrAuthRequired is returned when an anonymous caller targets a protected
// service.
var ErrAuthRequired = errors.New("authentication required")

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

var _ Verifier = (*jwt.Verifier)(nil)

// Delegate resolves identities and enforces the anonymous-service policy.
type Delegate struct {
	verifier  Verifier
	extractor jwt.TokenExtractor
	anonymous map[string]struct{}
	exempt    []string
	logger    observability.Logger
}

// Option configures a Delegate.
type Option func(*Delegate)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Delegate) {
		d.logger = logger
	}
}

// NewDelegate creates a delegate from the auth configuration.
func NewDelegate(v Verifier, cfg config.AuthConfig, opts ...Option) *Delegate {
	d := &Delegate{
		verifier:  v,
		extractor: jwt.NewHeaderExtractor("", ""),
		anonymous: make(map[string]struct{}, len(cfg.AnonymousServices)),
		exempt:    append([]string(nil), cfg.ExemptPaths...),
		logger:    observability.NopLogger(),
	}
	for _, s := range cfg.AnonymousServices {
		d.anonymous[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Exempt reports whether path bypasses authentication.
func (d *Delegate) Exempt(path string) bool {
	for _, p := range d.exempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// AllowsAnonymous reports whether service is reachable without identity.
func (d *Delegate) AllowsAnonymous(service string) bool {
	_, ok := d.anonymous[service]
	return ok
}

// Identify returns the caller identity, or nil for anonymous callers.
// Invalid tokens are treated as absent.
func (d *Delegate) Identify(r *http.Request) *Identity {
	token, err := d.extractor.Extract(r)
	if err != nil {
		return nil
	}

	claims, err := d.verifier.Verify(r.Context(), token)
	if err != nil {
		d.logger.WithContext(r.Context()).Debug("bearer token ignored",
			observability.Error(err),
		)
		return nil
	}

	return identityFromClaims(claims)
}

// Authorize resolves the identity for a request targeting service. It
// returns ErrAuthRequired when the caller is anonymous and the service is
// protected. The identity is nil for anonymous callers.
func (d *Delegate) Authorize(r *http.Request, service string) (*Identity, error) {
	if d.Exempt(r.URL.Path) {
		return nil, nil
	}

	id := d.Identify(r)
	if id == nil && !d.AllowsAnonymous(service) {
		d.logger.WithContext(r.Context()).Warn("anonymous request to protected service",
			observability.String("service", service),
			observability.String("path", r.URL.Path),
		)
		return nil, ErrAuthRequired
	}

	return id, nil
}
