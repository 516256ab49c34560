package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// Verifier checks HMAC-signed tokens against a shared key.
type Verifier struct {
	key    []byte
	alg    jwa.SignatureAlgorithm
	now    func() time.Time
	skew   time.Duration
	logger observability.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithClock sets the time source for exp and nbf checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithAcceptableSkew tolerates clock drift in exp and nbf checks.
func WithAcceptableSkew(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.skew = d
	}
}

// NewVerifier creates a verifier for the given key and algorithm. An empty
// algorithm means HS256.
func NewVerifier(key []byte, alg string, opts ...VerifierOption) (*Verifier, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}

	var sigAlg jwa.SignatureAlgorithm
	switch alg {
	case "", AlgHS256:
		sigAlg = jwa.HS256
	case AlgHS384:
		sigAlg = jwa.HS384
	case AlgHS512:
		sigAlg = jwa.HS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	v := &Verifier{
		key:    key,
		alg:    sigAlg,
		now:    time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Verify checks the signature and time claims of token and returns its
// claims. Both "sub" and "user_id" are required.
func (v *Verifier) Verify(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	tok, err := jwxjwt.Parse([]byte(token),
		jwxjwt.WithKey(v.alg, v.key),
		jwxjwt.WithValidate(true),
		jwxjwt.WithClock(jwxjwt.ClockFunc(v.now)),
		jwxjwt.WithAcceptableSkew(v.skew),
	)
	if err != nil {
		mapped := mapParseError(err)
		v.logger.Debug("token rejected", observability.Error(mapped))
		return nil, mapped
	}

	subject := tok.Subject()
	if subject == "" {
		return nil, fmt.Errorf("%w: %s", ErrTokenMissingClaim, ClaimSubject)
	}

	raw, ok := tok.Get(ClaimUserID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenMissingClaim, ClaimUserID)
	}
	userID, err := formatClaim(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTokenInvalid, ClaimUserID, err)
	}

	return &Claims{
		Subject:   subject,
		UserID:    userID,
		ExpiresAt: tok.Expiration(),
	}, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwxjwt.ErrTokenExpired()):
		return ErrTokenExpired
	case errors.Is(err, jwxjwt.ErrTokenNotYetValid()):
		return ErrTokenNotYetValid
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}
