package jwt

import (
	"errors"
	"net/http"
	"strings"
)

// Common errors for token extraction.
var (
	ErrMissingHeader = errors.New("missing authorization header")
	ErrInvalidPrefix = errors.New("invalid authorization prefix")
)

// TokenExtractor extracts a token from an HTTP request.
type TokenExtractor interface {
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts tokens from an HTTP header.
type HeaderExtractor struct {
	header string
	prefix string
}

// NewHeaderExtractor creates a header extractor.
// If header is empty, it defaults to "Authorization".
// If prefix is empty, it defaults to "Bearer ".
func NewHeaderExtractor(header, prefix string) *HeaderExtractor {
	if header == "" {
		header = "Authorization"
	}
	if prefix == "" {
		prefix = "Bearer "
	}
	return &HeaderExtractor{
		header: header,
		prefix: prefix,
	}
}

// Extract returns the token following the prefix. The prefix is matched
// case-insensitively.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	value := r.Header.Get(e.header)
	if value == "" {
		return "", ErrMissingHeader
	}

	if len(value) < len(e.prefix) || !strings.EqualFold(value[:len(e.prefix)], e.prefix) {
		return "", ErrInvalidPrefix
	}

	token := strings.TrimSpace(value[len(e.prefix):])
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}
