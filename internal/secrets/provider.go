// Package secrets resolves secret material, such as the token signing key,
// from static configuration, the environment, or HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
)

// ProviderType names a secrets backend.
type ProviderType string

const (
	// ProviderTypeStatic serves values fixed at startup.
	ProviderTypeStatic ProviderType = "static"
	// ProviderTypeEnv reads environment variables.
	ProviderTypeEnv ProviderType = "env"
	// ProviderTypeVault reads a Vault KV v2 engine.
	ProviderTypeVault ProviderType = "vault"
)

// Common errors for secrets providers.
var (
	// ErrSecretNotFound is returned when a secret or key does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned for incomplete provider settings.
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Secret is a set of named values.
type Secret struct {
	Path    string
	Data    map[string][]byte
	Version string
}

// GetString returns the value under key.
func (s *Secret) GetString(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	return string(v), true
}

// Provider reads secrets.
type Provider interface {
	Type() ProviderType
	GetSecret(ctx context.Context, path string) (*Secret, error)
	Close() error
}
