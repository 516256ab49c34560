package secrets

import (
	"context"
	"fmt"
)

// StaticProvider serves secrets held in memory.
type StaticProvider struct {
	secrets map[string]*Secret
}

// NewStaticProvider creates a provider serving a single value under path
// and key.
func NewStaticProvider(path, key, value string) *StaticProvider {
	return &StaticProvider{secrets: map[string]*Secret{
		path: {Path: path, Data: map[string][]byte{key: []byte(value)}},
	}}
}

// Type implements Provider.
func (p *StaticProvider) Type() ProviderType {
	return ProviderTypeStatic
}

// GetSecret implements Provider.
func (p *StaticProvider) GetSecret(_ context.Context, path string) (*Secret, error) {
	s, ok := p.secrets[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}
	return s, nil
}

// Close implements Provider.
func (p *StaticProvider) Close() error {
	return nil
}
