package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is the default prefix for environment secrets.
const DefaultEnvPrefix = "LOANGW_SECRET_"

// EnvProvider reads secrets from environment variables. Path "auth/key"
// maps to LOANGW_SECRET_AUTH_KEY and the value is served under "value".
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment provider. An empty prefix uses
// DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// Type implements Provider.
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

func (p *EnvProvider) envName(path string) string {
	name := strings.ToUpper(path)
	name = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name)
	return p.prefix + name
}

// GetSecret implements Provider.
func (p *EnvProvider) GetSecret(_ context.Context, path string) (*Secret, error) {
	name := p.envName(path)
	v, ok := p.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return &Secret{Path: path, Data: map[string][]byte{"value": []byte(v)}}, nil
}

// Close implements Provider.
func (p *EnvProvider) Close() error {
	return nil
}
