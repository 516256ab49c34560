package secrets

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

const staticKeyPath = "auth"

// SigningKey resolves the bearer token signing key. With Vault enabled the
// key is read from the configured KV v2 secret; otherwise auth.secretKey is
// used.
func SigningKey(ctx context.Context, cfg config.AuthConfig, logger observability.Logger) ([]byte, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	var (
		p    Provider
		path string
		key  string
	)

	if cfg.Vault.Enabled {
		vp, err := NewVaultProvider(VaultProviderConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.Mount,
			Timeout: cfg.Vault.Timeout.Duration(),
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		p, path, key = vp, cfg.Vault.Path, cfg.Vault.Key
	} else {
		p, path, key = NewStaticProvider(staticKeyPath, "secret_key", cfg.SecretKey), staticKeyPath, "secret_key"
	}
	defer func() { _ = p.Close() }()

	return readKey(ctx, p, path, key)
}

func readKey(ctx context.Context, p Provider, path, key string) ([]byte, error) {
	s, err := p.GetSecret(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key from %s provider: %w", p.Type(), err)
	}

	v, ok := s.GetString(key)
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: key %q in %s", ErrSecretNotFound, key, path)
	}

	return []byte(v), nil
}
