package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// VaultProviderConfig configures a VaultProvider.
type VaultProviderConfig struct {
	Address    string
	Token      string
	Mount      string
	Timeout    time.Duration
	MaxRetries int
	Logger     observability.Logger
}

// VaultProvider reads secrets from a Vault KV v2 engine with token auth.
type VaultProvider struct {
	client *vault.Client
	kv     *vault.KVv2
	mount  string
	logger observability.Logger
}

// NewVaultProvider creates a provider. The token falls back to VAULT_TOKEN
// through the Vault client defaults.
func NewVaultProvider(cfg VaultProviderConfig) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	vc := vault.DefaultConfig()
	if vc.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", vc.Error)
	}
	vc.Address = cfg.Address
	vc.Timeout = cfg.Timeout
	vc.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if client.Token() == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderNotConfigured)
	}

	return &VaultProvider{
		client: client,
		kv:     client.KVv2(cfg.Mount),
		mount:  cfg.Mount,
		logger: cfg.Logger,
	}, nil
}

// Type implements Provider.
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// GetSecret implements Provider. String values are served as is; other
// values are formatted with fmt.
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	p.logger.Debug("reading vault secret",
		observability.String("mount", p.mount),
		observability.String("path", path),
	)

	kv, err := p.kv.Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSecretNotFound, p.mount, path)
		}
		return nil, fmt.Errorf("failed to read vault secret %s/%s: %w", p.mount, path, err)
	}

	s := &Secret{Path: path, Data: make(map[string][]byte, len(kv.Data))}
	for k, v := range kv.Data {
		switch val := v.(type) {
		case string:
			s.Data[k] = []byte(val)
		default:
			s.Data[k] = []byte(fmt.Sprint(val))
		}
	}
	if kv.VersionMetadata != nil {
		s.Version = fmt.Sprint(kv.VersionMetadata.Version)
	}

	return s, nil
}

// Close implements Provider.
func (p *VaultProvider) Close() error {
	return nil
}
