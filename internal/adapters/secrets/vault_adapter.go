package secrets

import (
	"context"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// VaultConfig contains configuration for the HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.internal:8200")
	Address string

	// Authentication token
	Token string

	// KV v2 mount point (default: "secret")
	MountPath string

	// Cache TTL for secrets (default: 5 minutes)
	CacheTTL time.Duration

	// Enable caching
	EnableCache bool
}

// DefaultVaultConfig returns default configuration
func DefaultVaultConfig(address, token string) *VaultConfig {
	return &VaultConfig{
		Address:     address,
		Token:       token,
		MountPath:   "secret",
		CacheTTL:    5 * time.Minute,
		EnableCache: true,
	}
}

// vaultAdapter implements the SecretManagerAdapter port for HashiCorp Vault
// KV v2. Secrets live under "trust-payments/sites/{sitereference}" with the
// value in the "value" data key.
type vaultAdapter struct {
	client *vaultapi.Client
	config *VaultConfig
	logger ports.Logger
	cache  *secretCache
}

// NewVaultAdapter creates a new HashiCorp Vault adapter
func NewVaultAdapter(cfg *VaultConfig, logger ports.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vaultapi.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vaultapi.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	logger.Info("Vault adapter initialized",
		ports.String("address", cfg.Address),
		ports.String("mount_path", cfg.MountPath),
		ports.Bool("cache_enabled", cfg.EnableCache),
	)

	return &vaultAdapter{
		client: client,
		config: cfg,
		logger: logger,
		cache:  newSecretCache(cfg.EnableCache, cfg.CacheTTL),
	}, nil
}

// GetSecret retrieves a secret by its KV v2 path
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		a.logger.Debug("secret retrieved from cache", ports.String("path", path))
		return cached, nil
	}

	kv := a.client.KVv2(a.config.MountPath)
	kvSecret, err := kv.Get(ctx, path)
	if err != nil {
		a.logger.Error("failed to retrieve secret from vault", ports.String("path", path), ports.Err(err))
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}

	value, ok := kvSecret.Data["value"].(string)
	if !ok {
		return nil, fmt.Errorf("secret %s has no string 'value' key", path)
	}

	secret := &ports.Secret{
		Value:    value,
		Metadata: make(map[string]string),
	}
	if kvSecret.VersionMetadata != nil {
		secret.Version = fmt.Sprintf("%d", kvSecret.VersionMetadata.Version)
		secret.CreatedAt = kvSecret.VersionMetadata.CreatedTime.Format(time.RFC3339)
	}
	for key, raw := range kvSecret.Data {
		if key == "value" {
			continue
		}
		if s, ok := raw.(string); ok {
			secret.Metadata[key] = s
		}
	}

	a.cache.set(path, secret)
	return secret, nil
}

// PutSecret creates or updates a secret, returning the new KV version
func (a *vaultAdapter) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	a.logger.Info("putting secret to vault", ports.String("path", path))

	data := map[string]interface{}{"value": value}
	for key, val := range metadata {
		data[key] = val
	}

	kv := a.client.KVv2(a.config.MountPath)
	written, err := kv.Put(ctx, path, data)
	if err != nil {
		a.logger.Error("failed to write secret to vault", ports.String("path", path), ports.Err(err))
		return "", fmt.Errorf("failed to put secret %s: %w", path, err)
	}

	a.cache.invalidate(path)
	if written != nil && written.VersionMetadata != nil {
		return fmt.Sprintf("%d", written.VersionMetadata.Version), nil
	}
	return "", nil
}
