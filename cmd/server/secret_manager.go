package main

import (
	"context"
	"fmt"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/adapters/secrets"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/config"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// buildSecretManager selects the secret backend. "env" is the development
// default; production deployments point SECRETS_BACKEND at AWS Secrets
// Manager or Vault.
func buildSecretManager(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Secrets.Backend {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
		awsCfg.Endpoint = cfg.Secrets.AWSEndpoint
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	case "vault":
		return secrets.NewVaultAdapter(
			secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress, cfg.Secrets.VaultToken), logger)
	default:
		return secrets.NewLocalSecretManager(logger), nil
	}
}

// resolveSecrets fills the credential fields an external backend owns. With
// the env backend the config loader has already read them.
func resolveSecrets(ctx context.Context, cfg *config.Config, manager ports.SecretManagerAdapter, logger ports.Logger) error {
	if cfg.Secrets.Backend == "env" {
		return nil
	}

	site := cfg.Gateway.SiteReference

	password, err := manager.GetSecret(ctx, secretPath(site, "webservices-password"))
	if err != nil {
		return fmt.Errorf("resolve webservices password: %w", err)
	}
	cfg.Gateway.Password = password.Value

	jwtSecret, err := manager.GetSecret(ctx, secretPath(site, "jwt-secret"))
	if err != nil {
		return fmt.Errorf("resolve jwt secret: %w", err)
	}
	cfg.JWT.Secret = jwtSecret.Value

	// Missing notification secret disables the notification endpoint
	// rather than failing startup.
	notifySecret, err := manager.GetSecret(ctx, secretPath(site, "notification-secret"))
	if err != nil {
		logger.Warn("notification secret not found; notification endpoint disabled",
			ports.String("site_reference", site), ports.Err(err))
		cfg.Notification.Secret = ""
		return nil
	}
	cfg.Notification.Secret = notifySecret.Value
	return nil
}

func secretPath(siteReference, name string) string {
	return fmt.Sprintf("trust-payments/sites/%s/%s", siteReference, name)
}
