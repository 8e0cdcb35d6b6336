package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Metadata  map[string]string // Additional secret metadata
	Value     string            // The secret value (JWT secret, webservice password, notification secret)
	Version   string            // Secret version identifier
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving merchant secrets from
// a secret management service. Supported backends: AWS Secrets Manager,
// HashiCorp Vault, and a local env-backed provider for development.
// Implementations are responsible for authentication with the backend and
// for caching secrets with a TTL.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name.
	// Path format depends on implementation:
	//   - AWS: "trust-payments/sites/{sitereference}/jwt"
	//   - Vault: "trust-payments/sites/{sitereference}"
	//   - env: the environment variable name
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or updates a secret (rotation operations).
	// Returns the new version identifier.
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (version string, err error)
}
