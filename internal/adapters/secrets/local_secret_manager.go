package secrets

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// localSecretManager implements the SecretManagerAdapter port against
// environment variables, with in-process overrides for rotation. Development
// and test use only; nothing is persisted.
type localSecretManager struct {
	mu        sync.RWMutex
	overrides map[string]string
	logger    ports.Logger
}

// NewLocalSecretManager creates an env-backed secret manager
func NewLocalSecretManager(logger ports.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		overrides: make(map[string]string),
		logger:    logger,
	}
}

// GetSecret reads the secret from an in-process override or the environment.
// The path is the environment variable name.
func (l *localSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	l.mu.RLock()
	value, overridden := l.overrides[path]
	l.mu.RUnlock()

	if !overridden {
		value = os.Getenv(path)
	}
	if value == "" {
		return nil, domain.ErrMissingSecret.WithDetail("path", path)
	}

	return &ports.Secret{
		Value:    value,
		Version:  "env",
		Metadata: map[string]string{"source": "environment"},
	}, nil
}

// PutSecret stores an in-process override. The environment itself is never
// mutated.
func (l *localSecretManager) PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error) {
	l.mu.Lock()
	l.overrides[path] = value
	l.mu.Unlock()

	l.logger.Info("local secret override stored", ports.String("path", path))
	return time.Now().UTC().Format(time.RFC3339), nil
}
