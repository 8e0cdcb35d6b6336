package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

func TestLocalSecretManagerReadsEnvironment(t *testing.T) {
	t.Setenv("TP_TEST_SECRET", "sekrit")
	manager := NewLocalSecretManager(mocks.NewMockLogger())

	secret, err := manager.GetSecret(context.Background(), "TP_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "sekrit", secret.Value)
	assert.Equal(t, "env", secret.Version)
}

func TestLocalSecretManagerMissing(t *testing.T) {
	manager := NewLocalSecretManager(mocks.NewMockLogger())

	_, err := manager.GetSecret(context.Background(), "TP_TEST_SECRET_ABSENT")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMissingSecret))
}

func TestLocalSecretManagerOverride(t *testing.T) {
	t.Setenv("TP_TEST_SECRET", "old")
	manager := NewLocalSecretManager(mocks.NewMockLogger())

	version, err := manager.PutSecret(context.Background(), "TP_TEST_SECRET", "rotated", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	secret, err := manager.GetSecret(context.Background(), "TP_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "rotated", secret.Value)
}
