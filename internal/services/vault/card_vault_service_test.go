package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/test/mocks"
)

func setupVaultTest() (*Service, *mocks.MockCardRepository) {
	cardRepo := &mocks.MockCardRepository{}
	svc := NewService(mocks.NewMockDBPort(), cardRepo, mocks.NewMockLogger())
	return svc, cardRepo
}

func TestListDeduplicates(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	cardRepo.On("ListByCustomer", mock.Anything, "cust-1").Return([]*domain.SavedCard{
		{ID: "a", TransactionReference: "24-9-1", MaskedPAN: "411111######1111"},
		{ID: "b", TransactionReference: "24-9-2", MaskedPAN: "555555######4444"},
		{ID: "c", TransactionReference: "24-9-1", MaskedPAN: "411111######1111"}, // duplicate of a
	}, nil)

	cards, err := svc.List(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "a", cards[0].ID)
	assert.Equal(t, "b", cards[1].ID)
}

func TestActivateExclusive(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	cardRepo.On("GetByID", mock.Anything, "card-1").Return(&domain.SavedCard{
		ID:         "card-1",
		CustomerID: "cust-1",
	}, nil)
	cardRepo.On("SetActiveExclusive", mock.Anything, mock.Anything, "cust-1", "card-1").Return(nil)

	err := svc.Activate(context.Background(), "cust-1", "card-1")
	require.NoError(t, err)
	cardRepo.AssertCalled(t, "SetActiveExclusive", mock.Anything, mock.Anything, "cust-1", "card-1")
}

func TestActivateRejectsForeignCard(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	cardRepo.On("GetByID", mock.Anything, "card-1").Return(&domain.SavedCard{
		ID:         "card-1",
		CustomerID: "someone-else",
	}, nil)

	err := svc.Activate(context.Background(), "cust-1", "card-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCardNotOwned))
	cardRepo.AssertNotCalled(t, "SetActiveExclusive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveGuestIsNoOp(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	card, err := svc.Save(context.Background(), "", "24-9-1", "411111######1111", "VISA")
	require.NoError(t, err)
	assert.Nil(t, card)
	cardRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveCreatesInactiveCard(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	cardRepo.On("ListByCustomer", mock.Anything, "cust-1").Return([]*domain.SavedCard{}, nil)
	cardRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *domain.SavedCard) bool {
		return c.CustomerID == "cust-1" && !c.Active && c.TransactionReference == "24-9-1"
	})).Return(nil)

	card, err := svc.Save(context.Background(), "cust-1", "24-9-1", "411111######1111", "VISA")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.False(t, card.Active)
	assert.NotEmpty(t, card.ID)
}

func TestSaveDeduplicates(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	existing := &domain.SavedCard{
		ID:                   "existing",
		CustomerID:           "cust-1",
		TransactionReference: "24-9-1",
		MaskedPAN:            "411111######1111",
	}
	cardRepo.On("ListByCustomer", mock.Anything, "cust-1").Return([]*domain.SavedCard{existing}, nil)

	card, err := svc.Save(context.Background(), "cust-1", "24-9-1", "411111######1111", "VISA")
	require.NoError(t, err)
	assert.Equal(t, "existing", card.ID)
	cardRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAllRequiresAdmin(t *testing.T) {
	svc, cardRepo := setupVaultTest()

	_, err := svc.DeleteAll(context.Background(), domain.Actor{ID: "u1", Role: domain.RoleCustomer}, "cust-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthzDenied))

	_, err = svc.DeleteAll(context.Background(), domain.Actor{ID: "u2", Role: domain.RoleManager}, "cust-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthzDenied))

	cardRepo.On("DeleteAllByCustomer", mock.Anything, "cust-1").Return(int64(3), nil)
	deleted, err := svc.DeleteAll(context.Background(), domain.Actor{ID: "admin", Role: domain.RoleAdmin}, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
