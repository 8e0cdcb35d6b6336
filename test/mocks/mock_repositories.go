package mocks

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/mock"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// MockDBPort implements ports.DBPort. WithTransaction runs the callback
// with a nil tx; repository mocks ignore the tx argument.
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, nil)
}

// NewMockDBPort returns a DB port whose transactions always run the callback
func NewMockDBPort() *MockDBPort {
	db := &MockDBPort{}
	db.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
	return db
}

// MockOrderRepository implements ports.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByOrderReference(ctx context.Context, orderReference string) (*domain.Order, error) {
	args := m.Called(ctx, orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) MarkAuthPending(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkSettled(ctx context.Context, tx pgx.Tx, id string, result ports.SettlementResult) (bool, error) {
	args := m.Called(ctx, tx, id, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) MarkFailed(ctx context.Context, id string, note string) error {
	args := m.Called(ctx, id, note)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendNote(ctx context.Context, id string, note string) error {
	args := m.Called(ctx, id, note)
	return args.Error(0)
}

// MockCardRepository implements ports.CardRepository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.SavedCard, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SavedCard), args.Error(1)
}

func (m *MockCardRepository) GetByID(ctx context.Context, cardID string) (*domain.SavedCard, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SavedCard), args.Error(1)
}

func (m *MockCardRepository) Create(ctx context.Context, tx pgx.Tx, card *domain.SavedCard) error {
	args := m.Called(ctx, tx, card)
	return args.Error(0)
}

func (m *MockCardRepository) SetActiveExclusive(ctx context.Context, tx pgx.Tx, customerID, cardID string) error {
	args := m.Called(ctx, tx, customerID, cardID)
	return args.Error(0)
}

func (m *MockCardRepository) DeactivateAll(ctx context.Context, tx pgx.Tx, customerID string) error {
	args := m.Called(ctx, tx, customerID)
	return args.Error(0)
}

func (m *MockCardRepository) Delete(ctx context.Context, customerID, cardID string) error {
	args := m.Called(ctx, customerID, cardID)
	return args.Error(0)
}

func (m *MockCardRepository) DeleteAllByCustomer(ctx context.Context, customerID string) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSubscriptionRepository implements ports.SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx pgx.Tx, state *domain.SubscriptionState) error {
	args := m.Called(ctx, tx, state)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByParentOrder(ctx context.Context, parentOrderID, itemKey string) (*domain.SubscriptionState, error) {
	args := m.Called(ctx, parentOrderID, itemKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionState), args.Error(1)
}

func (m *MockSubscriptionRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.SubscriptionState, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SubscriptionState), args.Error(1)
}

func (m *MockSubscriptionRepository) IncrementCounter(ctx context.Context, tx pgx.Tx, parentOrderID, itemKey string, expected int) error {
	args := m.Called(ctx, tx, parentOrderID, itemKey, expected)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) UpdateNextDue(ctx context.Context, parentOrderID, itemKey string, nextDue time.Time) error {
	args := m.Called(ctx, parentOrderID, itemKey, nextDue)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ClearNextDue(ctx context.Context, parentOrderID, itemKey string) error {
	args := m.Called(ctx, parentOrderID, itemKey)
	return args.Error(0)
}

// MockProcessorClient implements ports.ProcessorClient
type MockProcessorClient struct {
	mock.Mock
}

func (m *MockProcessorClient) RecurringAuth(ctx context.Context, req ports.RecurringAuthRequest) (*ports.ProcessorResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProcessorResult), args.Error(1)
}

func (m *MockProcessorClient) Refund(ctx context.Context, req ports.RefundRequest) (*ports.ProcessorResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProcessorResult), args.Error(1)
}

func (m *MockProcessorClient) TransactionQuery(ctx context.Context, transactionReference, orderReference string) (*ports.ProcessorResult, error) {
	args := m.Called(ctx, transactionReference, orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProcessorResult), args.Error(1)
}

func (m *MockProcessorClient) TransactionUpdate(ctx context.Context, transactionReference, orderReference string) (*ports.ProcessorResult, error) {
	args := m.Called(ctx, transactionReference, orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProcessorResult), args.Error(1)
}
