package ports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
)

// SettlementResult carries the fields a terminal settlement writes in one
// conditional update.
type SettlementResult struct {
	TransactionData      map[string]interface{}
	TransactionReference string
	Status               domain.SettlementStatus
	Note                 string
}

// OrderRepository persists orders and applies settlement transitions
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByOrderReference(ctx context.Context, orderReference string) (*domain.Order, error)

	// MarkAuthPending moves an initiated order forward when the signed
	// payload is rendered.
	MarkAuthPending(ctx context.Context, id string) error

	// MarkSettled applies a terminal settlement as a single conditional
	// write. Returns (false, nil) when the order was already settled by the
	// other channel; that is the idempotency short-circuit, not an error.
	MarkSettled(ctx context.Context, tx pgx.Tx, id string, result SettlementResult) (bool, error)

	// MarkFailed records a terminal decline for this attempt
	MarkFailed(ctx context.Context, id string, note string) error

	// AppendNote attaches a merchant-visible note (refunds, renewal errors)
	AppendNote(ctx context.Context, id string, note string) error
}

// CardRepository persists the saved-card vault
type CardRepository interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.SavedCard, error)
	GetByID(ctx context.Context, cardID string) (*domain.SavedCard, error)
	Create(ctx context.Context, tx pgx.Tx, card *domain.SavedCard) error

	// SetActiveExclusive clears the active flag on every card the customer
	// owns and sets it on cardID, inside the supplied transaction.
	SetActiveExclusive(ctx context.Context, tx pgx.Tx, customerID, cardID string) error

	// DeactivateAll clears the active flag on every card the customer owns
	DeactivateAll(ctx context.Context, tx pgx.Tx, customerID string) error

	Delete(ctx context.Context, customerID, cardID string) error
	DeleteAllByCustomer(ctx context.Context, customerID string) (int64, error)
}

// SubscriptionRepository persists renewal bookkeeping
type SubscriptionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, state *domain.SubscriptionState) error
	GetByParentOrder(ctx context.Context, parentOrderID, itemKey string) (*domain.SubscriptionState, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.SubscriptionState, error)

	// IncrementCounter advances subscription_number from expected to
	// expected+1 as a conditional write. Returns
	// domain.ErrSubCounterConflict when the stored counter no longer equals
	// expected.
	IncrementCounter(ctx context.Context, tx pgx.Tx, parentOrderID, itemKey string, expected int) error

	UpdateNextDue(ctx context.Context, parentOrderID, itemKey string, nextDue time.Time) error

	// ClearNextDue retires a schedule whose occurrences are exhausted
	ClearNextDue(ctx context.Context, parentOrderID, itemKey string) error
}
