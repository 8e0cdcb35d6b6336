package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository on
// PostgreSQL. The counter update is conditional on the expected value so a
// retried renewal can never double-advance the sequence.
type SubscriptionRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewSubscriptionRepository creates a new subscription-state repository
func NewSubscriptionRepository(db ports.DBPort, logger ports.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

// Create inserts renewal bookkeeping for a parent order
func (r *SubscriptionRepository) Create(ctx context.Context, tx pgx.Tx, state *domain.SubscriptionState) error {
	var nextDue pgtype.Timestamptz
	if state.NextDueAt != nil {
		nextDue = pgtype.Timestamptz{Time: *state.NextDueAt, Valid: true}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO subscription_states (parent_order_id, item_key, unit, interval,
			total_occurrences, subscription_number, amount_minor_units, next_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		state.ParentOrderID, state.ItemKey, string(state.Unit), state.Interval,
		state.TotalOccurrences, state.SubscriptionNumber, state.AmountMinorUnits, nextDue)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to create subscription state", err)
	}
	return nil
}

// GetByParentOrder fetches the renewal bookkeeping for one subscription.
// ItemKey is "" for single-subscription carts and the line-item key for
// multi-subscription carts.
func (r *SubscriptionRepository) GetByParentOrder(ctx context.Context, parentOrderID, itemKey string) (*domain.SubscriptionState, error) {
	row := r.db.GetDB().QueryRow(ctx, `
		SELECT parent_order_id, item_key, unit, interval, total_occurrences,
			subscription_number, amount_minor_units, next_due_at, created_at, updated_at
		FROM subscription_states
		WHERE parent_order_id = $1 AND item_key = $2`, parentOrderID, itemKey)
	return scanSubscriptionState(row)
}

// ListDue returns subscriptions whose next renewal is at or before asOf
func (r *SubscriptionRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.SubscriptionState, error) {
	rows, err := r.db.GetDB().Query(ctx, `
		SELECT parent_order_id, item_key, unit, interval, total_occurrences,
			subscription_number, amount_minor_units, next_due_at, created_at, updated_at
		FROM subscription_states
		WHERE next_due_at IS NOT NULL AND next_due_at <= $1
		ORDER BY next_due_at
		LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to list due subscriptions", err)
	}
	defer rows.Close()

	var states []*domain.SubscriptionState
	for rows.Next() {
		state, err := scanSubscriptionState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// IncrementCounter advances subscription_number from expected to expected+1.
// The WHERE clause makes this a compare-and-swap: if another renewal already
// moved the counter, zero rows match and the caller gets a conflict instead
// of an out-of-sequence number at the gateway.
func (r *SubscriptionRepository) IncrementCounter(ctx context.Context, tx pgx.Tx, parentOrderID, itemKey string, expected int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE subscription_states
		SET subscription_number = subscription_number + 1, updated_at = now()
		WHERE parent_order_id = $1 AND item_key = $2 AND subscription_number = $3`,
		parentOrderID, itemKey, expected)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to increment subscription counter", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubCounterConflict.
			WithDetail("parent_order_id", parentOrderID).
			WithDetail("expected", expected)
	}
	return nil
}

// UpdateNextDue schedules the next renewal attempt
func (r *SubscriptionRepository) UpdateNextDue(ctx context.Context, parentOrderID, itemKey string, nextDue time.Time) error {
	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE subscription_states SET next_due_at = $3, updated_at = now()
		WHERE parent_order_id = $1 AND item_key = $2`, parentOrderID, itemKey, nextDue)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to update next due date", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubNotFound.WithDetail("parent_order_id", parentOrderID)
	}
	return nil
}

// ClearNextDue retires a completed schedule so ListDue stops returning it
func (r *SubscriptionRepository) ClearNextDue(ctx context.Context, parentOrderID, itemKey string) error {
	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE subscription_states SET next_due_at = NULL, updated_at = now()
		WHERE parent_order_id = $1 AND item_key = $2`, parentOrderID, itemKey)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to clear next due date", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubNotFound.WithDetail("parent_order_id", parentOrderID)
	}
	return nil
}

func scanSubscriptionState(row pgx.Row) (*domain.SubscriptionState, error) {
	var (
		state   domain.SubscriptionState
		unit    string
		nextDue pgtype.Timestamptz
	)

	err := row.Scan(&state.ParentOrderID, &state.ItemKey, &unit, &state.Interval,
		&state.TotalOccurrences, &state.SubscriptionNumber, &state.AmountMinorUnits,
		&nextDue, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to scan subscription state", err)
	}

	state.Unit = domain.PeriodUnit(unit)
	if nextDue.Valid {
		t := nextDue.Time
		state.NextDueAt = &t
	}
	return &state, nil
}
