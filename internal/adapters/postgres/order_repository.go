package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// OrderRepository implements ports.OrderRepository on PostgreSQL
type OrderRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db ports.DBPort, logger ports.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

const orderColumns = `id, order_reference, customer_id, amount_minor_units, currency,
	billing, shipping, status, processing, save_card_requested, transaction_reference,
	transaction_data, notes, paid_at, created_at, updated_at`

// Create inserts a new order inside the supplied transaction
func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	billing, err := jsonbStruct(order.Billing)
	if err != nil {
		return err
	}
	shipping, err := jsonbStruct(order.Shipping)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_reference, customer_id, amount_minor_units,
			currency, billing, shipping, status, processing, save_card_requested)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.OrderReference, nullText(order.GetCustomerID()),
		order.AmountMinorUnits, order.Currency, billing, shipping,
		string(order.Status), string(order.Processing), order.SaveCardRequested,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to create order", err)
	}
	return nil
}

// GetByID fetches an order by its primary key
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.GetDB().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByOrderReference resolves an order by the correlation token embedded at
// checkout time. Notifications address orders this way, never by ID.
func (r *OrderRepository) GetByOrderReference(ctx context.Context, orderReference string) (*domain.Order, error) {
	row := r.db.GetDB().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_reference = $1`, orderReference)
	return scanOrder(row)
}

// MarkAuthPending moves an initiated order forward when the signed payload
// is rendered
func (r *OrderRepository) MarkAuthPending(ctx context.Context, id string) error {
	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, string(domain.SettlementStatusAuthPending), string(domain.SettlementStatusInitiated))
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderInvalidState.WithDetail("order_id", id)
	}
	return nil
}

// MarkSettled applies a terminal settlement as a single conditional write.
// The WHERE clause is the check-and-set closing the race between the
// callback and notification channels: only an eligible order matches, so
// the second channel to arrive updates zero rows and returns (false, nil).
// A suspended order may still be upgraded to paid by a later confirmed
// outcome; paid is terminal.
func (r *OrderRepository) MarkSettled(ctx context.Context, tx pgx.Tx, id string, result ports.SettlementResult) (bool, error) {
	data, err := jsonbValue(result.TransactionData)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2,
			transaction_reference = $3,
			transaction_data = $4,
			notes = CASE WHEN $5 <> '' THEN array_append(notes, $5) ELSE notes END,
			processing = 'complete',
			paid_at = CASE WHEN $2 = 'paid' THEN now() ELSE paid_at END,
			updated_at = now()
		WHERE id = $1
		  AND ((status IN ('initiated', 'auth_pending') AND processing <> 'complete')
		    OR (status = 'on_hold' AND $2 = 'paid'))`,
		id, string(result.Status), nullText(result.TransactionReference), data, result.Note,
	)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to settle order", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records a terminal decline for this attempt
func (r *OrderRepository) MarkFailed(ctx context.Context, id string, note string) error {
	_, err := r.db.GetDB().Exec(ctx, `
		UPDATE orders
		SET status = $2,
			notes = CASE WHEN $3 <> '' THEN array_append(notes, $3) ELSE notes END,
			updated_at = now()
		WHERE id = $1 AND status IN ('initiated', 'auth_pending')`,
		id, string(domain.SettlementStatusFailed), note)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to mark order failed", err)
	}
	return nil
}

// AppendNote attaches a merchant-visible note
func (r *OrderRepository) AppendNote(ctx context.Context, id string, note string) error {
	tag, err := r.db.GetDB().Exec(ctx, `
		UPDATE orders SET notes = array_append(notes, $2), updated_at = now()
		WHERE id = $1`, id, note)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to append order note", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound.WithDetail("order_id", id)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order       domain.Order
		customerID  pgtype.Text
		txRef       pgtype.Text
		billing     []byte
		shipping    []byte
		txData      []byte
		paidAt      pgtype.Timestamptz
		status      string
		processing  string
	)

	err := row.Scan(&order.ID, &order.OrderReference, &customerID,
		&order.AmountMinorUnits, &order.Currency, &billing, &shipping,
		&status, &processing, &order.SaveCardRequested, &txRef, &txData,
		&order.Notes, &paidAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to scan order", err)
	}

	order.Status = domain.SettlementStatus(status)
	order.Processing = domain.ProcessingMarker(processing)
	order.CustomerID = textPtr(customerID)
	order.TransactionReference = textPtr(txRef)
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if err := json.Unmarshal(billing, &order.Billing); err != nil {
		return nil, fmt.Errorf("unmarshal billing snapshot: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping snapshot: %w", err)
	}
	if len(txData) > 0 {
		if err := json.Unmarshal(txData, &order.TransactionData); err != nil {
			return nil, fmt.Errorf("unmarshal transaction data: %w", err)
		}
	}

	return &order, nil
}
