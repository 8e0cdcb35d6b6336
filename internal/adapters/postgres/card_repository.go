package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// CardRepository implements ports.CardRepository on PostgreSQL. A partial
// unique index on (customer_id) WHERE active backs the single-active-card
// invariant; the clear-then-set inside one transaction keeps it from ever
// firing under well-behaved callers.
type CardRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewCardRepository creates a new saved-card repository
func NewCardRepository(db ports.DBPort, logger ports.Logger) *CardRepository {
	return &CardRepository{db: db, logger: logger}
}

// ListByCustomer returns every vault entry the customer owns
func (r *CardRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.SavedCard, error) {
	rows, err := r.db.GetDB().Query(ctx, `
		SELECT id, customer_id, transaction_reference, masked_pan, payment_type, active, created_at
		FROM saved_cards WHERE customer_id = $1
		ORDER BY created_at`, customerID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to list saved cards", err)
	}
	defer rows.Close()

	var cards []*domain.SavedCard
	for rows.Next() {
		var card domain.SavedCard
		if err := rows.Scan(&card.ID, &card.CustomerID, &card.TransactionReference,
			&card.MaskedPAN, &card.PaymentType, &card.Active, &card.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to scan saved card", err)
		}
		cards = append(cards, &card)
	}
	return cards, rows.Err()
}

// GetByID fetches a single vault entry
func (r *CardRepository) GetByID(ctx context.Context, cardID string) (*domain.SavedCard, error) {
	var card domain.SavedCard
	err := r.db.GetDB().QueryRow(ctx, `
		SELECT id, customer_id, transaction_reference, masked_pan, payment_type, active, created_at
		FROM saved_cards WHERE id = $1`, cardID).
		Scan(&card.ID, &card.CustomerID, &card.TransactionReference,
			&card.MaskedPAN, &card.PaymentType, &card.Active, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to get saved card", err)
	}
	return &card, nil
}

// Create inserts a new vault entry inside the supplied transaction
func (r *CardRepository) Create(ctx context.Context, tx pgx.Tx, card *domain.SavedCard) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO saved_cards (id, customer_id, transaction_reference, masked_pan, payment_type, active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.CustomerID, card.TransactionReference,
		card.MaskedPAN, card.PaymentType, card.Active)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to create saved card", err)
	}
	return nil
}

// SetActiveExclusive clears the active flag on every card the customer owns
// and sets it on cardID. Both statements run on the supplied transaction so
// the invariant holds under concurrent sessions.
func (r *CardRepository) SetActiveExclusive(ctx context.Context, tx pgx.Tx, customerID, cardID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE saved_cards SET active = false
		WHERE customer_id = $1 AND active`, customerID); err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to deactivate saved cards", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE saved_cards SET active = true
		WHERE id = $1 AND customer_id = $2`, cardID, customerID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to activate saved card", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCardNotFound.WithDetail("card_id", cardID)
	}
	return nil
}

// DeactivateAll clears the active flag on every card the customer owns
func (r *CardRepository) DeactivateAll(ctx context.Context, tx pgx.Tx, customerID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE saved_cards SET active = false
		WHERE customer_id = $1 AND active`, customerID); err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to deactivate saved cards", err)
	}
	return nil
}

// Delete removes a single vault entry owned by the customer
func (r *CardRepository) Delete(ctx context.Context, customerID, cardID string) error {
	tag, err := r.db.GetDB().Exec(ctx, `
		DELETE FROM saved_cards WHERE id = $1 AND customer_id = $2`, cardID, customerID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "failed to delete saved card", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCardNotFound.WithDetail("card_id", cardID)
	}
	return nil
}

// DeleteAllByCustomer removes every vault entry the customer owns. The
// caller is responsible for authorization; this is the privileged bulk path.
func (r *CardRepository) DeleteAllByCustomer(ctx context.Context, customerID string) (int64, error) {
	tag, err := r.db.GetDB().Exec(ctx, `
		DELETE FROM saved_cards WHERE customer_id = $1`, customerID)
	if err != nil {
		return 0, domain.WrapError(domain.ErrorCodeDatabaseError, "failed to delete saved cards", err)
	}
	return tag.RowsAffected(), nil
}
