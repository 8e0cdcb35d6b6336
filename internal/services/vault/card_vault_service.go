package vault

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// Service is the saved-card vault. Every mutation is persisted immediately;
// nothing is cached across requests.
type Service struct {
	db       ports.DBPort
	cardRepo ports.CardRepository
	logger   ports.Logger
}

// NewService creates a card vault service
func NewService(db ports.DBPort, cardRepo ports.CardRepository, logger ports.Logger) *Service {
	return &Service{
		db:       db,
		cardRepo: cardRepo,
		logger:   logger,
	}
}

// List returns the customer's vault entries with identical cards
// de-duplicated (first occurrence wins).
func (s *Service) List(ctx context.Context, customerID string) ([]*domain.SavedCard, error) {
	cards, err := s.cardRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var unique []*domain.SavedCard
	for _, card := range cards {
		duplicate := false
		for _, kept := range unique {
			if kept.SameCard(card) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, card)
		}
	}
	return unique, nil
}

// Activate sets exactly one card active and clears the flag on every other
// card the customer owns, in one transaction. Exclusivity is the vault's
// core invariant.
func (s *Service) Activate(ctx context.Context, customerID, cardID string) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.CustomerID != customerID {
		return domain.ErrCardNotOwned.WithDetail("card_id", cardID)
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.cardRepo.SetActiveExclusive(ctx, tx, customerID, cardID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("saved card activated",
		ports.String("customer_id", customerID),
		ports.String("card_id", cardID),
	)
	return nil
}

// DeactivateAll clears the active flag on every card the customer owns.
// Used when the shopper opts to enter a new card instead.
func (s *Service) DeactivateAll(ctx context.Context, customerID string) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.cardRepo.DeactivateAll(ctx, tx, customerID)
	})
}

// Save vaults a new card with the active flag unset. Guest checkout is a
// silent no-op; an identical existing card is not duplicated.
func (s *Service) Save(ctx context.Context, customerID, transactionReference, maskedPAN, paymentType string) (*domain.SavedCard, error) {
	if customerID == "" {
		return nil, nil
	}

	existing, err := s.cardRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	card := &domain.SavedCard{
		ID:                   uuid.New().String(),
		CustomerID:           customerID,
		TransactionReference: transactionReference,
		MaskedPAN:            maskedPAN,
		PaymentType:          paymentType,
		Active:               false,
	}

	for _, kept := range existing {
		if kept.SameCard(card) {
			return kept, nil
		}
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.cardRepo.Create(ctx, tx, card)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("saved card vaulted",
		ports.String("customer_id", customerID),
		ports.String("masked_pan", maskedPAN),
	)
	return card, nil
}

// Delete removes one vault entry owned by the customer
func (s *Service) Delete(ctx context.Context, customerID, cardID string) error {
	return s.cardRepo.Delete(ctx, customerID, cardID)
}

// DeleteAll removes every vault entry a customer owns. This is the
// privileged bulk path: the actor must carry explicit administrative
// authorization, not a role flag read from ambient session state.
func (s *Service) DeleteAll(ctx context.Context, actor domain.Actor, customerID string) (int64, error) {
	if !actor.CanAdministerVault() {
		return 0, domain.ErrAuthzDenied.WithDetail("role", string(actor.Role))
	}

	deleted, err := s.cardRepo.DeleteAllByCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}

	s.logger.Warn("saved cards bulk-deleted",
		ports.String("customer_id", customerID),
		ports.String("actor_id", actor.ID),
		ports.Int("deleted", int(deleted)),
	)
	return deleted, nil
}
