package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// RenewalService charges due subscription renewals against the stored
// transaction reference of the initiating order. Charges are sequenced by
// the subscription counter; the counter only advances on gateway success,
// so a failed renewal retries with the same number.
type RenewalService struct {
	db        ports.DBPort
	orderRepo ports.OrderRepository
	subRepo   ports.SubscriptionRepository
	processor ports.ProcessorClient
	logger    ports.Logger
	now       func() time.Time
}

// NewRenewalService creates a renewal billing service
func NewRenewalService(
	db ports.DBPort,
	orderRepo ports.OrderRepository,
	subRepo ports.SubscriptionRepository,
	processor ports.ProcessorClient,
	logger ports.Logger,
) *RenewalService {
	return &RenewalService{
		db:        db,
		orderRepo: orderRepo,
		subRepo:   subRepo,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
}

// RunSummary reports one batch of ProcessDueRenewals
type RunSummary struct {
	Due     int
	Charged int
	Failed  int
	Skipped int
}

// ProcessDueRenewals charges every subscription whose next renewal is at or
// before asOf. One failing subscription never aborts the batch.
func (s *RenewalService) ProcessDueRenewals(ctx context.Context, asOf time.Time, limit int) (RunSummary, error) {
	due, err := s.subRepo.ListDue(ctx, asOf, limit)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Due: len(due)}
	for _, state := range due {
		if exhausted(state) {
			if err := s.subRepo.ClearNextDue(ctx, state.ParentOrderID, state.ItemKey); err != nil {
				s.logger.Error("failed to retire completed subscription", ports.Err(err),
					ports.String("parent_order_id", state.ParentOrderID))
			}
			summary.Skipped++
			continue
		}

		charged, err := s.ChargeRenewal(ctx, state)
		switch {
		case err != nil:
			summary.Failed++
			s.logger.Error("renewal charge failed", ports.Err(err),
				ports.String("parent_order_id", state.ParentOrderID),
				ports.String("item_key", state.ItemKey),
				ports.Int("subscription_number", state.SubscriptionNumber))
		case charged:
			summary.Charged++
		default:
			summary.Skipped++
		}
	}

	s.logger.Info("renewal batch complete",
		ports.Int("due", summary.Due),
		ports.Int("charged", summary.Charged),
		ports.Int("failed", summary.Failed),
		ports.Int("skipped", summary.Skipped))
	return summary, nil
}

// ChargeRenewal creates a renewal order and charges it against the parent
// order's stored transaction reference. On success the counter advances and
// the next due date moves forward; on a decline the renewal order goes on
// hold with the gateway's reason and the counter stays put. A schedule whose
// parent checkout never settled is retired, not charged.
func (s *RenewalService) ChargeRenewal(ctx context.Context, state *domain.SubscriptionState) (bool, error) {
	parent, err := s.orderRepo.GetByID(ctx, state.ParentOrderID)
	if err != nil {
		return false, err
	}
	if parent.Status != domain.SettlementStatusPaid {
		s.logger.Warn("retiring schedule for unsettled parent order",
			ports.String("parent_order_id", state.ParentOrderID),
			ports.String("status", string(parent.Status)))
		return false, s.subRepo.ClearNextDue(ctx, state.ParentOrderID, state.ItemKey)
	}
	if parent.TransactionReference == nil || *parent.TransactionReference == "" {
		return false, domain.ErrOrderInvalidState.WithDetail("reason", "parent order has no transaction reference")
	}

	renewal := s.newRenewalOrder(parent, state)
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.orderRepo.Create(ctx, tx, renewal)
	})
	if err != nil {
		return false, err
	}

	result, err := s.processor.RecurringAuth(ctx, ports.RecurringAuthRequest{
		ParentTransactionReference: *parent.TransactionReference,
		OrderReference:             renewal.OrderReference,
		BaseAmountMinorUnits:       state.AmountMinorUnits,
		SubscriptionNumber:         state.SubscriptionNumber + 1,
	})
	if err != nil {
		note := fmt.Sprintf("Renewal charge could not reach the gateway: %v", err)
		if noteErr := s.orderRepo.AppendNote(ctx, renewal.ID, note); noteErr != nil {
			s.logger.Error("failed to note renewal transport error", ports.Err(noteErr))
		}
		return false, err
	}

	if !result.Ok() {
		return false, s.recordDecline(ctx, renewal, state, result)
	}
	if err := s.recordSuccess(ctx, renewal, state, result); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RenewalService) newRenewalOrder(parent *domain.Order, state *domain.SubscriptionState) *domain.Order {
	return &domain.Order{
		ID:               uuid.New().String(),
		OrderReference:   domain.NewOrderReference(),
		CustomerID:       parent.CustomerID,
		Currency:         parent.Currency,
		Billing:          parent.Billing,
		Shipping:         parent.Shipping,
		AmountMinorUnits: state.AmountMinorUnits,
		Status:           domain.SettlementStatusInitiated,
		Processing:       domain.ProcessingNone,
	}
}

func (s *RenewalService) recordSuccess(ctx context.Context, renewal *domain.Order, state *domain.SubscriptionState, result *ports.ProcessorResult) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.subRepo.IncrementCounter(ctx, tx, state.ParentOrderID, state.ItemKey, state.SubscriptionNumber); err != nil {
			return err
		}
		applied, err := s.orderRepo.MarkSettled(ctx, tx, renewal.ID, ports.SettlementResult{
			Status:               domain.SettlementStatusPaid,
			TransactionReference: result.TransactionReference,
			TransactionData:      result.Raw,
			Note:                 fmt.Sprintf("Renewal payment %d captured", state.SubscriptionNumber+1),
		})
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrOrderAlreadySettled.WithDetail("order_id", renewal.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	charged := state.SubscriptionNumber + 1
	if state.TotalOccurrences > 0 && charged >= state.TotalOccurrences {
		if err := s.subRepo.ClearNextDue(ctx, state.ParentOrderID, state.ItemKey); err != nil {
			return err
		}
	} else {
		next := NextDue(s.now(), state.Unit, state.Interval)
		if err := s.subRepo.UpdateNextDue(ctx, state.ParentOrderID, state.ItemKey, next); err != nil {
			return err
		}
	}

	s.logger.Info("renewal charged",
		ports.String("parent_order_id", state.ParentOrderID),
		ports.String("order_reference", renewal.OrderReference),
		ports.Int("subscription_number", charged))
	return nil
}

func (s *RenewalService) recordDecline(ctx context.Context, renewal *domain.Order, state *domain.SubscriptionState, result *ports.ProcessorResult) error {
	note := fmt.Sprintf("Renewal payment declined by the gateway: %s - %s", result.ErrorCode, result.ErrorMessage)
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := s.orderRepo.MarkSettled(ctx, tx, renewal.ID, ports.SettlementResult{
			Status:               domain.SettlementStatusOnHold,
			TransactionReference: result.TransactionReference,
			TransactionData:      result.Raw,
			Note:                 note,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Warn("renewal declined",
		ports.String("parent_order_id", state.ParentOrderID),
		ports.String("error_code", result.ErrorCode),
		ports.String("error_message", result.ErrorMessage))
	return domain.NewDomainError(domain.ErrorCodeDeclined, note).
		WithDetail("parent_order_id", state.ParentOrderID)
}

func exhausted(state *domain.SubscriptionState) bool {
	return state.TotalOccurrences > 0 && state.SubscriptionNumber >= state.TotalOccurrences
}
