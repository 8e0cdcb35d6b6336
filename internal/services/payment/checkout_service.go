package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/billing"
)

// CheckoutService creates the order, derives the billing schedule and
// renders the signed payload for one checkout attempt.
type CheckoutService struct {
	db       ports.DBPort
	orders   ports.OrderRepository
	cards    ports.CardRepository
	subs     ports.SubscriptionRepository
	planner  *billing.Planner
	builder  *SignedRequestBuilder
	logger   ports.Logger
	now      func() time.Time
}

// NewCheckoutService creates a checkout service
func NewCheckoutService(
	db ports.DBPort,
	orders ports.OrderRepository,
	cards ports.CardRepository,
	subs ports.SubscriptionRepository,
	planner *billing.Planner,
	builder *SignedRequestBuilder,
	logger ports.Logger,
) *CheckoutService {
	return &CheckoutService{
		db:      db,
		orders:  orders,
		cards:   cards,
		subs:    subs,
		planner: planner,
		builder: builder,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckoutInput is one checkout attempt as submitted by the storefront
type CheckoutInput struct {
	CustomerID  string // "" for guest checkout
	Currency    string
	Billing     domain.Address
	Shipping    domain.Address
	Items       []domain.CartItem
	SavedCardID string // reuse a vaulted card instead of entering a new one
	SaveCard    bool   // vault the new card on success
}

// CheckoutResult carries the created order and the single-use signed
// payload the browser widget consumes.
type CheckoutResult struct {
	Order   *domain.Order
	Payload *SignedPayload
}

// Checkout validates the cart, persists the order (and any renewal
// bookkeeping) and signs the authorization payload. The order leaves here
// in auth_pending: the widget is live and the settlement channels own the
// rest of the lifecycle.
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.Currency == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "currency")
	}

	plan := s.planner.Derive(input.Items)

	// A free trial legitimately totals zero: the initial authorization is an
	// account check, not a charge. Everything else needs funds to move.
	totalMinor := domain.ToMinorUnits(cartTotal(input.Items))
	if totalMinor < 0 || (totalMinor == 0 && (plan == nil || !plan.HasTrial())) {
		return nil, domain.ErrOrderZeroTotal
	}

	var savedCard *domain.SavedCard
	if input.SavedCardID != "" {
		card, err := s.cards.GetByID(ctx, input.SavedCardID)
		if err != nil {
			return nil, err
		}
		if card.CustomerID != input.CustomerID {
			return nil, domain.ErrCardNotOwned.WithDetail("card_id", input.SavedCardID)
		}
		savedCard = card
	}

	// A guest has no vault to save into
	saveCard := input.SaveCard && input.CustomerID != ""

	order := &domain.Order{
		ID:                uuid.New().String(),
		OrderReference:    domain.NewOrderReference(),
		Currency:          input.Currency,
		Billing:           input.Billing,
		Shipping:          input.Shipping,
		AmountMinorUnits:  totalMinor,
		Status:            domain.SettlementStatusInitiated,
		Processing:        domain.ProcessingNone,
		SaveCardRequested: saveCard,
	}
	if input.CustomerID != "" {
		order.CustomerID = &input.CustomerID
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return err
		}
		if plan == nil {
			return nil
		}
		firstDue := billing.FirstDue(plan, s.now())
		return s.subs.Create(ctx, tx, &domain.SubscriptionState{
			ParentOrderID:      order.ID,
			Unit:               plan.Unit,
			Interval:           plan.Interval,
			TotalOccurrences:   plan.TotalOccurrences,
			SubscriptionNumber: 1,
			AmountMinorUnits:   domain.ToMinorUnits(plan.RecurringAmount),
			NextDueAt:          &firstDue,
		})
	})
	if err != nil {
		return nil, err
	}

	payload, err := s.builder.Build(BuildInput{
		Order:     order,
		Plan:      plan,
		SavedCard: savedCard,
		MixedCart: plan != nil && plan.Bootstrap,
		SaveCard:  saveCard,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.MarkAuthPending(ctx, order.ID); err != nil {
		return nil, err
	}
	order.Status = domain.SettlementStatusAuthPending

	s.logger.Info("checkout initiated",
		ports.String("order_id", order.ID),
		ports.String("order_reference", order.OrderReference),
		ports.Int("amount_minor_units", int(totalMinor)),
		ports.Bool("subscription", plan != nil),
	)
	return &CheckoutResult{Order: order, Payload: payload}, nil
}

func cartTotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.Price.Mul(qty))
		if item.Subscription {
			total = total.Add(item.SignUpFee.Mul(qty))
		}
	}
	return total
}
