package reconciliation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/observability"
)

const (
	channelCallback     = "callback"
	channelNotification = "notification"
)

// CardVault is the slice of the vault the settlement path needs: persisting
// the card reference a successful authorization produced.
type CardVault interface {
	Save(ctx context.Context, customerID, transactionReference, maskedPAN, paymentType string) (*domain.SavedCard, error)
}

// Service reconciles the two settlement channels. The browser callback and
// the asynchronous notification both converge on one conditional write, so
// whichever channel arrives second becomes a no-op.
type Service struct {
	db        ports.DBPort
	orders    ports.OrderRepository
	processor ports.ProcessorClient
	vault     CardVault
	logger    ports.Logger
}

// NewService creates a reconciliation service
func NewService(
	db ports.DBPort,
	orders ports.OrderRepository,
	processor ports.ProcessorClient,
	vault CardVault,
	logger ports.Logger,
) *Service {
	return &Service{
		db:        db,
		orders:    orders,
		processor: processor,
		vault:     vault,
		logger:    logger,
	}
}

// CallbackInput is the browser redirect after the widget completes. Every
// field is client-carried and untrusted until confirmed server-side.
type CallbackInput struct {
	OrderReference       string
	TransactionReference string
	ErrorCode            string
	SettleStatus         string
	Rules                []string // rule identifiers the widget echoed back
}

// Outcome reports what the settlement attempt concluded
type Outcome struct {
	Order        *domain.Order
	Settled      bool // order is now (or already was) terminally settled
	Declined     bool
	ErrorCode    string
	ErrorMessage string
	ErrorData    []string
}

// HandleCallback settles an order from the browser redirect. Client data is
// only trusted after a server-side TRANSACTIONQUERY confirms it; any
// ambiguity between success and decline signals resolves to decline.
func (s *Service) HandleCallback(ctx context.Context, input CallbackInput) (*Outcome, error) {
	order, err := s.orders.GetByOrderReference(ctx, input.OrderReference)
	if err != nil {
		return nil, err
	}

	if !order.CanSettle() {
		return &Outcome{
			Order:    order,
			Settled:  order.IsSettled(),
			Declined: order.Status == domain.SettlementStatusFailed,
		}, nil
	}

	// A decline rule overrides everything else in the payload, including a
	// success rule appearing alongside it.
	if ruleDeclined(input.Rules) || input.ErrorCode != "0" || input.TransactionReference == "" {
		return s.clientDecline(order, input.ErrorCode, "", nil), nil
	}

	query, err := s.processor.TransactionQuery(ctx, input.TransactionReference, order.OrderReference)
	if err != nil {
		return nil, err
	}

	record := query.FirstRecord()
	if query.ErrorMessage != "Ok" || record == nil ||
		ports.RecordString(record, "errorcode") != "0" {
		// The redirect claimed success but the gateway does not confirm it
		s.logger.Warn("callback success not confirmed by transaction query",
			ports.String("order_reference", order.OrderReference),
			ports.String("transaction_reference", input.TransactionReference))
		return s.clientDecline(order,
			ports.RecordString(record, "errorcode"),
			ports.RecordString(record, "errormessage"), nil), nil
	}

	applied, err := s.applySettlement(ctx, channelCallback, order, settlementFromRecord(input.TransactionReference, record))
	if err != nil {
		return nil, err
	}
	if applied {
		s.finishSettlement(ctx, order, input.TransactionReference,
			ports.RecordString(record, "maskedpan"),
			ports.RecordString(record, "paymenttypedescription"))
	}

	settled, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Order: settled, Settled: true}, nil
}

// HandleNotification settles an order from an authenticated gateway
// notification. The middleware has already verified the digest and source
// address, so the field values are trusted as-is.
func (s *Service) HandleNotification(ctx context.Context, event *domain.NotificationEvent) error {
	orderRef := event.Get("orderreference")
	if orderRef == "" {
		return domain.NewDomainError(domain.ErrorCodeNotifyUnknownOrder, "notification carries no order reference")
	}

	order, err := s.orders.GetByOrderReference(ctx, orderRef)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeOrderNotFound) {
			return domain.NewDomainError(domain.ErrorCodeNotifyUnknownOrder, "notification references an unknown order").
				WithDetail("order_reference", orderRef)
		}
		return err
	}

	// A zero-total order has nothing to settle; the notification is noise
	if order.AmountMinorUnits <= 0 {
		s.logger.Info("discarding notification for zero-total order",
			ports.String("order_reference", orderRef))
		return nil
	}

	if !order.CanSettle() {
		return nil
	}

	if errorCode := event.Get("errorcode"); errorCode != "0" {
		return s.failOrder(ctx, order, errorCode, event.Get("errormessage"))
	}

	txRef := event.Get("transactionreference")
	result := ports.SettlementResult{
		Status:               statusForSettleStatus(event.Get("settlestatus")),
		TransactionReference: txRef,
		TransactionData:      eventData(event),
	}
	result.Note = settlementNote(result.Status, txRef)

	applied, err := s.applySettlement(ctx, channelNotification, order, result)
	if err != nil {
		return err
	}
	if applied {
		s.finishSettlement(ctx, order, txRef,
			event.Get("maskedpan"), event.Get("paymenttypedescription"))
	}
	return nil
}

// Refund returns captured funds against a settled order. The gateway
// rejecting the webservice credentials is a configuration problem and
// surfaces as its own error, never as a decline.
func (s *Service) Refund(ctx context.Context, actor domain.Actor, orderID string, amount decimal.Decimal) error {
	if !actor.CanRefund() {
		return domain.ErrAuthzDenied.WithDetail("role", string(actor.Role))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.SettlementStatusPaid || order.TransactionReference == nil {
		return domain.ErrOrderInvalidState.WithDetail("reason", "only a paid order can be refunded")
	}

	amountMinor := domain.ToMinorUnits(amount)
	if amountMinor <= 0 || amountMinor > order.AmountMinorUnits {
		return domain.ErrValidationAmountInvalid.WithDetail("amount", amount.String())
	}

	result, err := s.processor.Refund(ctx, ports.RefundRequest{
		ParentTransactionReference: *order.TransactionReference,
		OrderReference:             order.OrderReference,
		BaseAmountMinorUnits:       amountMinor,
	})
	if err != nil {
		return err
	}
	if !result.Ok() {
		observability.RecordRefund("declined")
		return domain.NewDomainError(domain.ErrorCodeDeclined,
			fmt.Sprintf("refund rejected by the gateway: %s - %s", result.ErrorCode, result.ErrorMessage))
	}
	observability.RecordRefund("accepted")

	note := fmt.Sprintf("Refund of %s %s accepted by the gateway (transaction %s)",
		amount.StringFixed(2), order.Currency, result.TransactionReference)
	if err := s.orders.AppendNote(ctx, orderID, note); err != nil {
		return err
	}

	s.logger.Info("refund accepted",
		ports.String("order_id", orderID),
		ports.String("actor_id", actor.ID),
		ports.String("transaction_reference", result.TransactionReference))
	return nil
}

// clientDecline reports a decline seen on the callback channel without
// touching the order. The callback carries unverified client data, and the
// shopper may retry the attempt; only the authenticated notification channel
// is allowed to mark an order failed.
func (s *Service) clientDecline(order *domain.Order, errorCode, errorMessage string, errorData []string) *Outcome {
	observability.RecordSettlement(channelCallback, "declined", order.Currency, order.AmountMinorUnits)
	s.logger.Warn("payment declined",
		ports.String("order_reference", order.OrderReference),
		ports.String("error_code", errorCode))
	return &Outcome{
		Order:        order,
		Declined:     true,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		ErrorData:    errorData,
	}
}

// failOrder records a terminal decline from the authenticated notification
// channel.
func (s *Service) failOrder(ctx context.Context, order *domain.Order, errorCode, errorMessage string) error {
	note := fmt.Sprintf("Payment declined by the gateway (errorcode %s)", errorCode)
	if errorMessage != "" {
		note = fmt.Sprintf("Payment declined by the gateway: %s - %s", errorCode, errorMessage)
	}
	if err := s.orders.MarkFailed(ctx, order.ID, note); err != nil {
		return err
	}

	observability.RecordSettlement(channelNotification, "failed", order.Currency, order.AmountMinorUnits)
	s.logger.Warn("payment declined",
		ports.String("order_reference", order.OrderReference),
		ports.String("error_code", errorCode))
	return nil
}

// applySettlement performs the one conditional terminal write both channels
// share. (false, nil) means the other channel got there first.
func (s *Service) applySettlement(ctx context.Context, channel string, order *domain.Order, result ports.SettlementResult) (bool, error) {
	var applied bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		applied, err = s.orders.MarkSettled(ctx, tx, order.ID, result)
		return err
	})
	if err != nil {
		return false, err
	}

	if !applied {
		s.logger.Info("order already settled by the other channel",
			ports.String("order_reference", order.OrderReference))
		return false, nil
	}

	observability.RecordSettlement(channel, string(result.Status), order.Currency, order.AmountMinorUnits)
	s.logger.Info("order settled",
		ports.String("order_reference", order.OrderReference),
		ports.String("status", string(result.Status)),
		ports.String("transaction_reference", result.TransactionReference))
	return true, nil
}

// finishSettlement runs the post-settlement side effects. Neither failure
// unwinds the settlement; both are logged and left for manual follow-up.
func (s *Service) finishSettlement(ctx context.Context, order *domain.Order, txRef, maskedPAN, paymentType string) {
	if order.SaveCardRequested && maskedPAN != "" {
		if _, err := s.vault.Save(ctx, order.GetCustomerID(), txRef, maskedPAN, paymentType); err != nil {
			s.logger.Error("failed to vault card after settlement", ports.Err(err),
				ports.String("order_reference", order.OrderReference))
		} else {
			observability.RecordCardVaulted()
		}
	}

	if _, err := s.processor.TransactionUpdate(ctx, txRef, order.OrderReference); err != nil {
		s.logger.Error("failed to stamp order reference on transaction", ports.Err(err),
			ports.String("transaction_reference", txRef))
	}
}

func ruleDeclined(rules []string) bool {
	for _, rule := range rules {
		if rule == domain.RuleDecline {
			return true
		}
	}
	return false
}

// Settle status "2" means the gateway suspended settlement; funds have not
// moved and the order needs manual review.
func statusForSettleStatus(settleStatus string) domain.SettlementStatus {
	if settleStatus == "2" {
		return domain.SettlementStatusOnHold
	}
	return domain.SettlementStatusPaid
}

func settlementFromRecord(txRef string, record map[string]interface{}) ports.SettlementResult {
	result := ports.SettlementResult{
		Status:               statusForSettleStatus(ports.RecordString(record, "settlestatus")),
		TransactionReference: txRef,
		TransactionData:      record,
	}
	result.Note = settlementNote(result.Status, txRef)
	return result
}

func settlementNote(status domain.SettlementStatus, txRef string) string {
	if status == domain.SettlementStatusOnHold {
		return fmt.Sprintf("Settlement suspended by the gateway (transaction %s); review required", txRef)
	}
	return fmt.Sprintf("Payment authorized (transaction %s)", txRef)
}

func eventData(event *domain.NotificationEvent) map[string]interface{} {
	data := make(map[string]interface{}, len(event.Fields))
	for _, f := range event.Fields {
		data[f.Key] = f.Value
	}
	return data
}
