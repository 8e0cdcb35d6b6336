package ports

import (
	"context"
)

// RecurringAuthRequest is a merchant-initiated AUTH against a stored card
// reference, sequenced by the subscription counter.
type RecurringAuthRequest struct {
	ParentTransactionReference string
	OrderReference             string
	BaseAmountMinorUnits       int64
	SubscriptionNumber         int
}

// RefundRequest returns captured funds against a parent transaction
type RefundRequest struct {
	ParentTransactionReference string
	OrderReference             string
	BaseAmountMinorUnits       int64
}

// ProcessorResult is the first entry of the gateway response envelope.
// ErrorCode "0" means success; any other value is a business failure with a
// human-readable ErrorMessage.
type ProcessorResult struct {
	Raw                  map[string]interface{}
	Records              []map[string]interface{}
	ErrorCode            string
	ErrorMessage         string
	TransactionReference string
	SettleStatus         string
	MaskedPAN            string
	PaymentType          string
}

// Ok reports gateway-level success
func (r *ProcessorResult) Ok() bool {
	return r.ErrorCode == "0"
}

// FirstRecord returns the first matched record of a TRANSACTIONQUERY, or nil
func (r *ProcessorResult) FirstRecord() map[string]interface{} {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}

// RecordString reads a string field from a generic record map
func RecordString(record map[string]interface{}, key string) string {
	if record == nil {
		return ""
	}
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

// ProcessorClient issues server-to-server calls to the payment gateway.
// Calls are blocking, synchronous and single-attempt; retry cadence is the
// caller's concern. A transport-level credential rejection surfaces as
// domain.ErrGatewayUnauthorized, distinct from a decline.
type ProcessorClient interface {
	RecurringAuth(ctx context.Context, req RecurringAuthRequest) (*ProcessorResult, error)
	Refund(ctx context.Context, req RefundRequest) (*ProcessorResult, error)

	// TransactionQuery confirms a transaction server-side before any
	// client-supplied data is trusted. Success is errormessage == "Ok".
	TransactionQuery(ctx context.Context, transactionReference, orderReference string) (*ProcessorResult, error)

	// TransactionUpdate attaches the merchant order reference to a gateway
	// transaction.
	TransactionUpdate(ctx context.Context, transactionReference, orderReference string) (*ProcessorResult, error)
}
