package domain

import (
	"crypto/rand"
	"time"
)

// SettlementStatus represents the settlement lifecycle state of an order
type SettlementStatus string

const (
	SettlementStatusInitiated   SettlementStatus = "initiated"    // Checkout created, no widget interaction yet
	SettlementStatusAuthPending SettlementStatus = "auth_pending" // Signed payload rendered, awaiting gateway outcome
	SettlementStatusPaid        SettlementStatus = "paid"         // Funds captured
	SettlementStatusOnHold      SettlementStatus = "on_hold"      // Settlement suspended by the gateway, or renewal failed
	SettlementStatusFailed      SettlementStatus = "failed"       // Declined; terminal for this attempt
)

// ProcessingMarker guards terminal settlement mutations against the
// callback/notification race. Transitions none -> active -> complete.
type ProcessingMarker string

const (
	ProcessingNone     ProcessingMarker = "none"
	ProcessingActive   ProcessingMarker = "active"
	ProcessingComplete ProcessingMarker = "complete"
)

// The gateway rule identifiers the widget evaluates client-side and echoes
// back in the callback. STR-8 fires on a successful authorization, STR-9 on
// a decline.
const (
	RuleSuccess = "STR-8"
	RuleDecline = "STR-9"
)

// Address is the billing or shipping snapshot captured at checkout
type Address struct {
	Premise     string `json:"premise"`
	Street      string `json:"street"`
	Town        string `json:"town"`
	County      string `json:"county"`
	Postcode    string `json:"postcode"`
	CountryISO2 string `json:"country_iso2"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// Order represents a checkout attempt and its settlement state
type Order struct {
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	PaidAt               *time.Time             `json:"paid_at"`
	TransactionReference *string                `json:"transaction_reference"`
	TransactionData      map[string]interface{} `json:"transaction_data"`
	CustomerID           *string                `json:"customer_id"`
	Notes                []string               `json:"notes"`
	ID                   string                 `json:"id"`
	OrderReference       string                 `json:"order_reference"`
	Currency             string                 `json:"currency"`
	Billing              Address                `json:"billing"`
	Shipping             Address                `json:"shipping"`
	Status               SettlementStatus       `json:"status"`
	Processing           ProcessingMarker       `json:"processing"`
	AmountMinorUnits     int64                  `json:"amount_minor_units"`
	SaveCardRequested    bool                   `json:"save_card_requested"`
}

// IsSettled returns true once a terminal settlement has been applied
func (o *Order) IsSettled() bool {
	return o.Status == SettlementStatusPaid || o.Status == SettlementStatusOnHold
}

// CanSettle returns true if the order may still receive a terminal
// transition. An on-hold order stays eligible: a later confirmed outcome
// releases the suspension to paid.
func (o *Order) CanSettle() bool {
	return o.Status == SettlementStatusInitiated ||
		o.Status == SettlementStatusAuthPending ||
		o.Status == SettlementStatusOnHold
}

// GetCustomerID safely retrieves the customer ID ("" for guest checkout)
func (o *Order) GetCustomerID() string {
	if o.CustomerID != nil {
		return *o.CustomerID
	}
	return ""
}

const orderReferenceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderReference generates the opaque correlation token embedded at
// checkout time. Notifications resolve orders by this token rather than by
// the guessable order ID.
func NewOrderReference() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	for i, b := range buf {
		buf[i] = orderReferenceAlphabet[int(b)%len(orderReferenceAlphabet)]
	}
	return "Ref-" + string(buf)
}
