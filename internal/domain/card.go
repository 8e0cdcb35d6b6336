package domain

import (
	"time"
)

// SavedCard represents a tokenized card reference vaulted for a customer.
// The card itself never touches this system; TransactionReference is the
// gateway token used as parenttransactionreference on reuse.
type SavedCard struct {
	CreatedAt            time.Time `json:"created_at"`
	ID                   string    `json:"id"`
	CustomerID           string    `json:"customer_id"`
	TransactionReference string    `json:"transaction_reference"`
	MaskedPAN            string    `json:"masked_pan"`
	PaymentType          string    `json:"payment_type"`
	Active               bool      `json:"active"`
}

// SameCard reports whether two vault entries reference the same underlying
// card. Used for de-duplication on save.
func (c *SavedCard) SameCard(other *SavedCard) bool {
	return c.TransactionReference == other.TransactionReference &&
		c.MaskedPAN == other.MaskedPAN
}
