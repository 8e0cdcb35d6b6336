package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderCanSettle(t *testing.T) {
	tests := []struct {
		name     string
		status   SettlementStatus
		expected bool
	}{
		{"initiated can settle", SettlementStatusInitiated, true},
		{"auth pending can settle", SettlementStatusAuthPending, true},
		{"paid cannot settle again", SettlementStatusPaid, false},
		{"on hold stays eligible for release", SettlementStatusOnHold, true},
		{"failed cannot settle", SettlementStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Status: tt.status}
			assert.Equal(t, tt.expected, order.CanSettle())
		})
	}
}

func TestOrderIsSettled(t *testing.T) {
	assert.True(t, (&Order{Status: SettlementStatusPaid}).IsSettled())
	assert.True(t, (&Order{Status: SettlementStatusOnHold}).IsSettled())
	assert.False(t, (&Order{Status: SettlementStatusInitiated}).IsSettled())
	assert.False(t, (&Order{Status: SettlementStatusFailed}).IsSettled())
}

func TestNewOrderReference(t *testing.T) {
	ref := NewOrderReference()
	assert.True(t, strings.HasPrefix(ref, "Ref-"))
	assert.Len(t, ref, 14)

	// References are random correlation tokens; collisions should not occur
	// across a handful of draws.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := NewOrderReference()
		assert.False(t, seen[r])
		seen[r] = true
	}
}

func TestGetCustomerID(t *testing.T) {
	customerID := "cust-123"
	assert.Equal(t, "cust-123", (&Order{CustomerID: &customerID}).GetCustomerID())
	assert.Equal(t, "", (&Order{}).GetCustomerID())
}
