package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected int64
	}{
		{"standard amount", "19.99", 1999},
		{"zero", "0", 0},
		{"whole number", "25", 2500},
		{"rounds half up", "10.005", 1001},
		{"rounds down below half", "10.004", 1000},
		{"three decimal places", "1.999", 200},
		{"large amount", "12345.67", 1234567},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, ToMinorUnits(amount))
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
	assert.True(t, FromMinorUnits(0).Equal(decimal.Zero))
	assert.True(t, FromMinorUnits(2500).Equal(decimal.RequireFromString("25")))
}
