package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name  string
		total string
		paid  string
		want  CommitmentStatus
	}{
		{"unpaid", "100.00", "0", StatusOpen},
		{"partially paid", "100.00", "99.99", StatusOpen},
		{"exactly paid", "100.00", "100.00", StatusSettled},
		{"overpaid", "100.00", "150.00", StatusSettled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := decimal.NewFromString(tt.total)
			paid, _ := decimal.NewFromString(tt.paid)
			assert.Equal(t, tt.want, StatusFor(total, paid))
		})
	}
}

func TestRemainingClampedAtZero(t *testing.T) {
	c := Commitment{
		Total:      decimal.RequireFromString("50.00"),
		AmountPaid: decimal.RequireFromString("80.00"),
	}
	assert.True(t, c.Remaining().IsZero(), "remaining must never be negative")
	// The true paid sum stays available for audit.
	assert.Equal(t, "80.00", c.AmountPaid.StringFixed(2))
}

func TestRemainingPartial(t *testing.T) {
	c := Commitment{
		Total:      decimal.RequireFromString("100.00"),
		AmountPaid: decimal.RequireFromString("40.00"),
	}
	assert.Equal(t, "60.00", c.Remaining().StringFixed(2))
}
