package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommitmentStatus is the derived settlement state of a commitment
type CommitmentStatus string

const (
	StatusOpen    CommitmentStatus = "OPEN"
	StatusSettled CommitmentStatus = "SETTLED"
)

// Commitment represents a member's pledge to pay a fixed total by a due date
type Commitment struct {
	ID          int64            `json:"id"`
	MemberID    int64            `json:"member_id"`
	Total       decimal.Decimal  `json:"total"`
	AmountPaid  decimal.Decimal  `json:"amount_paid"`
	DueDate     time.Time        `json:"due_date"`
	Description string           `json:"description,omitempty"`
	Status      CommitmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Remaining returns the outstanding balance, clamped at zero. AmountPaid
// keeps the true sum for audit even when payments exceed the total.
func (c *Commitment) Remaining() decimal.Decimal {
	rem := c.Total.Sub(c.AmountPaid)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// StatusFor derives the commitment status from its total and paid sum:
// SETTLED exactly when the paid sum reaches or exceeds the total.
func StatusFor(total, paid decimal.Decimal) CommitmentStatus {
	if paid.GreaterThanOrEqual(total) {
		return StatusSettled
	}
	return StatusOpen
}
