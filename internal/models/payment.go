package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents a recorded amount applied against a commitment
type Payment struct {
	ID           int64           `json:"id"`
	CommitmentID int64           `json:"commitment_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
}
