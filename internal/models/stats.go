package models

import "github.com/shopspring/decimal"

// Stats represents dashboard aggregates for a reporting window
type Stats struct {
	TotalMembers     int             `json:"total_members"`
	TotalCommitments int             `json:"total_commitments"`
	PaymentsInWindow int             `json:"payments_in_window"`
	AmountInWindow   decimal.Decimal `json:"amount_in_window"`
}
