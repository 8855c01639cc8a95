package models

import "time"

// NotificationOutcome is the result of a single notification attempt
type NotificationOutcome string

const (
	OutcomeSent                NotificationOutcome = "SENT"
	OutcomeFailed              NotificationOutcome = "FAILED"
	OutcomeSkippedNoCredential NotificationOutcome = "SKIPPED_NO_CREDENTIAL"
)

// NotificationTrigger distinguishes scheduled reminders from explicit
// administrative sends and from event-driven confirmations
type NotificationTrigger string

const (
	TriggerAutomatic NotificationTrigger = "automatic"
	TriggerManual    NotificationTrigger = "manual"
	TriggerPayment   NotificationTrigger = "payment"
)

// NotificationRecord is the append-only audit trail of every notification
// attempt; it is never mutated or deleted
type NotificationRecord struct {
	ID           int64               `json:"id"`
	CommitmentID int64               `json:"commitment_id"`
	MemberID     int64               `json:"member_id"`
	Message      string              `json:"message"`
	Outcome      NotificationOutcome `json:"outcome"`
	Trigger      NotificationTrigger `json:"trigger"`
	SentAt       time.Time           `json:"sent_at"`
}
