package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/Dan9191/pledge-service/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service is the ledger engine: it validates every mutation against the
// pledge invariants and keeps the derived settlement state consistent.
type Service struct {
	store      Store
	log        *logrus.Logger
	now        func() time.Time
	codePrefix string
}

// NewService initializes a new ledger service
func NewService(store Store, log *logrus.Logger, codePrefix string) *Service {
	return &Service{store: store, log: log, now: time.Now, codePrefix: codePrefix}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateMember registers a member and assigns the next member code
func (s *Service) CreateMember(ctx context.Context, phone, name, group, apiKey string) (*models.Member, error) {
	if phone == "" {
		return nil, validationErr("phone", "is required")
	}
	if !utils.ValidPhone(phone) {
		return nil, validationErr("phone", "must be an international number like +243970000000")
	}

	lastID, err := s.store.LastMemberID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate member code: %w", err)
	}

	m := &models.Member{
		Code:      utils.MemberCode(s.codePrefix, lastID+1),
		Name:      name,
		Phone:     phone,
		Group:     group,
		Status:    "active",
		APIKey:    apiKey,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	s.log.Infof("Member created: %s (%s)", m.Code, m.Phone)
	return m, nil
}

// CreateCommitment records a new pledge for a member. The total must be
// positive, the due date present, and the member must exist.
func (s *Service) CreateCommitment(ctx context.Context, memberID int64, total decimal.Decimal, dueDate time.Time, description string) (*models.Commitment, error) {
	if !total.IsPositive() {
		return nil, validationErr("total", "must be a positive amount")
	}
	if dueDate.IsZero() {
		return nil, validationErr("due_date", "is required")
	}
	if _, err := s.store.MemberByID(ctx, memberID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationErr("member_id", "member does not exist")
		}
		return nil, err
	}

	c := &models.Commitment{
		MemberID:    memberID,
		Total:       total,
		AmountPaid:  decimal.Zero,
		DueDate:     dueDate,
		Description: description,
		Status:      models.StatusOpen,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateCommitment(ctx, c); err != nil {
		return nil, err
	}

	s.log.Infof("Commitment %d created for member %d: %s due %s",
		c.ID, memberID, total.StringFixed(2), dueDate.Format("02/01/2006"))
	return c, nil
}

// RecordPayment applies an amount against a commitment and recomputes its
// settlement status atomically. A zero paidAt defaults to now; dropping the
// payment over a missing date would lose real cash.
func (s *Service) RecordPayment(ctx context.Context, commitmentID int64, amount decimal.Decimal, paidAt time.Time) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, validationErr("amount", "must be a positive amount")
	}
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	p := &models.Payment{CommitmentID: commitmentID, Amount: amount, PaidAt: paidAt}
	c, err := s.store.ApplyPayment(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationErr("commitment_id", "commitment does not exist")
		}
		return nil, err
	}

	s.log.Infof("Payment of %s recorded for commitment %d (status %s, remaining %s)",
		amount.StringFixed(2), c.ID, c.Status, c.Remaining().StringFixed(2))
	return p, nil
}

// RemovePayment deletes a payment and re-derives the commitment status, so a
// settled commitment reopens when its paid sum drops below the total.
func (s *Service) RemovePayment(ctx context.Context, paymentID int64) error {
	c, err := s.store.DeletePayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return validationErr("payment_id", "payment does not exist")
		}
		return err
	}

	s.log.Infof("Payment %d removed from commitment %d (status %s, remaining %s)",
		paymentID, c.ID, c.Status, c.Remaining().StringFixed(2))
	return nil
}

// CommitmentUpdate is a partial update; nil fields are left unchanged.
type CommitmentUpdate struct {
	Total       *decimal.Decimal
	DueDate     *time.Time
	Description *string
	Status      *models.CommitmentStatus
}

// UpdateCommitment applies a partial update. An explicit status is allowed
// as an administrative override; the engine re-derives status on the next
// payment mutation regardless.
func (s *Service) UpdateCommitment(ctx context.Context, id int64, upd CommitmentUpdate) (*models.Commitment, error) {
	c, err := s.store.CommitmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationErr("commitment_id", "commitment does not exist")
		}
		return nil, err
	}

	if upd.Total != nil {
		if !upd.Total.IsPositive() {
			return nil, validationErr("total", "must be a positive amount")
		}
		c.Total = *upd.Total
	}
	if upd.DueDate != nil {
		if upd.DueDate.IsZero() {
			return nil, validationErr("due_date", "is required")
		}
		c.DueDate = *upd.DueDate
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.Status != nil {
		if *upd.Status != models.StatusOpen && *upd.Status != models.StatusSettled {
			return nil, validationErr("status", "must be OPEN or SETTLED")
		}
		c.Status = *upd.Status
	} else if upd.Total != nil {
		c.Status = models.StatusFor(c.Total, c.AmountPaid)
	}

	if err := s.store.UpdateCommitment(ctx, c); err != nil {
		return nil, err
	}

	s.log.Infof("Commitment %d updated (status %s)", c.ID, c.Status)
	return c, nil
}

// AmountRemaining returns the clamped outstanding balance. O(1): the paid
// sum is maintained incrementally by the store, never re-summed here.
func (s *Service) AmountRemaining(ctx context.Context, commitmentID int64) (decimal.Decimal, error) {
	c, err := s.store.CommitmentByID(ctx, commitmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, validationErr("commitment_id", "commitment does not exist")
		}
		return decimal.Zero, err
	}
	return c.Remaining(), nil
}

// MemberByID retrieves a member
func (s *Service) MemberByID(ctx context.Context, id int64) (*models.Member, error) {
	return s.store.MemberByID(ctx, id)
}

// ListMembers retrieves all members
func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.store.ListMembers(ctx)
}

// MemberDetail bundles a member with their commitments and latest payments
type MemberDetail struct {
	Member         models.Member       `json:"member"`
	Commitments    []models.Commitment `json:"commitments"`
	RecentPayments []models.Payment    `json:"recent_payments"`
}

// MemberDetailByID retrieves a member together with their commitments and
// the ten most recent payments across them
func (s *Service) MemberDetailByID(ctx context.Context, id int64) (*MemberDetail, error) {
	m, err := s.store.MemberByID(ctx, id)
	if err != nil {
		return nil, err
	}
	commitments, err := s.store.CommitmentsByMember(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.RecentPaymentsByMember(ctx, id, 10)
	if err != nil {
		return nil, err
	}
	return &MemberDetail{Member: *m, Commitments: commitments, RecentPayments: payments}, nil
}

// CommitmentByID retrieves a commitment
func (s *Service) CommitmentByID(ctx context.Context, id int64) (*models.Commitment, error) {
	return s.store.CommitmentByID(ctx, id)
}

// ListCommitments retrieves all commitments
func (s *Service) ListCommitments(ctx context.Context) ([]models.Commitment, error) {
	return s.store.ListCommitments(ctx)
}

// ListPayments retrieves all payments, most recent first
func (s *Service) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.store.ListPayments(ctx)
}

// OpenCommitments returns all commitments that are not yet settled
func (s *Service) OpenCommitments(ctx context.Context) ([]models.Commitment, error) {
	return s.store.OpenCommitments(ctx)
}

// OpenCommitmentsDueBy returns open commitments whose due date falls on or
// before the given time
func (s *Service) OpenCommitmentsDueBy(ctx context.Context, by time.Time) ([]models.Commitment, error) {
	return s.store.OpenCommitmentsDueBy(ctx, by)
}

// HasReminderSince reports whether a commitment already received a SENT or
// FAILED notification since the given time. Skipped attempts do not count:
// nothing reached the member, so the next period should try again.
func (s *Service) HasReminderSince(ctx context.Context, commitmentID int64, since time.Time) (bool, error) {
	return s.store.HasNotificationSince(ctx, commitmentID, since,
		[]models.NotificationOutcome{models.OutcomeSent, models.OutcomeFailed})
}

// RecordNotification appends a notification attempt to the audit trail
func (s *Service) RecordNotification(ctx context.Context, rec *models.NotificationRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = s.now()
	}
	return s.store.AddNotification(ctx, rec)
}

// NotificationsByCommitment retrieves the notification history of a commitment
func (s *Service) NotificationsByCommitment(ctx context.Context, commitmentID int64) ([]models.NotificationRecord, error) {
	return s.store.NotificationsByCommitment(ctx, commitmentID)
}

// Stats returns dashboard aggregates over the given number of trailing days
func (s *Service) Stats(ctx context.Context, windowDays int) (*models.Stats, error) {
	since := s.now().AddDate(0, 0, -windowDays)
	return s.store.Stats(ctx, since)
}
