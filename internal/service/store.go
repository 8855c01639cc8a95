package service

import (
	"context"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
)

// Store is the durable record store the ledger engine runs against. Methods
// that report a missing entity return an error wrapping ErrNotFound.
//
// ApplyPayment and DeletePayment must apply the payment write and the
// commitment's paid-sum/status update as a single atomic unit, so a
// concurrent reader never observes one without the other.
type Store interface {
	CreateMember(ctx context.Context, m *models.Member) error
	MemberByID(ctx context.Context, id int64) (*models.Member, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	LastMemberID(ctx context.Context) (int64, error)

	CreateCommitment(ctx context.Context, c *models.Commitment) error
	CommitmentByID(ctx context.Context, id int64) (*models.Commitment, error)
	CommitmentsByMember(ctx context.Context, memberID int64) ([]models.Commitment, error)
	UpdateCommitment(ctx context.Context, c *models.Commitment) error
	ListCommitments(ctx context.Context) ([]models.Commitment, error)
	OpenCommitments(ctx context.Context) ([]models.Commitment, error)
	OpenCommitmentsDueBy(ctx context.Context, by time.Time) ([]models.Commitment, error)

	ApplyPayment(ctx context.Context, p *models.Payment) (*models.Commitment, error)
	DeletePayment(ctx context.Context, paymentID int64) (*models.Commitment, error)
	PaymentsByCommitment(ctx context.Context, commitmentID int64) ([]models.Payment, error)
	RecentPaymentsByMember(ctx context.Context, memberID int64, limit int) ([]models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)

	AddNotification(ctx context.Context, rec *models.NotificationRecord) error
	HasNotificationSince(ctx context.Context, commitmentID int64, since time.Time, outcomes []models.NotificationOutcome) (bool, error)
	NotificationsByCommitment(ctx context.Context, commitmentID int64) ([]models.NotificationRecord, error)

	Stats(ctx context.Context, since time.Time) (*models.Stats, error)
}
