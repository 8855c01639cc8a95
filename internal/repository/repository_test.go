package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/Dan9191/pledge-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func TestApplyPaymentSettlesInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Now()
	due := now.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT member_id, total, amount_paid").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"member_id", "total", "amount_paid", "due_date", "description", "status", "created_at"}).
			AddRow(int64(7), "100.00", "40.00", due, "building fund", "OPEN", now))
	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(int64(1), decimal.RequireFromString("60.00"), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("UPDATE commitments SET amount_paid").
		WithArgs(decimal.RequireFromString("100.00"), models.StatusSettled, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &models.Payment{CommitmentID: 1, Amount: decimal.RequireFromString("60.00"), PaidAt: now}
	c, err := repo.ApplyPayment(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, models.StatusSettled, c.Status)
	assert.Equal(t, "100.00", c.AmountPaid.StringFixed(2))
	assert.True(t, c.Remaining().IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPaymentUnknownCommitment(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT member_id, total, amount_paid").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"member_id"}))
	mock.ExpectRollback()

	p := &models.Payment{CommitmentID: 42, Amount: decimal.NewFromInt(10), PaidAt: time.Now()}
	_, err := repo.ApplyPayment(context.Background(), p)
	require.ErrorIs(t, err, service.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePaymentReversesSum(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	due := now.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT commitment_id, amount FROM payments").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"commitment_id", "amount"}).AddRow(int64(1), "60.00"))
	mock.ExpectQuery("SELECT member_id, total, amount_paid").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"member_id", "total", "amount_paid", "due_date", "description", "status", "created_at"}).
			AddRow(int64(7), "100.00", "100.00", due, "building fund", "SETTLED", now))
	mock.ExpectExec("DELETE FROM payments").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE commitments SET amount_paid").
		WithArgs(decimal.RequireFromString("40.00"), models.StatusOpen, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := repo.DeletePayment(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, "60.00", c.Remaining().StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePaymentLostRaceAborts(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	due := now.AddDate(0, 1, 0)

	// A concurrent delete of the same payment committed between the payment
	// read and the commitment lock: the DELETE hits zero rows and the amount
	// must not be subtracted a second time.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT commitment_id, amount FROM payments").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"commitment_id", "amount"}).AddRow(int64(1), "60.00"))
	mock.ExpectQuery("SELECT member_id, total, amount_paid").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"member_id", "total", "amount_paid", "due_date", "description", "status", "created_at"}).
			AddRow(int64(7), "100.00", "40.00", due, "building fund", "OPEN", now))
	mock.ExpectExec("DELETE FROM payments").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeletePayment(context.Background(), 3)
	require.ErrorIs(t, err, service.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasNotificationSince(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Now().Truncate(24 * time.Hour)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasNotificationSince(context.Background(), 1, since,
		[]models.NotificationOutcome{models.OutcomeSent, models.OutcomeFailed})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastMemberIDEmptyTable(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

	id, err := repo.LastMemberID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestCreateCommitmentReturnsID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO commitments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	c := &models.Commitment{
		MemberID:   7,
		Total:      decimal.RequireFromString("100.00"),
		AmountPaid: decimal.Zero,
		DueDate:    now.AddDate(0, 1, 0),
		Status:     models.StatusOpen,
		CreatedAt:  now,
	}
	require.NoError(t, repo.CreateCommitment(context.Background(), c))
	assert.Equal(t, int64(5), c.ID)
}
