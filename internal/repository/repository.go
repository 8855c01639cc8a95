package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/pledge-service/internal/models"
	"github.com/Dan9191/pledge-service/internal/service"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL-backed persistence for the ledger. It
// implements service.Store.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateMember creates a new member in the database
func (r *Repository) CreateMember(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (code, name, phone, group_name, status, api_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		m.Code, m.Name, m.Phone, m.Group, m.Status, m.APIKey, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// MemberByID retrieves a member by id
func (r *Repository) MemberByID(ctx context.Context, id int64) (*models.Member, error) {
	m := &models.Member{}
	query := `
		SELECT id, code, name, phone, group_name, status, api_key, created_at
		FROM members
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.Code, &m.Name, &m.Phone, &m.Group, &m.Status, &m.APIKey, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %d: %w", id, service.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

// ListMembers retrieves all members, newest first
func (r *Repository) ListMembers(ctx context.Context) ([]models.Member, error) {
	query := `
		SELECT id, code, name, phone, group_name, status, api_key, created_at
		FROM members
		ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Phone, &m.Group, &m.Status, &m.APIKey, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// LastMemberID returns the highest assigned member id, zero when the table
// is empty. Used to derive the next member code.
func (r *Repository) LastMemberID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM members`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read last member id: %w", err)
	}
	return id, nil
}

// CreateCommitment creates a new commitment in the database
func (r *Repository) CreateCommitment(ctx context.Context, c *models.Commitment) error {
	query := `
		INSERT INTO commitments (member_id, total, amount_paid, due_date, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		c.MemberID, c.Total, c.AmountPaid, c.DueDate, c.Description, c.Status, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create commitment: %w", err)
	}
	return nil
}

const commitmentColumns = `id, member_id, total, amount_paid, due_date, description, status, created_at`

func scanCommitment(row interface{ Scan(...any) error }, c *models.Commitment) error {
	return row.Scan(&c.ID, &c.MemberID, &c.Total, &c.AmountPaid, &c.DueDate, &c.Description, &c.Status, &c.CreatedAt)
}

// CommitmentByID retrieves a commitment by id
func (r *Repository) CommitmentByID(ctx context.Context, id int64) (*models.Commitment, error) {
	c := &models.Commitment{}
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1`
	err := scanCommitment(r.db.QueryRowContext(ctx, query, id), c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commitment %d: %w", id, service.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find commitment: %w", err)
	}
	return c, nil
}

func (r *Repository) queryCommitments(ctx context.Context, query string, args ...any) ([]models.Commitment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commitments: %w", err)
	}
	defer rows.Close()

	var commitments []models.Commitment
	for rows.Next() {
		var c models.Commitment
		if err := scanCommitment(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// CommitmentsByMember retrieves a member's commitments ordered by due date
func (r *Repository) CommitmentsByMember(ctx context.Context, memberID int64) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE member_id = $1 ORDER BY due_date`
	return r.queryCommitments(ctx, query, memberID)
}

// ListCommitments retrieves all commitments ordered by due date
func (r *Repository) ListCommitments(ctx context.Context) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments ORDER BY due_date`
	return r.queryCommitments(ctx, query)
}

// OpenCommitments retrieves all commitments that are not yet settled
func (r *Repository) OpenCommitments(ctx context.Context) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE status = $1 ORDER BY due_date`
	return r.queryCommitments(ctx, query, models.StatusOpen)
}

// OpenCommitmentsDueBy retrieves open commitments due on or before the given time
func (r *Repository) OpenCommitmentsDueBy(ctx context.Context, by time.Time) ([]models.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE status = $1 AND due_date <= $2 ORDER BY due_date`
	return r.queryCommitments(ctx, query, models.StatusOpen, by)
}

// UpdateCommitment persists a commitment's mutable fields
func (r *Repository) UpdateCommitment(ctx context.Context, c *models.Commitment) error {
	query := `
		UPDATE commitments
		SET total = $1, due_date = $2, description = $3, status = $4
		WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, c.Total, c.DueDate, c.Description, c.Status, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update commitment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update commitment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("commitment %d: %w", c.ID, service.ErrNotFound)
	}
	return nil
}

// ApplyPayment inserts a payment and updates the owning commitment's paid
// sum and status in a single transaction. The commitment row is locked so
// concurrent payments serialize per commitment, not globally.
func (r *Repository) ApplyPayment(ctx context.Context, p *models.Payment) (*models.Commitment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c := &models.Commitment{ID: p.CommitmentID}
	err = tx.QueryRowContext(ctx, `
		SELECT member_id, total, amount_paid, due_date, description, status, created_at
		FROM commitments
		WHERE id = $1
		FOR UPDATE`, p.CommitmentID).
		Scan(&c.MemberID, &c.Total, &c.AmountPaid, &c.DueDate, &c.Description, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commitment %d: %w", p.CommitmentID, service.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock commitment: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (commitment_id, amount, paid_at)
		VALUES ($1, $2, $3)
		RETURNING id`, p.CommitmentID, p.Amount, p.PaidAt).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	c.AmountPaid = c.AmountPaid.Add(p.Amount)
	c.Status = models.StatusFor(c.Total, c.AmountPaid)
	_, err = tx.ExecContext(ctx, `
		UPDATE commitments SET amount_paid = $1, status = $2 WHERE id = $3`,
		c.AmountPaid, c.Status, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update commitment sum: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return c, nil
}

// DeletePayment removes a payment and reverses its effect on the owning
// commitment inside a single transaction
func (r *Repository) DeletePayment(ctx context.Context, paymentID int64) (*models.Commitment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var commitmentID int64
	var amount decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT commitment_id, amount FROM payments WHERE id = $1`, paymentID).
		Scan(&commitmentID, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", paymentID, service.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	c := &models.Commitment{ID: commitmentID}
	err = tx.QueryRowContext(ctx, `
		SELECT member_id, total, amount_paid, due_date, description, status, created_at
		FROM commitments
		WHERE id = $1
		FOR UPDATE`, commitmentID).
		Scan(&c.MemberID, &c.Total, &c.AmountPaid, &c.DueDate, &c.Description, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock commitment: %w", err)
	}

	// The payment row was read before the commitment lock, so a concurrent
	// delete of the same payment may have won the race. A zero-row delete
	// means the amount was already reversed; subtracting it again here would
	// corrupt the paid sum.
	res, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to delete payment: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("payment %d: %w", paymentID, service.ErrNotFound)
	}

	c.AmountPaid = c.AmountPaid.Sub(amount)
	c.Status = models.StatusFor(c.Total, c.AmountPaid)
	_, err = tx.ExecContext(ctx, `
		UPDATE commitments SET amount_paid = $1, status = $2 WHERE id = $3`,
		c.AmountPaid, c.Status, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update commitment sum: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment removal: %w", err)
	}
	return c, nil
}

func (r *Repository) queryPayments(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.CommitmentID, &p.Amount, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PaymentsByCommitment retrieves a commitment's payments, most recent first
func (r *Repository) PaymentsByCommitment(ctx context.Context, commitmentID int64) ([]models.Payment, error) {
	query := `
		SELECT id, commitment_id, amount, paid_at
		FROM payments
		WHERE commitment_id = $1
		ORDER BY paid_at DESC, id DESC`
	return r.queryPayments(ctx, query, commitmentID)
}

// RecentPaymentsByMember retrieves the latest payments across all of a
// member's commitments
func (r *Repository) RecentPaymentsByMember(ctx context.Context, memberID int64, limit int) ([]models.Payment, error) {
	query := `
		SELECT p.id, p.commitment_id, p.amount, p.paid_at
		FROM payments p
		JOIN commitments c ON c.id = p.commitment_id
		WHERE c.member_id = $1
		ORDER BY p.paid_at DESC, p.id DESC
		LIMIT $2`
	return r.queryPayments(ctx, query, memberID, limit)
}

// ListPayments retrieves all payments, most recent first
func (r *Repository) ListPayments(ctx context.Context) ([]models.Payment, error) {
	query := `
		SELECT id, commitment_id, amount, paid_at
		FROM payments
		ORDER BY paid_at DESC, id DESC`
	return r.queryPayments(ctx, query)
}

// AddNotification appends a notification record; records are never updated
// or deleted
func (r *Repository) AddNotification(ctx context.Context, rec *models.NotificationRecord) error {
	query := `
		INSERT INTO notifications (commitment_id, member_id, message, outcome, trigger_kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		rec.CommitmentID, rec.MemberID, rec.Message, rec.Outcome, rec.Trigger, rec.SentAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// HasNotificationSince reports whether the commitment has a notification
// with one of the given outcomes at or after the given time
func (r *Repository) HasNotificationSince(ctx context.Context, commitmentID int64, since time.Time, outcomes []models.NotificationOutcome) (bool, error) {
	strs := make([]string, len(outcomes))
	for i, o := range outcomes {
		strs[i] = string(o)
	}
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE commitment_id = $1 AND sent_at >= $2 AND outcome = ANY($3)
		)`
	err := r.db.QueryRowContext(ctx, query, commitmentID, since, pq.Array(strs)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query notifications: %w", err)
	}
	return exists, nil
}

// NotificationsByCommitment retrieves a commitment's notification history,
// most recent first
func (r *Repository) NotificationsByCommitment(ctx context.Context, commitmentID int64) ([]models.NotificationRecord, error) {
	query := `
		SELECT id, commitment_id, member_id, message, outcome, trigger_kind, sent_at
		FROM notifications
		WHERE commitment_id = $1
		ORDER BY sent_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var rec models.NotificationRecord
		if err := rows.Scan(&rec.ID, &rec.CommitmentID, &rec.MemberID, &rec.Message, &rec.Outcome, &rec.Trigger, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats computes dashboard aggregates; the payment figures cover the window
// starting at since
func (r *Repository) Stats(ctx context.Context, since time.Time) (*models.Stats, error) {
	st := &models.Stats{}
	query := `
		SELECT
			(SELECT COUNT(*) FROM members),
			(SELECT COUNT(*) FROM commitments),
			(SELECT COUNT(*) FROM payments WHERE paid_at >= $1),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE paid_at >= $1)`
	err := r.db.QueryRowContext(ctx, query, since).
		Scan(&st.TotalMembers, &st.TotalCommitments, &st.PaymentsInWindow, &st.AmountInWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}
