package repository

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL UNIQUE,
		group_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		api_key TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS commitments (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id),
		total NUMERIC(14,2) NOT NULL CHECK (total > 0),
		amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0,
		due_date DATE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'OPEN',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		commitment_id BIGINT NOT NULL REFERENCES commitments(id),
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		paid_at DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		commitment_id BIGINT NOT NULL REFERENCES commitments(id),
		member_id BIGINT NOT NULL REFERENCES members(id),
		message TEXT NOT NULL,
		outcome TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commitments_status ON commitments (status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_commitment ON payments (commitment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_commitment_sent ON notifications (commitment_id, sent_at)`,
}

// Migrate bootstraps the ledger schema
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
