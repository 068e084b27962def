package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the transactions table and the decision ledger if they
// do not exist. The unique index on the canonically ordered pair is what
// makes detection re-runs idempotent under concurrent writers.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id                   BIGSERIAL PRIMARY KEY,
			date                 DATE NOT NULL,
			amount               NUMERIC(14, 2) NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			category             TEXT NOT NULL DEFAULT '',
			is_duplicate         BOOLEAN NOT NULL DEFAULT FALSE,
			duplicate_of         BIGINT REFERENCES transactions (id),
			duplicate_checked    BOOLEAN NOT NULL DEFAULT FALSE,
			duplicate_checked_at TIMESTAMPTZ,
			CHECK (duplicate_of IS DISTINCT FROM id)
		)`,
		`CREATE TABLE IF NOT EXISTS duplicate_checks (
			id                   BIGSERIAL PRIMARY KEY,
			transaction_id_1     BIGINT NOT NULL REFERENCES transactions (id),
			transaction_id_2     BIGINT NOT NULL REFERENCES transactions (id),
			date_tolerance_days  INTEGER NOT NULL,
			amount_tolerance_abs NUMERIC(14, 2) NOT NULL,
			amount_tolerance_pct DOUBLE PRECISION NOT NULL,
			similarity_score     DOUBLE PRECISION NOT NULL,
			detected_at          TIMESTAMPTZ NOT NULL,
			user_decision        TEXT,
			decided_at           TIMESTAMPTZ,
			CHECK (transaction_id_1 < transaction_id_2),
			CHECK (user_decision IN ('duplicate', 'not_duplicate', 'skip')),
			UNIQUE (transaction_id_1, transaction_id_2)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_checks_pending
			ON duplicate_checks (similarity_score DESC) WHERE user_decision IS NULL`,
	}

	for _, stmt := range statements {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
