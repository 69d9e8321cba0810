package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTests = `
CREATE TABLE IF NOT EXISTS tests (
    id          TEXT         PRIMARY KEY,
    title       TEXT         NOT NULL DEFAULT '',
    definition  JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlResults = `
CREATE TABLE IF NOT EXISTS results (
    id            BIGSERIAL    PRIMARY KEY,
    user_id       TEXT         NOT NULL,
    test_id       TEXT         NOT NULL,
    placed_level  TEXT         NOT NULL,
    record        JSONB        NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_results_user_created
    ON results (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_results_test_id
    ON results (test_id);
`

// Migrate creates the tables and indexes if they do not exist. It is safe to
// call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlTests, ddlResults} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
