// Package postgres stores test definitions and assessment results in
// PostgreSQL.
//
// Definitions are kept as JSONB in the same document shape the file store
// reads. Each result row carries the full result record as JSONB next to
// the columns used for lookups.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/testdef"
)

var (
	_ store.DefinitionSource = (*Store)(nil)
	_ store.DefinitionWriter = (*Store)(nil)
	_ store.ResultReader     = (*Store)(nil)
	_ assessment.ResultSink  = (*Store)(nil)
)

// Store is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pool for dsn, checks connectivity and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping reports whether the database is reachable. Used by the readiness
// probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Definition implements [store.DefinitionSource].
func (s *Store) Definition(ctx context.Context, id string) (*testdef.Test, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT definition FROM tests WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres store: test %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get test %q: %w", id, err)
	}
	t, err := testdef.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("postgres store: decode test %q: %w", id, err)
	}
	return t, nil
}

// PutDefinition implements [store.DefinitionWriter]. Existing definitions
// with the same id are replaced.
func (s *Store) PutDefinition(ctx context.Context, t *testdef.Test) error {
	if err := testdef.Validate(t); err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("postgres store: encode test %q: %w", t.ID, err)
	}
	const q = `
		INSERT INTO tests (id, title, definition, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		   SET title      = EXCLUDED.title,
		       definition = EXCLUDED.definition,
		       updated_at = now()`
	if _, err := s.pool.Exec(ctx, q, t.ID, t.Title, raw); err != nil {
		return fmt.Errorf("postgres store: put test %q: %w", t.ID, err)
	}
	return nil
}

// SaveResult implements [assessment.ResultSink]. The row's created_at
// becomes r.Timestamp.
func (s *Store) SaveResult(ctx context.Context, r *assessment.Result) error {
	ts := time.Now().UTC().Truncate(time.Microsecond)
	rec := *r
	rec.Timestamp = ts
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres store: encode result: %w", err)
	}
	const q = `
		INSERT INTO results (user_id, test_id, placed_level, record, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, r.UserID, r.TestID, r.PlacedLevel.String(), raw, ts); err != nil {
		return fmt.Errorf("postgres store: save result: %w", err)
	}
	r.Timestamp = ts
	return nil
}

// ListResults implements [store.ResultReader].
func (s *Store) ListResults(ctx context.Context, userID string) ([]assessment.Result, error) {
	const q = `
		SELECT record, created_at
		  FROM results
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list results: %w", err)
	}
	defer rows.Close()

	var out []assessment.Result
	for rows.Next() {
		var (
			raw []byte
			ts  time.Time
		)
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, fmt.Errorf("postgres store: scan result: %w", err)
		}
		var r assessment.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("postgres store: decode result: %w", err)
		}
		r.Timestamp = ts.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list results: %w", err)
	}
	return out, nil
}
