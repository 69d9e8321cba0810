// Package sqlite stores test definitions and results in a local SQLite file.
// It serves single-node deployments and acts as the local fallback sink when
// PostgreSQL is unavailable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/testdef"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

var (
	_ store.DefinitionSource = (*Store)(nil)
	_ store.DefinitionWriter = (*Store)(nil)
	_ store.ResultReader     = (*Store)(nil)
	_ assessment.ResultSink  = (*Store)(nil)
)

// Store is safe for concurrent use. All queries share one connection.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
}

// Open connects to the SQLite database at dsn, applies pragmas and migrates
// the schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// A single connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate(ctx, drv); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db, drv: drv}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Ping reports whether the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.drv.Close()
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// Definition implements [store.DefinitionSource].
func (s *Store) Definition(ctx context.Context, id string) (*testdef.Test, error) {
	b := builder()
	query, args := b.Select(colDefinition).
		From(b.Table(tableTests)).
		Where(entsql.EQ(colID, id)).
		Query()

	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite store: test %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get test %q: %w", id, err)
	}
	t, err := testdef.ParseJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("sqlite store: decode test %q: %w", id, err)
	}
	return t, nil
}

// PutDefinition implements [store.DefinitionWriter].
func (s *Store) PutDefinition(ctx context.Context, t *testdef.Test) error {
	if err := testdef.Validate(t); err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("sqlite store: encode test %q: %w", t.ID, err)
	}
	query, args := builder().Insert(tableTests).
		Columns(colID, colTitle, colDefinition, colUpdatedAt).
		Values(t.ID, t.Title, string(raw), time.Now().UnixNano()).
		OnConflict(entsql.ConflictColumns(colID), entsql.ResolveWithNewValues()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite store: put test %q: %w", t.ID, err)
	}
	return nil
}

// SaveResult implements [assessment.ResultSink].
func (s *Store) SaveResult(ctx context.Context, r *assessment.Result) error {
	ts := time.Now().UTC()
	rec := *r
	rec.Timestamp = ts
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlite store: encode result: %w", err)
	}
	query, args := builder().Insert(tableResults).
		Columns(colUserID, colTestID, colPlacedLevel, colRecord, colCreatedAt).
		Values(r.UserID, r.TestID, r.PlacedLevel.String(), string(raw), ts.UnixNano()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite store: save result: %w", err)
	}
	r.Timestamp = ts
	return nil
}

// ListResults implements [store.ResultReader].
func (s *Store) ListResults(ctx context.Context, userID string) ([]assessment.Result, error) {
	b := builder()
	query, args := b.Select(colRecord, colCreatedAt).
		From(b.Table(tableResults)).
		Where(entsql.EQ(colUserID, userID)).
		OrderBy(entsql.Desc(colCreatedAt), entsql.Desc(colID)).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list results: %w", err)
	}
	defer rows.Close()

	var out []assessment.Result
	for rows.Next() {
		var (
			raw string
			ns  int64
		)
		if err := rows.Scan(&raw, &ns); err != nil {
			return nil, fmt.Errorf("sqlite store: scan result: %w", err)
		}
		var r assessment.Result
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("sqlite store: decode result: %w", err)
		}
		r.Timestamp = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list results: %w", err)
	}
	return out, nil
}
