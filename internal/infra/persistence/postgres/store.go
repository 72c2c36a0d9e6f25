// Package postgres persists realization results to Postgres as JSONB rows keyed
// by (run_id, realization).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"carboncore/pkg/domain"
)

var _ domain.ResultStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/carboncore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed domain.ResultStore.
type Store struct {
	db *sql.DB
}

// NewStore opens a store using dsn (falls back to defaultDSN), verifies the
// connection and ensures the realizations table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS realizations (
		run_id TEXT NOT NULL,
		realization INTEGER NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (run_id, realization)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure realizations table: %w", err)
	}
	return nil
}

// Save implements domain.ResultStore.
func (s *Store) Save(ctx context.Context, result domain.RealizationResult) error {
	if result.RunID == "" {
		return errors.New("postgres store: run id required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode realization %d: %w", result.Realization, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO realizations (run_id, realization, payload) VALUES ($1,$2,$3) ON CONFLICT (run_id, realization) DO UPDATE SET payload=EXCLUDED.payload`,
		result.RunID, result.Realization, payload)
	if err != nil {
		return fmt.Errorf("upsert realization %d: %w", result.Realization, err)
	}
	return nil
}

// List implements domain.ResultStore.
func (s *Store) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT realization, payload FROM realizations WHERE run_id = $1 ORDER BY realization`, runID)
	if err != nil {
		return nil, fmt.Errorf("select realizations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RealizationResult
	for rows.Next() {
		var realization int
		var payload []byte
		if err := rows.Scan(&realization, &payload); err != nil {
			return nil, fmt.Errorf("scan realization: %w", err)
		}
		var r domain.RealizationResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode realization %d: %w", realization, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realizations: %w", err)
	}
	return out, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
