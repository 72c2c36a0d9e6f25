// Package sqlite persists realization results to a single SQLite table, one
// JSON payload per (run, realization).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"carboncore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.ResultStore = (*Store)(nil)

const defaultPath = "carboncore.db"

// Store is a SQLite-backed domain.ResultStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and ensures the schema exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS realizations (
		run_id TEXT NOT NULL,
		realization INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (run_id, realization)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create realizations table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Save implements domain.ResultStore.
func (s *Store) Save(ctx context.Context, result domain.RealizationResult) error {
	if result.RunID == "" {
		return errors.New("sqlite store: run id required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode realization %d: %w", result.Realization, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO realizations(run_id, realization, payload) VALUES(?,?,?)
		ON CONFLICT(run_id, realization) DO UPDATE SET payload=excluded.payload`,
		result.RunID, result.Realization, payload)
	if err != nil {
		return fmt.Errorf("upsert realization %d: %w", result.Realization, err)
	}
	return nil
}

// List implements domain.ResultStore.
func (s *Store) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT realization, payload FROM realizations WHERE run_id = ? ORDER BY realization`, runID)
	if err != nil {
		return nil, fmt.Errorf("select realizations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RealizationResult
	for rows.Next() {
		var realization int
		var payload []byte
		if err := rows.Scan(&realization, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
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

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
