// Package badger persists realization results in an embedded BadgerDB, one
// JSON value per key run/<run id>/<realization>.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	dgbadger "github.com/dgraph-io/badger/v4"

	"carboncore/pkg/domain"
)

var _ domain.ResultStore = (*Store)(nil)

// Store is a BadgerDB-backed domain.ResultStore.
type Store struct {
	db *dgbadger.DB
}

// NewStore opens a store at path. An empty path opens an in-memory database.
func NewStore(path string) (*Store, error) {
	var opts dgbadger.Options
	if path == "" {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = dgbadger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// checkRunID rejects ids that would make one run's key prefix match another's.
func checkRunID(runID string) error {
	if runID == "" {
		return errors.New("badger store: run id required")
	}
	if strings.Contains(runID, "/") {
		return fmt.Errorf("badger store: run id %q must not contain '/'", runID)
	}
	return nil
}

func runPrefix(runID string) []byte { return []byte("run/" + runID + "/") }

// resultKey zero-pads the realization so lexical key order is numeric order.
func resultKey(runID string, realization int) []byte {
	return append(runPrefix(runID), []byte(fmt.Sprintf("%08d", realization))...)
}

// Save implements domain.ResultStore.
func (s *Store) Save(ctx context.Context, result domain.RealizationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRunID(result.RunID); err != nil {
		return err
	}
	if result.Realization < 0 {
		return fmt.Errorf("badger store: negative realization %d", result.Realization)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode realization %d: %w", result.Realization, err)
	}
	return s.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set(resultKey(result.RunID, result.Realization), payload)
	})
}

// List implements domain.ResultStore.
func (s *Store) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	var out []domain.RealizationResult
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var r domain.RealizationResult
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				out = append(out, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }
