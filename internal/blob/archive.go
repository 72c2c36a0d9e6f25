package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"

	"carboncore/pkg/domain"
)

const resultContentType = "application/json"

// Archive persists realization results as JSON documents keyed
// runs/<run id>/realization-<n>.json. It implements domain.ResultStore.
type Archive struct {
	store Store
}

// NewArchive wraps store.
func NewArchive(store Store) *Archive { return &Archive{store: store} }

// Store returns the underlying blob store.
func (a *Archive) Store() Store { return a.store }

// ResultKey returns the blob key of one realization result.
func ResultKey(runID string, realization int) string {
	return path.Join(runPrefix(runID), fmt.Sprintf("realization-%05d.json", realization))
}

func runPrefix(runID string) string { return "runs/" + runID + "/" }

// Save implements domain.ResultStore. An existing document for the same
// realization is replaced.
func (a *Archive) Save(ctx context.Context, result domain.RealizationResult) error {
	if result.RunID == "" {
		return errors.New("archive result: run id required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result %d: %w", result.Realization, err)
	}
	key := ResultKey(result.RunID, result.Realization)
	if _, err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	_, err = a.store.Put(ctx, key, bytes.NewReader(payload), PutOptions{
		ContentType: resultContentType,
		Metadata: map[string]string{
			"run-id":      result.RunID,
			"realization": strconv.Itoa(result.Realization),
		},
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

// List implements domain.ResultStore.
func (a *Archive) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	infos, err := a.store.List(ctx, runPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("list run %s: %w", runID, err)
	}
	out := make([]domain.RealizationResult, 0, len(infos))
	for _, info := range infos {
		result, err := a.read(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Realization < out[j].Realization })
	return out, nil
}

func (a *Archive) read(ctx context.Context, key string) (domain.RealizationResult, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return domain.RealizationResult{}, fmt.Errorf("read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var result domain.RealizationResult
	if err := json.NewDecoder(rc).Decode(&result); err != nil {
		return domain.RealizationResult{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return result, nil
}
