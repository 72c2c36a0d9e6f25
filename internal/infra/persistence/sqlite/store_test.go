package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"carboncore/pkg/domain"
)

func result(run string, realization int, v float64) domain.RealizationResult {
	return domain.RealizationResult{
		RunID:       run,
		Realization: realization,
		Dates:       []int{0, 5},
		Compartments: map[domain.CompartmentKind]domain.Series{
			domain.CompartmentDeadBiomass: {Values: []float64{v, v / 2}, Integrated: v},
		},
		UnitCount: 2,
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "results.db")
	store := openStore(t, path)
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	for _, r := range []domain.RealizationResult{result("run", 1, 2), result("run", 0, 1), result("other", 0, 5)} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Save(ctx, result("run", 1, 8)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_ = store.Close()

	reloaded := openStore(t, path)
	got, err := reloaded.List(ctx, "run")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Realization != 0 || got[1].Realization != 1 {
		t.Fatalf("unexpected results %+v", got)
	}
	if v := got[1].Compartments[domain.CompartmentDeadBiomass].Values[0]; v != 8 {
		t.Fatalf("expected overwritten payload, got %v", v)
	}
	var rows int
	if err := reloaded.DB().QueryRow(`SELECT COUNT(*) FROM realizations`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 3 {
		t.Fatalf("expected 3 rows, got %d", rows)
	}
}

func TestSQLiteStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "results.db"))
	if err := store.Save(ctx, result("", 0, 1)); err == nil {
		t.Fatalf("expected run id error")
	}
	if _, err := store.DB().Exec(`INSERT INTO realizations(run_id, realization, payload) VALUES('bad', 0, '{')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.List(ctx, "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
	got, err := store.List(ctx, "missing")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v %v", got, err)
	}
}
