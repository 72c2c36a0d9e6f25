package memory

import (
	"context"
	"sync"
	"testing"

	"carboncore/pkg/domain"
)

func result(run string, realization int, v float64) domain.RealizationResult {
	return domain.RealizationResult{
		RunID:       run,
		Realization: realization,
		Dates:       []int{0},
		Compartments: map[domain.CompartmentKind]domain.Series{
			domain.CompartmentWoodProducts: {Values: []float64{v}, Integrated: v},
		},
	}
}

func TestStoreSaveListOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, r := range []domain.RealizationResult{result("a", 2, 1), result("a", 0, 1), result("b", 0, 1), result("a", 2, 7)} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := s.List(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Realization != 0 || got[1].Realization != 2 {
		t.Fatalf("unexpected list %+v", got)
	}
	if v := got[1].Compartments[domain.CompartmentWoodProducts].Values[0]; v != 7 {
		t.Fatalf("expected overwrite, got %v", v)
	}
	got[1].Compartments[domain.CompartmentWoodProducts].Values[0] = 99
	again, _ := s.List(ctx, "a")
	if again[1].Compartments[domain.CompartmentWoodProducts].Values[0] != 7 {
		t.Fatalf("list leaked internal state")
	}
	if runs := s.Runs(); len(runs) != 2 || runs[0] != "a" {
		t.Fatalf("unexpected runs %v", runs)
	}
}

func TestStoreRejectsMissingRunAndCancelled(t *testing.T) {
	s := NewStore()
	if err := s.Save(context.Background(), result("", 0, 1)); err == nil {
		t.Fatalf("expected run id error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, result("a", 0, 1)); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if _, err := s.List(ctx, "a"); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Save(ctx, result("c", i, float64(i))); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	got, _ := s.List(ctx, "c")
	if len(got) != 32 || got[31].Realization != 31 {
		t.Fatalf("unexpected results %d", len(got))
	}
}
