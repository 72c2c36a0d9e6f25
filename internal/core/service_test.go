package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"carboncore/internal/infra/persistence/memory"
	"carboncore/pkg/domain"
)

func TestServiceRunStoresEveryRealization(t *testing.T) {
	store := memory.NewStore()
	logger := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewService(store,
		WithLogger(logger),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithClock(newStubClock()),
		WithIDGenerator(sequentialIDs("run")),
	)

	summary, err := svc.Run(context.Background(), testScenario(t), 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "run-1" || summary.Succeeded != 3 || len(summary.Failed) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.FinishedAt.After(summary.StartedAt) {
		t.Fatalf("finished %v not after started %v", summary.FinishedAt, summary.StartedAt)
	}

	results, err := svc.Results(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 stored results, got %d", len(results))
	}
	for i, r := range results {
		if r.Realization != i || r.RunID != "run-1" {
			t.Fatalf("result %d: realization %d run %q", i, r.Realization, r.RunID)
		}
		if r.CreatedAt.IsZero() {
			t.Fatalf("result %d has no timestamp", i)
		}
		if len(r.Compartments) != len(domain.CompartmentKinds()) {
			t.Fatalf("result %d has %d compartments", i, len(r.Compartments))
		}
	}

	if !logger.has("info", "run started") || !logger.has("info", "run finished") {
		t.Fatalf("expected run start and finish logs, got %+v", logger.entries)
	}
	if !metrics.has("run", true) || metrics.count("simulate") != 3 || metrics.count("store") != 3 {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	if ops := tracer.ops(); len(ops) == 0 || ops[0] != "run" {
		t.Fatalf("expected run span first, got %v", ops)
	}
}

func TestServiceRecordsCalculationFailures(t *testing.T) {
	sc := testScenario(t)
	sc.Deviates = DeviateTable{{}, {Biomass: math.NaN()}}
	logger := &captureLogger{}
	svc := NewService(nil, WithLogger(logger), WithIDGenerator(sequentialIDs("run")))

	summary, err := svc.Run(context.Background(), sc, 4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Succeeded != 2 || len(summary.Failed) != 2 {
		t.Fatalf("expected 2 successes and 2 failures, got %+v", summary)
	}
	for i, f := range summary.Failed {
		if f.Realization != 2*i+1 {
			t.Fatalf("failure %d is realization %d", i, f.Realization)
		}
		if f.Compartment != domain.CompartmentAboveGroundBiomass {
			t.Fatalf("failure %d in %s", i, f.Compartment)
		}
	}
	if !logger.has("error", "compartment calculation failed") {
		t.Fatal("expected calculation failure to be logged")
	}
	results, err := svc.Results(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 2 || results[0].Realization != 0 || results[1].Realization != 2 {
		t.Fatalf("unexpected stored realizations %+v", results)
	}
}

func TestServiceRefusesInvalidScenario(t *testing.T) {
	sc := testScenario(t)
	sc.Stands[1].Harvest[0].Category = "veneer"
	metrics := &captureMetricsRecorder{}
	store := memory.NewStore()
	svc := NewService(store, WithMetricsRecorder(metrics), WithIDGenerator(sequentialIDs("run")))

	_, err := svc.Run(context.Background(), sc, 2)
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if !metrics.has("run", false) {
		t.Fatal("expected failed run metric")
	}
	if len(store.Runs()) != 0 {
		t.Fatalf("refused run stored results: %v", store.Runs())
	}
}

func TestServiceRequiresRealizations(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Run(context.Background(), testScenario(t), 0); !errors.Is(err, ErrNoRealizations) {
		t.Fatalf("expected ErrNoRealizations, got %v", err)
	}
}

type cancellingLogger struct {
	cancel context.CancelFunc
}

func (c cancellingLogger) Buck(_ context.Context, stand Stand, _ domain.Deviates) ([]WoodPiece, error) {
	c.cancel()
	return stand.Harvest, nil
}

func TestServiceRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc := testScenario(t)
	sc.Logger = cancellingLogger{cancel: cancel}
	logger := &captureLogger{}
	store := memory.NewStore()
	svc := NewService(store, WithLogger(logger), WithIDGenerator(sequentialIDs("run")))

	summary, err := svc.Run(ctx, sc, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Succeeded != 0 {
		t.Fatalf("expected no completed realization, got %d", summary.Succeeded)
	}
	if !logger.has("warn", "run cancelled") {
		t.Fatal("expected cancellation warning")
	}
}

type failingStore struct{ err error }

func (f failingStore) Save(context.Context, domain.RealizationResult) error { return f.err }
func (f failingStore) List(context.Context, string) ([]domain.RealizationResult, error) {
	return nil, f.err
}

func TestServiceStoreFailureAbortsRun(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewService(failingStore{err: boom})
	if _, err := svc.Run(context.Background(), testScenario(t), 2); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestParallelRunMatchesSequential(t *testing.T) {
	sc := testScenario(t)
	sc.Deviates = DeviateTable{{}, {Biomass: 1.1}, {Lifetime: map[domain.UseClass]float64{domain.UseClassBuilding: 0.8}}}
	ignore := cmpopts.IgnoreFields(domain.RealizationResult{}, "RunID", "CreatedAt")

	seq := NewService(nil, WithParallelism(1))
	par := NewService(nil, WithParallelism(4))
	seqSummary, err := seq.Run(context.Background(), sc, 6)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	parSummary, err := par.Run(context.Background(), sc, 6)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}
	want, _ := seq.Results(context.Background(), seqSummary.RunID)
	got, _ := par.Results(context.Background(), parSummary.RunID)
	if diff := cmp.Diff(want, got, ignore); diff != "" {
		t.Fatalf("parallel results differ (-seq +par):\n%s", diff)
	}
}

func TestServiceValidateReportsViolations(t *testing.T) {
	sc := testScenario(t)
	sc.Step = 0
	res, err := NewService(nil).Validate(context.Background(), sc)
	if err == nil {
		t.Fatal("expected validation error")
	}
	found := false
	for _, v := range res.Violations {
		if v.Rule == "time_extension" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected time_extension violation, got %+v", res.Violations)
	}
}
