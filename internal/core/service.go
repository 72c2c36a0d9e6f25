package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"carboncore/internal/compartment"
	"carboncore/internal/infra/persistence/memory"
	"carboncore/pkg/domain"
)

// Service runs Monte Carlo simulations and stores each realization's result.
type Service struct {
	store       domain.ResultStore
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	clock       Clock
	parallelism int
	newID       func() string
}

// NewService constructs a service storing results in store. A nil store keeps
// results in memory.
func NewService(store domain.ResultStore, opts ...Option) *Service {
	if store == nil {
		store = memory.NewStore()
	}
	s := &Service{
		store:       store,
		logger:      noopLogger{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		clock:       systemClock{},
		parallelism: 1,
		newID:       defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the result store.
func (s *Service) Store() domain.ResultStore { return s.store }

// RealizationFailure records a realization whose compartment calculation failed.
type RealizationFailure struct {
	Realization int                    `json:"realization"`
	Compartment domain.CompartmentKind `json:"compartment"`
	Error       string                 `json:"error"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID        string               `json:"run_id"`
	Scenario     string               `json:"scenario,omitempty"`
	Realizations int                  `json:"realizations"`
	Succeeded    int                  `json:"succeeded"`
	Failed       []RealizationFailure `json:"failed,omitempty"`
	Warnings     []domain.Violation   `json:"warnings,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
}

// ErrNoRealizations is returned when a run asks for fewer than one realization.
var ErrNoRealizations = errors.New("run requires at least one realization")

// observe wraps an operation with a span and a metrics observation.
func (s *Service) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	span.End(err)
	return err
}

// Validate checks the scenario without running it.
func (s *Service) Validate(ctx context.Context, sc *Scenario) (domain.Result, error) {
	var res domain.Result
	err := s.observe(ctx, "validate", func(ctx context.Context) error {
		var err error
		res, err = ValidateScenario(ctx, sc)
		return err
	})
	return res, err
}

// Run validates the scenario and runs n realizations under a new run id.
func (s *Service) Run(ctx context.Context, sc *Scenario, n int) (RunSummary, error) {
	return s.RunWithID(ctx, s.newID(), sc, n)
}

// RunWithID runs n realizations under runID. Blocking validity violations
// refuse the run. A realization whose compartment calculation fails is
// recorded in the summary and the run continues; cancellation, routing and
// store failures abort the run.
func (s *Service) RunWithID(ctx context.Context, runID string, sc *Scenario, n int) (RunSummary, error) {
	summary := RunSummary{RunID: runID, Realizations: n, StartedAt: s.clock.Now()}
	if sc != nil {
		summary.Scenario = sc.Name
	}
	err := s.observe(ctx, "run", func(ctx context.Context) error {
		if n < 1 {
			return ErrNoRealizations
		}
		res, err := ValidateScenario(ctx, sc)
		if err != nil {
			s.logger.Error("scenario refused", "run_id", runID, "error", err)
			return err
		}
		for _, v := range res.Violations {
			s.logger.Warn("scenario warning", "run_id", runID, "rule", v.Rule, "subject", v.Subject, "message", v.Message)
		}
		summary.Warnings = res.Violations
		s.logger.Info("run started", "run_id", runID, "scenario", sc.Name, "realizations", n, "parallelism", s.parallelism)
		return s.runRealizations(ctx, runID, sc, n, &summary)
	})
	summary.FinishedAt = s.clock.Now()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("run cancelled", "run_id", runID, "succeeded", summary.Succeeded)
		}
		return summary, err
	}
	s.logger.Info("run finished", "run_id", runID, "succeeded", summary.Succeeded, "failed", len(summary.Failed),
		"duration", summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

func (s *Service) runRealizations(ctx context.Context, runID string, sc *Scenario, n int, summary *RunSummary) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			result, err := s.realize(gctx, runID, sc, i)
			var calc *compartment.CalculationError
			switch {
			case errors.As(err, &calc):
				s.logger.Error("compartment calculation failed", "run_id", runID, "realization", i, "compartment", calc.Kind, "error", calc.Err)
				mu.Lock()
				summary.Failed = append(summary.Failed, RealizationFailure{Realization: i, Compartment: calc.Kind, Error: err.Error()})
				mu.Unlock()
				return nil
			case err != nil:
				return err
			}
			if err := s.save(gctx, result); err != nil {
				s.logger.Error("store realization failed", "run_id", runID, "realization", i, "error", err)
				return err
			}
			mu.Lock()
			summary.Succeeded++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(summary.Failed, func(a, b int) bool { return summary.Failed[a].Realization < summary.Failed[b].Realization })
	return err
}

func (s *Service) realize(ctx context.Context, runID string, sc *Scenario, i int) (domain.RealizationResult, error) {
	var result domain.RealizationResult
	err := s.observe(ctx, "simulate", func(ctx context.Context) error {
		var err error
		result, err = simulate(ctx, sc, i, s.logger)
		return err
	})
	if err != nil {
		return domain.RealizationResult{}, err
	}
	result.RunID = runID
	result.CreatedAt = s.clock.Now()
	return result, nil
}

func (s *Service) save(ctx context.Context, result domain.RealizationResult) error {
	return s.observe(ctx, "store", func(ctx context.Context) error {
		if err := s.store.Save(ctx, result); err != nil {
			return fmt.Errorf("store realization %d: %w", result.Realization, err)
		}
		return nil
	})
}

// Results returns the stored realizations of a run, ordered by realization.
func (s *Service) Results(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	var out []domain.RealizationResult
	err := s.observe(ctx, "results", func(ctx context.Context) error {
		var err error
		out, err = s.store.List(ctx, runID)
		return err
	})
	return out, err
}
