package core

import (
	"context"
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/internal/compartment"
	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

// Stage names, in execution order.
const (
	StageReset            = "reset"
	StageSetRealization   = "set-realization"
	StageLog              = "log"
	StageGenerateProducts = "generate-products"
	StageActualize        = "actualize"
	StageCompile          = "compile"
)

// realization carries the state one realization owns exclusively.
type realization struct {
	sc        *Scenario
	index     int
	tt        domain.TimeTable
	manager   *compartment.Manager
	deviates  domain.Deviates
	pieces    [][]WoodPiece
	inventory carbon.StatusMap
}

type stage struct {
	name string
	run  func(ctx context.Context, r *realization) error
}

var pipeline = []stage{
	{StageReset, resetStage},
	{StageSetRealization, setRealizationStage},
	{StageLog, logStage},
	{StageGenerateProducts, generateProductsStage},
	{StageActualize, actualizeStage},
	{StageCompile, compileStage},
}

// Simulate runs one realization of the scenario on a fresh compartment
// manager. It carries no state between calls, so realizations may run in
// parallel. The returned result has no run id or timestamp; the Service
// stamps both before storing it.
func Simulate(ctx context.Context, sc *Scenario, index int) (domain.RealizationResult, error) {
	return simulate(ctx, sc, index, noopLogger{})
}

func simulate(ctx context.Context, sc *Scenario, index int, log Logger) (domain.RealizationResult, error) {
	if sc == nil || sc.Graph == nil {
		return domain.RealizationResult{}, fmt.Errorf("realization %d: scenario has no processor graph", index)
	}
	r := &realization{sc: sc, index: index}
	for _, st := range pipeline {
		if err := ctx.Err(); err != nil {
			return domain.RealizationResult{}, fmt.Errorf("realization %d cancelled before %s: %w", index, st.name, err)
		}
		log.Debug("realization stage", "realization", index, "stage", st.name)
		if err := st.run(ctx, r); err != nil {
			return domain.RealizationResult{}, fmt.Errorf("realization %d %s: %w", index, st.name, err)
		}
	}
	return r.result(), nil
}

func resetStage(ctx context.Context, r *realization) error {
	tt, err := r.sc.TimeTable()
	if err != nil {
		return err
	}
	rotation, err := r.sc.RotationLength()
	if err != nil {
		return err
	}
	estimator := r.sc.biomassEstimator()
	biomass := make([]domain.Biomass, len(r.sc.Stands))
	for i, st := range r.sc.Stands {
		if biomass[i], err = estimator.Estimate(ctx, st); err != nil {
			return fmt.Errorf("estimate biomass of stand %d: %w", i, err)
		}
	}
	r.tt = tt
	r.manager = compartment.NewManager(r.sc.managerOptions()...)
	r.inventory = carbon.StatusMap{}
	r.pieces = nil
	return r.manager.Init(tt, r.sc.EvenAged, rotation, biomass)
}

func setRealizationStage(_ context.Context, r *realization) error {
	r.deviates = r.sc.deviates(r.index)
	r.manager.SetRealization(r.index, r.deviates)
	return nil
}

func logStage(ctx context.Context, r *realization) error {
	logger := r.sc.treeLogger()
	r.pieces = make([][]WoodPiece, len(r.sc.Stands))
	for i, st := range r.sc.Stands {
		if err := ctx.Err(); err != nil {
			return err
		}
		pieces, err := logger.Buck(ctx, st, r.deviates)
		if err != nil {
			return fmt.Errorf("buck stand %d: %w", i, err)
		}
		r.pieces[i] = pieces
	}
	return nil
}

// generateProductsStage checks for cancellation before every graph traversal;
// units already produced are kept.
func generateProductsStage(ctx context.Context, r *realization) error {
	for i, pieces := range r.pieces {
		for _, p := range pieces {
			if err := ctx.Err(); err != nil {
				return err
			}
			units, err := r.sc.Graph.ProcessCategory(p.Category, processor.Batch{Index: i, Amounts: p.Amounts})
			if err != nil {
				return fmt.Errorf("stand %d category %s: %w", i, p.Category, err)
			}
			r.inventory.Merge(units)
		}
	}
	return nil
}

func actualizeStage(_ context.Context, r *realization) error {
	return r.sc.Graph.Actualize(r.inventory, r.tt, r.sc.decayFunction(), r.deviates)
}

func compileStage(_ context.Context, r *realization) error {
	if err := r.manager.Bind(r.inventory); err != nil {
		return err
	}
	return r.manager.Calculate()
}

func (r *realization) result() domain.RealizationResult {
	volumes := make(map[domain.UseClass]float64)
	for _, u := range r.inventory.Units() {
		if u.Status() != domain.StatusEndUseWoodProduct {
			continue
		}
		volumes[u.Feature().UseClass] += u.Amounts().Get(domain.ElementVolume)
	}
	if len(volumes) == 0 {
		volumes = nil
	}
	return domain.RealizationResult{
		Realization:      r.index,
		Dates:            r.tt.Dates(),
		Compartments:     r.manager.Snapshot(),
		UnitCount:        r.inventory.Len(),
		VolumeByUseClass: volumes,
	}
}
