// Package core runs carbon-flow simulations: it turns a scenario (processor
// graph, stands, collaborators) into per-realization compartment results and
// stores them.
package core

import (
	"context"
	"sort"

	"carboncore/internal/compartment"
	"carboncore/internal/decay"
	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

// WoodPiece is one bucked piece of a harvested tree, routed to the production
// line bound to its log category.
type WoodPiece struct {
	Category string
	Amounts  domain.AmountMap
}

// Stand is one harvest event. Stand i of a scenario lives at time table index i.
type Stand struct {
	Date    int
	Harvest []WoodPiece
	Biomass domain.Biomass
}

// TreeLogger bucks the trees harvested in a stand into wood pieces.
// Implementations must be safe for concurrent use when realizations run in parallel.
type TreeLogger interface {
	Buck(ctx context.Context, stand Stand, d domain.Deviates) ([]WoodPiece, error)
}

// BiomassEstimator supplies the living biomass carbon of a stand.
type BiomassEstimator interface {
	Estimate(ctx context.Context, stand Stand) (domain.Biomass, error)
}

// DeviateSource supplies the sensitivity multipliers of a realization.
type DeviateSource interface {
	Deviates(realization int) domain.Deviates
}

// StandHarvest is the TreeLogger that returns each stand's pre-bucked harvest.
type StandHarvest struct{}

// Buck implements TreeLogger.
func (StandHarvest) Buck(_ context.Context, stand Stand, _ domain.Deviates) ([]WoodPiece, error) {
	return stand.Harvest, nil
}

// StandBiomass is the BiomassEstimator that returns each stand's recorded biomass.
type StandBiomass struct{}

// Estimate implements BiomassEstimator.
func (StandBiomass) Estimate(_ context.Context, stand Stand) (domain.Biomass, error) {
	return stand.Biomass, nil
}

// DeviateTable cycles through a fixed list of deviates. An empty table yields
// neutral deviates.
type DeviateTable []domain.Deviates

// Deviates implements DeviateSource.
func (t DeviateTable) Deviates(realization int) domain.Deviates {
	if len(t) == 0 || realization < 0 {
		return domain.Deviates{}
	}
	return t[realization%len(t)]
}

// Scenario is everything one simulation run needs. Collaborators left nil
// fall back to StandHarvest, StandBiomass, neutral deviates and exponential decay.
type Scenario struct {
	Name   string
	Graph  *processor.Graph
	Stands []Stand
	// Categories lists log categories the tree logger may produce beyond those
	// found in the stands' harvests.
	Categories     []string
	ExtensionYears int
	Step           int
	EvenAged       bool
	// Rotation overrides the rotation length when positive.
	Rotation   float64
	Logger     TreeLogger
	Biomass    BiomassEstimator
	Deviates   DeviateSource
	Decay      decay.Function
	Parameters *compartment.Parameters
}

// StandDates returns the stand dates in order.
func (sc *Scenario) StandDates() []int {
	out := make([]int, len(sc.Stands))
	for i, st := range sc.Stands {
		out[i] = st.Date
	}
	return out
}

// TimeTable builds the scenario's time table.
func (sc *Scenario) TimeTable() (domain.TimeTable, error) {
	return domain.BuildTimeTable(sc.StandDates(), sc.ExtensionYears, sc.Step)
}

// RotationLength resolves the rotation used to average integrated values.
func (sc *Scenario) RotationLength() (float64, error) {
	return compartment.RotationLength(sc.StandDates(), sc.EvenAged, sc.Rotation)
}

// LogCategories returns the sorted, distinct categories the scenario routes.
func (sc *Scenario) LogCategories() []string {
	seen := make(map[string]struct{})
	for _, c := range sc.Categories {
		seen[c] = struct{}{}
	}
	for _, st := range sc.Stands {
		for _, p := range st.Harvest {
			seen[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (sc *Scenario) treeLogger() TreeLogger {
	if sc.Logger == nil {
		return StandHarvest{}
	}
	return sc.Logger
}

func (sc *Scenario) biomassEstimator() BiomassEstimator {
	if sc.Biomass == nil {
		return StandBiomass{}
	}
	return sc.Biomass
}

func (sc *Scenario) deviates(realization int) domain.Deviates {
	if sc.Deviates == nil {
		return domain.Deviates{}
	}
	return sc.Deviates.Deviates(realization)
}

func (sc *Scenario) decayFunction() decay.Function {
	if sc.Decay == nil {
		return decay.Default
	}
	return sc.Decay
}

func (sc *Scenario) managerOptions() []compartment.Option {
	opts := []compartment.Option{compartment.WithDecay(sc.decayFunction())}
	if sc.Parameters != nil {
		opts = append(opts, compartment.WithParameters(*sc.Parameters))
	}
	return opts
}
