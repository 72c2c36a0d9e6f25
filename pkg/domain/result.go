package domain

import (
	"context"
	"errors"
	"time"
)

// Series is the calculated content of one compartment for one realization.
type Series struct {
	// Values holds one carbon figure (Mg C) per time table index.
	Values []float64 `json:"values"`
	// Integrated is the rotation-averaged figure (Mg C per year).
	Integrated float64 `json:"integrated"`
}

// Clone returns an independent copy.
func (s Series) Clone() Series {
	return Series{Values: append([]float64(nil), s.Values...), Integrated: s.Integrated}
}

// RealizationResult is the persisted outcome of one Monte Carlo realization.
type RealizationResult struct {
	RunID            string                     `json:"run_id"`
	Realization      int                        `json:"realization"`
	Dates            []int                      `json:"dates"`
	Compartments     map[CompartmentKind]Series `json:"compartments"`
	UnitCount        int                        `json:"unit_count"`
	VolumeByUseClass map[UseClass]float64       `json:"volume_by_use_class,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// Clone returns a deep copy of the result.
func (r RealizationResult) Clone() RealizationResult {
	cp := r
	cp.Dates = append([]int(nil), r.Dates...)
	if r.Compartments != nil {
		cp.Compartments = make(map[CompartmentKind]Series, len(r.Compartments))
		for k, s := range r.Compartments {
			cp.Compartments[k] = s.Clone()
		}
	}
	if r.VolumeByUseClass != nil {
		cp.VolumeByUseClass = make(map[UseClass]float64, len(r.VolumeByUseClass))
		for k, v := range r.VolumeByUseClass {
			cp.VolumeByUseClass[k] = v
		}
	}
	return cp
}

// ResultStore accumulates realization results for later statistical summarization.
type ResultStore interface {
	// Save persists a realization result. Saving the same run/realization twice overwrites it.
	Save(ctx context.Context, result RealizationResult) error
	// List returns the results of a run ordered by realization.
	List(ctx context.Context, runID string) ([]RealizationResult, error)
}

// ErrUnsupported is returned by write-only stores when asked to read.
var ErrUnsupported = errors.New("result store: unsupported operation")

// Biomass is the carbon content of a stand's living biomass, as supplied by
// the biomass-parameters collaborator.
type Biomass struct {
	AboveGround float64 `json:"above_ground"`
	BelowGround float64 `json:"below_ground"`
}

// Deviates are the sensitivity-analysis multipliers of one realization.
// Missing entries default to 1.
type Deviates struct {
	Biomass  float64              `json:"biomass,omitempty"`
	Lifetime map[UseClass]float64 `json:"lifetime,omitempty"`
}

// BiomassFactor returns the biomass multiplier.
func (d Deviates) BiomassFactor() float64 {
	if d.Biomass == 0 {
		return 1
	}
	return d.Biomass
}

// LifetimeFactor returns the lifetime multiplier of a use class.
func (d Deviates) LifetimeFactor(u UseClass) float64 {
	if f, ok := d.Lifetime[u]; ok && f > 0 {
		return f
	}
	return 1
}
