// Package carbon models carbon units: decayable quantities of carbon-bearing
// material created while harvested wood flows through a processor graph.
package carbon

import (
	"math"

	"carboncore/pkg/domain"
)

// DisposalKind selects what happens to the carbon a unit releases.
type DisposalKind string

// Disposal policies.
const (
	// DisposalNone emits released carbon.
	DisposalNone DisposalKind = "none"
	// DisposalFraction sends a fraction of released carbon to the graph's default disposal line.
	DisposalFraction DisposalKind = "fraction"
	// DisposalForward sends all released carbon to an explicit successor line.
	DisposalForward DisposalKind = "forward"
)

// Disposal describes the end-of-life policy of a feature.
type Disposal struct {
	Kind     DisposalKind
	Fraction float64
	Target   domain.ProcessorID
}

// Feature is the immutable description shared by every unit a processor creates.
type Feature struct {
	Processor domain.ProcessorID
	Name      string
	// Lifetime is the average lifetime in years; +Inf never decays.
	Lifetime float64
	UseClass domain.UseClass
	Disposal Disposal
	// EnergySubstitution is the fossil carbon avoided per Mg C released by combustion.
	EnergySubstitution float64
	// MaterialSubstitution is the fossil carbon avoided per m³ of product at creation.
	MaterialSubstitution float64
}

// Degradable reports whether units of this feature decay.
func (f *Feature) Degradable() bool {
	return !math.IsInf(f.Lifetime, 1)
}

// EffectiveLifetime applies the realization's lifetime deviate.
func (f *Feature) EffectiveLifetime(d domain.Deviates) float64 {
	if !f.Degradable() {
		return f.Lifetime
	}
	return f.Lifetime * d.LifetimeFactor(f.UseClass)
}

// Disposes reports whether released carbon is forwarded somewhere.
func (f *Feature) Disposes() bool {
	return f.Disposal.Kind == DisposalFraction || f.Disposal.Kind == DisposalForward
}
