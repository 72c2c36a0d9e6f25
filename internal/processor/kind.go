// Package processor implements the processor graph: production lines that
// split harvested material into end-use products, landfill and forest pools,
// and losses, creating carbon units along the way.
package processor

import (
	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Kind is the closed set of processor behaviours. Switches over Kind are exhaustive.
type Kind interface {
	kindName() string
}

// Split forwards its processed amounts to its children by intake fraction.
type Split struct{}

// EndUse terminates into an end-use wood product.
type EndUse struct {
	UseClass domain.UseClass
	// Lifetime is the average product lifetime in years.
	Lifetime float64
	Disposal carbon.Disposal
	// EnergySubstitution is the fossil carbon avoided per Mg C released (energy use classes).
	EnergySubstitution float64
	// MaterialSubstitution is the fossil carbon avoided per m³ produced (material use classes).
	MaterialSubstitution float64
}

// Landfill terminates into degradable and non-degradable landfill pools.
type Landfill struct {
	// Docf is the degradable organic carbon fraction.
	Docf float64
	// Lifetime applies to the degradable part.
	Lifetime float64
}

// LeftInForest terminates into dead biomass left on site.
type LeftInForest struct {
	Lifetime float64
}

// Diversion forwards its processed amounts to another production line root.
type Diversion struct {
	Target domain.ProcessorID
}

func (Split) kindName() string        { return "split" }
func (EndUse) kindName() string       { return "end_use" }
func (Landfill) kindName() string     { return "landfill" }
func (LeftInForest) kindName() string { return "left_in_forest" }
func (Diversion) kindName() string    { return "diversion" }

// KindName returns a short label for k.
func KindName(k Kind) string {
	if k == nil {
		return "none"
	}
	return k.kindName()
}
