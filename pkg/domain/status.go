package domain

import "strings"

// Status records a transition in the life of a carbon unit.
type Status string

// Carbon unit statuses. A unit's history is the ordered list of statuses it
// went through, the last one being its current status.
const (
	StatusEndUseWoodProduct     Status = "end_use_wood_product"
	StatusLandfillDegradable    Status = "landfill_degradable"
	StatusLandfillNonDegradable Status = "landfill_non_degradable"
	StatusRecycled              Status = "recycled"
	StatusLeftInForest          Status = "left_in_forest"
	StatusIndustrialLosses      Status = "industrial_losses"
	StatusRecycledLosses        Status = "recycled_losses"
)

// Statuses lists every status in a stable order.
func Statuses() []Status {
	return []Status{
		StatusEndUseWoodProduct,
		StatusLandfillDegradable,
		StatusLandfillNonDegradable,
		StatusRecycled,
		StatusLeftInForest,
		StatusIndustrialLosses,
		StatusRecycledLosses,
	}
}

// HistoryKey joins a status history into a comparable key.
func HistoryKey(history []Status) string {
	parts := make([]string, len(history))
	for i, s := range history {
		parts[i] = string(s)
	}
	return strings.Join(parts, ">")
}

// UseClass is the end-use category of a wood product.
type UseClass string

// Use classes. Energy drives energy substitution; the others drive material
// substitution.
const (
	UseClassNone         UseClass = "none"
	UseClassEnergy       UseClass = "energy"
	UseClassBuilding     UseClass = "building"
	UseClassFurniture    UseClass = "furniture"
	UseClassPaper        UseClass = "paper"
	UseClassPackaging    UseClass = "packaging"
	UseClassIndustrial   UseClass = "industrial"
	UseClassConstruction UseClass = "construction"
)

// IsEnergy reports whether the class is burned for energy.
func (u UseClass) IsEnergy() bool { return u == UseClassEnergy }

// UseClasses lists every use class.
func UseClasses() []UseClass {
	return []UseClass{
		UseClassNone, UseClassEnergy, UseClassBuilding, UseClassFurniture,
		UseClassPaper, UseClassPackaging, UseClassIndustrial, UseClassConstruction,
	}
}

// Known reports whether u is a declared use class.
func (u UseClass) Known() bool {
	for _, c := range UseClasses() {
		if c == u {
			return true
		}
	}
	return false
}

// ProcessorID references a node in a processor graph arena.
type ProcessorID int

// NoProcessor marks an absent processor reference (for instance the parent of a root).
const NoProcessor ProcessorID = -1

// Valid reports whether the id references an arena slot.
func (id ProcessorID) Valid() bool { return id >= 0 }
