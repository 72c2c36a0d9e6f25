// Package domain defines the value types, result records, and rule evaluation
// primitives shared by the carbon-flow simulation engine and its adapters.
package domain

import "sort"

// Element identifies a quantity carried by harvested material.
type Element string

// Supported elements. Masses are expressed in Mg, volumes in m³.
const (
	// ElementVolume is the solid volume of the material.
	ElementVolume Element = "volume"
	// ElementBiomass is the dry biomass of the material.
	ElementBiomass Element = "biomass"
	// ElementCarbon is the carbon content.
	ElementCarbon Element = "C"
	ElementN      Element = "N"
	ElementS      Element = "S"
	ElementP      Element = "P"
	ElementK      Element = "K"
	// ElementEmissionsCO2Eq accumulates manufacturing emissions along the processing path.
	ElementEmissionsCO2Eq Element = "emissions_co2eq"
)

// Elements lists every supported element in a stable order.
func Elements() []Element {
	return []Element{
		ElementVolume,
		ElementBiomass,
		ElementCarbon,
		ElementN,
		ElementS,
		ElementP,
		ElementK,
		ElementEmissionsCO2Eq,
	}
}

// AmountMap maps elements to per-unit (not normalized) quantities.
type AmountMap map[Element]float64

// NewAmountMap builds a map from volume, biomass and carbon, the triple every
// wood piece carries.
func NewAmountMap(volume, biomass, carbon float64) AmountMap {
	return AmountMap{
		ElementVolume:  volume,
		ElementBiomass: biomass,
		ElementCarbon:  carbon,
	}
}

// Get returns the quantity for e, zero when absent.
func (m AmountMap) Get(e Element) float64 {
	if m == nil {
		return 0
	}
	return m[e]
}

// Carbon is shorthand for Get(ElementCarbon).
func (m AmountMap) Carbon() float64 { return m.Get(ElementCarbon) }

// Clone returns an independent copy.
func (m AmountMap) Clone() AmountMap {
	out := make(AmountMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Scale returns a new map with every quantity multiplied by f.
func (m AmountMap) Scale(f float64) AmountMap {
	out := make(AmountMap, len(m))
	for k, v := range m {
		out[k] = v * f
	}
	return out
}

// Add merges other into m element-wise.
func (m AmountMap) Add(other AmountMap) {
	for k, v := range other {
		m[k] += v
	}
}

// Keys returns the elements present in the map, sorted.
func (m AmountMap) Keys() []Element {
	keys := make([]Element, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
