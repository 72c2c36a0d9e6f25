package domain

// CompartmentKind identifies a named carbon pool or flux series.
type CompartmentKind string

// Compartment kinds. The declaration order in CompartmentKinds doubles as the
// calculation order: every merge kind appears after its fathers.
const (
	CompartmentAboveGroundBiomass    CompartmentKind = "above_ground_biomass"
	CompartmentBelowGroundBiomass    CompartmentKind = "below_ground_biomass"
	CompartmentDeadBiomass           CompartmentKind = "dead_biomass"
	CompartmentWoodProducts          CompartmentKind = "wood_products"
	CompartmentLandfillDegradable    CompartmentKind = "landfill_degradable"
	CompartmentCarbonEmissions       CompartmentKind = "carbon_emissions"
	CompartmentEnergySubstitution    CompartmentKind = "energy_substitution"
	CompartmentMaterialSubstitution  CompartmentKind = "material_substitution"
	CompartmentLandfillNonDegradable CompartmentKind = "landfill_non_degradable"
	CompartmentLandfillMethane       CompartmentKind = "landfill_methane"
	CompartmentLivingBiomass         CompartmentKind = "living_biomass"
	CompartmentTotalBiomass          CompartmentKind = "total_biomass"
	CompartmentTotalProducts         CompartmentKind = "total_products"
	CompartmentNetSubstitution       CompartmentKind = "net_substitution"
	CompartmentCarbonBalance         CompartmentKind = "carbon_balance"
)

// Strategy selects how a compartment is calculated.
type Strategy string

// Calculation strategies.
const (
	// StrategyDirect copies an externally supplied biomass figure.
	StrategyDirect Strategy = "direct"
	// StrategyStock sums the decayed stock of bound carbon units.
	StrategyStock Strategy = "stock"
	// StrategyFlux accumulates new per-index contributions into a running sum.
	StrategyFlux Strategy = "flux"
	// StrategyMerge sums father compartments.
	StrategyMerge Strategy = "merge"
)

type compartmentDecl struct {
	kind     CompartmentKind
	strategy Strategy
	fathers  []CompartmentKind
}

var compartmentDecls = []compartmentDecl{
	{kind: CompartmentAboveGroundBiomass, strategy: StrategyDirect},
	{kind: CompartmentBelowGroundBiomass, strategy: StrategyDirect},
	{kind: CompartmentDeadBiomass, strategy: StrategyStock},
	{kind: CompartmentWoodProducts, strategy: StrategyStock},
	{kind: CompartmentLandfillDegradable, strategy: StrategyStock},
	{kind: CompartmentCarbonEmissions, strategy: StrategyFlux},
	{kind: CompartmentEnergySubstitution, strategy: StrategyFlux},
	{kind: CompartmentMaterialSubstitution, strategy: StrategyFlux},
	{kind: CompartmentLandfillNonDegradable, strategy: StrategyFlux},
	{kind: CompartmentLandfillMethane, strategy: StrategyFlux},
	{kind: CompartmentLivingBiomass, strategy: StrategyMerge, fathers: []CompartmentKind{
		CompartmentAboveGroundBiomass, CompartmentBelowGroundBiomass,
	}},
	{kind: CompartmentTotalBiomass, strategy: StrategyMerge, fathers: []CompartmentKind{
		CompartmentLivingBiomass, CompartmentDeadBiomass,
	}},
	{kind: CompartmentTotalProducts, strategy: StrategyMerge, fathers: []CompartmentKind{
		CompartmentWoodProducts, CompartmentLandfillDegradable, CompartmentLandfillNonDegradable,
	}},
	{kind: CompartmentNetSubstitution, strategy: StrategyMerge, fathers: []CompartmentKind{
		CompartmentEnergySubstitution, CompartmentMaterialSubstitution, CompartmentCarbonEmissions, CompartmentLandfillMethane,
	}},
	{kind: CompartmentCarbonBalance, strategy: StrategyMerge, fathers: []CompartmentKind{
		CompartmentTotalBiomass, CompartmentTotalProducts, CompartmentNetSubstitution,
	}},
}

// CompartmentKinds returns every kind in declaration (dependency) order.
func CompartmentKinds() []CompartmentKind {
	out := make([]CompartmentKind, len(compartmentDecls))
	for i, d := range compartmentDecls {
		out[i] = d.kind
	}
	return out
}

func (k CompartmentKind) decl() (compartmentDecl, bool) {
	for _, d := range compartmentDecls {
		if d.kind == k {
			return d, true
		}
	}
	return compartmentDecl{}, false
}

// Strategy returns the calculation strategy of the kind, empty when unknown.
func (k CompartmentKind) Strategy() Strategy {
	d, _ := k.decl()
	return d.strategy
}

// Fathers returns the statically declared fathers of a merge kind.
func (k CompartmentKind) Fathers() []CompartmentKind {
	d, _ := k.decl()
	return append([]CompartmentKind(nil), d.fathers...)
}

// Known reports whether the kind is declared.
func (k CompartmentKind) Known() bool {
	_, ok := k.decl()
	return ok
}
