package compartment

import (
	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Targets returns the compartments a unit feeds, based on its current status
// and use class. Every unit feeds carbon_emissions.
func Targets(u *carbon.Unit) []domain.CompartmentKind {
	var out []domain.CompartmentKind
	useClass := u.Feature().UseClass
	switch u.Status() {
	case domain.StatusLeftInForest:
		out = append(out, domain.CompartmentDeadBiomass)
	case domain.StatusEndUseWoodProduct, domain.StatusRecycled:
		out = append(out, domain.CompartmentWoodProducts)
		if useClass.IsEnergy() {
			out = append(out, domain.CompartmentEnergySubstitution)
		} else {
			out = append(out, domain.CompartmentMaterialSubstitution)
		}
	case domain.StatusIndustrialLosses, domain.StatusRecycledLosses:
		out = append(out, domain.CompartmentWoodProducts)
		if useClass.IsEnergy() {
			out = append(out, domain.CompartmentEnergySubstitution)
		}
	case domain.StatusLandfillDegradable:
		out = append(out, domain.CompartmentLandfillDegradable, domain.CompartmentLandfillMethane)
	case domain.StatusLandfillNonDegradable:
		out = append(out, domain.CompartmentLandfillNonDegradable)
	}
	return append(out, domain.CompartmentCarbonEmissions)
}
