package processor

import (
	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Log categories understood by the reference graph.
const (
	CategorySawlog     = "sawlog"
	CategoryPulpwood   = "pulpwood"
	CategoryEnergywood = "energywood"
	CategoryResidues   = "residues"
)

// ReferenceGraph builds a small but complete graph: a sawmill, a pulp mill,
// an energy line, residues left in the forest, a recycling line, a landfill
// used as default disposal and an industrial loss processor.
func ReferenceGraph() (*Graph, error) {
	b := NewBuilder()

	landfill := b.AddRoot("landfill", Landfill{Docf: 0.5, Lifetime: 30})
	losses := b.AddRoot("industrial losses", EndUse{
		UseClass:           domain.UseClassEnergy,
		Lifetime:           1,
		Disposal:           carbon.Disposal{Kind: carbon.DisposalNone},
		EnergySubstitution: 0.4,
	})

	recycling := b.AddRoot("recycling", Split{}, WithYield(0.9), WithEmissions(0.05))
	b.AddChild(recycling, "particleboard", 1, EndUse{
		UseClass:             domain.UseClassFurniture,
		Lifetime:             15,
		Disposal:             carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.5},
		MaterialSubstitution: 0.1,
	})

	sawmill := b.AddRoot("sawmill", Split{}, WithYield(0.85), WithEmissions(0.1))
	b.AddChild(sawmill, "lumber", 0.6, EndUse{
		UseClass:             domain.UseClassBuilding,
		Lifetime:             35,
		Disposal:             carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.5},
		MaterialSubstitution: 0.3,
	})
	b.AddChild(sawmill, "boards", 0.4, EndUse{
		UseClass:             domain.UseClassFurniture,
		Lifetime:             20,
		Disposal:             carbon.Disposal{Kind: carbon.DisposalForward, Target: recycling},
		MaterialSubstitution: 0.2,
	})

	pulpmill := b.AddRoot("pulp mill", Split{}, WithYield(0.7), WithEmissions(0.3))
	b.AddChild(pulpmill, "paper", 0.8, EndUse{
		UseClass:             domain.UseClassPaper,
		Lifetime:             2,
		Disposal:             carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.3},
		MaterialSubstitution: 0.05,
	})
	b.AddChild(pulpmill, "packaging", 0.2, EndUse{
		UseClass:             domain.UseClassPackaging,
		Lifetime:             1.5,
		Disposal:             carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.3},
		MaterialSubstitution: 0.05,
	})

	energy := b.AddRoot("energy", EndUse{
		UseClass:           domain.UseClassEnergy,
		Lifetime:           1,
		Disposal:           carbon.Disposal{Kind: carbon.DisposalNone},
		EnergySubstitution: 0.5,
	}, WithEmissions(0.02))
	residues := b.AddRoot("residues", LeftInForest{Lifetime: 8})

	b.SetLoss(losses).SetDefaultDisposal(landfill)
	b.Bind(CategorySawlog, sawmill)
	b.Bind(CategoryPulpwood, pulpmill)
	b.Bind(CategoryEnergywood, energy)
	b.Bind(CategoryResidues, residues)
	return b.Build()
}
