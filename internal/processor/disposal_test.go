package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

func TestForwardDisposalCreatesRecycledUnits(t *testing.T) {
	b := NewBuilder()
	recycling := b.AddRoot("recycling", EndUse{UseClass: domain.UseClassFurniture, Lifetime: 10})
	paper := b.AddRoot("paper", EndUse{
		UseClass: domain.UseClassPaper,
		Lifetime: 1,
		Disposal: carbon.Disposal{Kind: carbon.DisposalForward, Target: recycling},
	})
	g, err := b.Build()
	require.NoError(t, err)
	tt, err := domain.NewTimeTable([]int{0, 1, 2})
	require.NoError(t, err)

	inventory, err := g.Process(paper, Batch{Amounts: domain.NewAmountMap(1, 0.5, 0.25)})
	require.NoError(t, err)
	require.NoError(t, g.Actualize(inventory, tt, nil, domain.Deviates{}))

	parent := singleUnit(t, inventory, domain.StatusEndUseWoodProduct)
	recycled := inventory.Collection(domain.StatusRecycled)
	require.NotNil(t, recycled)
	require.Equal(t, 2, recycled.Len())

	released := parent.ReleasedArray()
	for _, u := range recycled.Units() {
		assert.True(t, u.Actualized())
		assert.InDelta(t, released[u.CreationIndex()], u.InitialCarbon(), 1e-12)
		assert.Equal(t, []domain.Status{domain.StatusEndUseWoodProduct, domain.StatusRecycled}, u.History())
		assert.Equal(t, 0.0, u.RoundwoodVolume())
	}
	assert.InDelta(t, released[1]+released[2], recycled.InitialCarbon(), 1e-12)
}

func TestFractionDisposalUsesDefaultLine(t *testing.T) {
	b := NewBuilder()
	landfill := b.AddRoot("landfill", Landfill{Docf: 0.5, Lifetime: 20})
	lumber := b.AddRoot("lumber", EndUse{
		UseClass: domain.UseClassBuilding,
		Lifetime: 2,
		Disposal: carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.4},
	})
	b.SetDefaultDisposal(landfill)
	g, err := b.Build()
	require.NoError(t, err)
	tt, err := domain.NewTimeTable([]int{0, 5})
	require.NoError(t, err)

	inventory, err := g.Process(lumber, Batch{Amounts: domain.NewAmountMap(1, 0.5, 0.25)})
	require.NoError(t, err)
	require.NoError(t, g.Actualize(inventory, tt, nil, domain.Deviates{}))

	parent := singleUnit(t, inventory, domain.StatusEndUseWoodProduct)
	deg := singleUnit(t, inventory, domain.StatusLandfillDegradable)
	inert := singleUnit(t, inventory, domain.StatusLandfillNonDegradable)
	disposed := parent.ReleasedArray()[1] * 0.4
	assert.InDelta(t, disposed*0.5, deg.InitialCarbon(), 1e-12)
	assert.InDelta(t, disposed*0.5, inert.InitialCarbon(), 1e-12)
	assert.Equal(t, 1, deg.CreationIndex())
}

func TestRecyclingLossesAreTagged(t *testing.T) {
	b := NewBuilder()
	losses := b.AddRoot("losses", EndUse{UseClass: domain.UseClassEnergy, Lifetime: 1})
	recycling := b.AddRoot("recycling", Split{}, WithYield(0.5))
	b.AddChild(recycling, "board", 1, EndUse{UseClass: domain.UseClassFurniture, Lifetime: 10})
	b.SetLoss(losses)
	g, err := b.Build()
	require.NoError(t, err)

	out, err := g.Process(recycling, Batch{
		Index:   1,
		Amounts: domain.NewAmountMap(1, 1, 1),
		Lineage: []domain.Status{domain.StatusEndUseWoodProduct},
	})
	require.NoError(t, err)
	singleUnit(t, out, domain.StatusRecycledLosses)
	singleUnit(t, out, domain.StatusRecycled)
}

func TestDisposalChainTerminates(t *testing.T) {
	g, err := ReferenceGraph()
	require.NoError(t, err)
	tt, err := domain.BuildTimeTable([]int{0}, 100, 1)
	require.NoError(t, err)

	inventory, err := g.ProcessCategory(CategorySawlog, Batch{Amounts: domain.NewAmountMap(10, 5, 2.5)})
	require.NoError(t, err)
	before := inventory.Len()
	require.NoError(t, g.Actualize(inventory, tt, nil, domain.Deviates{}))
	assert.Greater(t, inventory.Len(), before)
	for _, u := range inventory.Units() {
		require.True(t, u.Actualized())
		require.Len(t, u.CarbonArray(), tt.Len())
	}
}
