package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncore/pkg/domain"
)

func TestCollectionMergesEquivalentUnits(t *testing.T) {
	f := &Feature{Name: "lumber", Lifetime: 10, UseClass: domain.UseClassBuilding}
	history := []domain.Status{domain.StatusEndUseWoodProduct}

	c := NewCollection()
	c.Add(NewUnit(f, 0, domain.NewAmountMap(1, 0.5, 0.25), history))
	c.Add(NewUnit(f, 0, domain.NewAmountMap(2, 1, 0.5), history))

	require.Equal(t, 1, c.Len())
	merged := c.Units()[0]
	assert.InDelta(t, 3, merged.Amounts().Get(domain.ElementVolume), 1e-12)
	assert.InDelta(t, 0.75, merged.InitialCarbon(), 1e-12)
}

func TestCollectionKeepsDistinctKeysApart(t *testing.T) {
	f := &Feature{Name: "lumber", Lifetime: 10}
	g := &Feature{Name: "lumber", Lifetime: 10}
	c := NewCollection()
	c.Add(NewUnit(f, 0, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct}))
	c.Add(NewUnit(f, 1, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct}))
	c.Add(NewUnit(g, 0, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct}))
	c.Add(NewUnit(f, 0, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct, domain.StatusRecycled}))
	assert.Equal(t, 4, c.Len())
}

func TestMergedActualizedArraysEqualSum(t *testing.T) {
	tt := mustTimeTable(t, 0, 2, 4, 6)
	f := &Feature{Name: "panel", Lifetime: 5, UseClass: domain.UseClassFurniture}
	history := []domain.Status{domain.StatusEndUseWoodProduct}

	a := NewUnit(f, 1, domain.NewAmountMap(1, 1, 0.3), history)
	b := NewUnit(f, 1, domain.NewAmountMap(1, 1, 0.7), history)
	require.NoError(t, a.Actualize(tt, nil, domain.Deviates{}))
	require.NoError(t, b.Actualize(tt, nil, domain.Deviates{}))
	want := make([]float64, tt.Len())
	for i := range want {
		want[i] = a.CarbonArray()[i] + b.CarbonArray()[i]
	}

	c := NewCollection()
	c.Add(a)
	c.Add(b)
	require.Equal(t, 1, c.Len())
	got := c.Units()[0]
	require.True(t, got.Actualized())
	for i := range want {
		assert.InDelta(t, want[i], got.CarbonArray()[i], 1e-12)
	}

	fresh := NewUnit(f, 1, domain.NewAmountMap(2, 2, 1.0), history)
	require.NoError(t, fresh.Actualize(tt, nil, domain.Deviates{}))
	for i := range want {
		assert.InDelta(t, fresh.CarbonArray()[i], got.CarbonArray()[i], 1e-12)
	}
}

func TestMergeWithPendingUnitResetsActualization(t *testing.T) {
	tt := mustTimeTable(t, 0, 1)
	f := &Feature{Name: "pulp", Lifetime: 2}
	history := []domain.Status{domain.StatusEndUseWoodProduct}
	a := NewUnit(f, 0, domain.NewAmountMap(1, 1, 1), history)
	require.NoError(t, a.Actualize(tt, nil, domain.Deviates{}))

	c := NewCollection()
	c.Add(a)
	c.Add(NewUnit(f, 0, domain.NewAmountMap(1, 1, 1), history))
	u := c.Units()[0]
	assert.False(t, u.Actualized())
	require.NoError(t, c.Actualize(tt, nil, domain.Deviates{}))
	assert.InDelta(t, 2, u.CarbonArray()[0], 1e-12)
}

func TestStatusMapGroupsByCurrentStatus(t *testing.T) {
	f := &Feature{Name: "lumber", Lifetime: 10}
	l := &Feature{Name: "landfill", Lifetime: 20}
	m := StatusMap{}
	m.Add(NewUnit(f, 0, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct}))
	m.Add(NewUnit(l, 0, domain.NewAmountMap(1, 1, 1), []domain.Status{domain.StatusEndUseWoodProduct, domain.StatusLandfillDegradable}))

	other := StatusMap{}
	other.Add(NewUnit(f, 0, domain.NewAmountMap(1, 1, 2), []domain.Status{domain.StatusEndUseWoodProduct}))
	m.Merge(other)

	assert.Equal(t, 2, m.Len())
	require.NotNil(t, m.Collection(domain.StatusEndUseWoodProduct))
	assert.InDelta(t, 3, m.Collection(domain.StatusEndUseWoodProduct).InitialCarbon(), 1e-12)
	assert.InDelta(t, 4, m.InitialCarbon(), 1e-12)
	units := m.Units()
	require.Len(t, units, 2)
	assert.Equal(t, domain.StatusEndUseWoodProduct, units[0].Status())
	assert.Equal(t, domain.StatusLandfillDegradable, units[1].Status())
}
