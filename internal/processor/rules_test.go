package processor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

func violatedRules(res domain.Result) map[string]bool {
	out := make(map[string]bool)
	for _, v := range res.Violations {
		out[v.Rule] = true
	}
	return out
}

func TestReferenceGraphIsValid(t *testing.T) {
	g, err := ReferenceGraph()
	require.NoError(t, err)
	res, err := Validate(context.Background(), g, []string{CategorySawlog, CategoryPulpwood, CategoryEnergywood, CategoryResidues})
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestDefaultRulesEngineNames(t *testing.T) {
	assert.Equal(t, []string{
		"intake_sum",
		"fraction_range",
		"lifetime_positive",
		"diversion_target",
		"disposal_target",
		"loss_processor",
		"split_children",
		"category_binding",
	}, DefaultRulesEngine().Rules())
}

func TestValidateRefusesBrokenGraph(t *testing.T) {
	b := NewBuilder()
	mill := b.AddRoot("mill", Split{}, WithYield(0.9))
	b.AddChild(mill, "a", 0.5, EndUse{UseClass: domain.UseClassBuilding, Lifetime: 10})
	b.AddChild(mill, "b", 0.3, EndUse{UseClass: domain.UseClassPaper, Lifetime: 0})
	b.AddChild(mill, "c", 0.1, EndUse{
		UseClass: domain.UseClassPaper,
		Lifetime: 1,
		Disposal: carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: 0.5},
	})
	b.AddRoot("empty", Split{})
	b.Bind("sawlog", mill)
	g, err := b.Build()
	require.NoError(t, err)

	res, err := Validate(context.Background(), g, []string{"sawlog", "pulpwood"})
	var refused domain.RuleViolationError
	require.True(t, errors.As(err, &refused))
	rules := violatedRules(res)
	for _, name := range []string{"intake_sum", "lifetime_positive", "disposal_target", "loss_processor", "split_children", "category_binding"} {
		assert.True(t, rules[name], "expected %s violation, got %+v", name, res.Violations)
	}
	assert.False(t, rules["fraction_range"])
}

func TestLifetimePositiveRejectsInfiniteLifetimes(t *testing.T) {
	b := NewBuilder()
	b.AddRoot("boards", EndUse{UseClass: domain.UseClassBuilding, Lifetime: math.Inf(1)})
	b.AddRoot("slash", LeftInForest{Lifetime: math.NaN()})
	b.AddRoot("beams", EndUse{UseClass: domain.UseClassBuilding, Lifetime: 40})
	g, err := b.Build()
	require.NoError(t, err)

	res, err := LifetimePositiveRule().Evaluate(context.Background(), Subject{Graph: g})
	require.NoError(t, err)
	subjects := make(map[string]bool)
	for _, v := range res.Violations {
		subjects[v.Subject] = true
	}
	assert.Equal(t, map[string]bool{"boards": true, "slash": true}, subjects)
}

func TestFractionRangeRule(t *testing.T) {
	b := NewBuilder()
	b.AddRoot("landfill", Landfill{Docf: 1.5, Lifetime: 10}, WithYield(0))
	g, err := b.Build()
	require.NoError(t, err)
	res, err := FractionRangeRule().Evaluate(context.Background(), Subject{Graph: g})
	require.NoError(t, err)
	require.Len(t, res.Violations, 2)
	assert.True(t, res.HasBlocking())
}

func TestDiversionTargetRule(t *testing.T) {
	b := NewBuilder()
	a := b.AddRoot("a", Split{})
	bRoot := b.AddRoot("b", Split{})
	b.AddChild(a, "to b", 1, Diversion{Target: bRoot})
	b.AddChild(bRoot, "to a", 1, Diversion{Target: a})
	c := b.AddRoot("c", Split{})
	leaf := b.AddChild(c, "leaf", 0.5, EndUse{Lifetime: 1})
	b.AddChild(c, "to leaf", 0.5, Diversion{Target: leaf})
	g, err := b.Build()
	require.NoError(t, err)

	res, err := DiversionTargetRule().Evaluate(context.Background(), Subject{Graph: g})
	require.NoError(t, err)
	subjects := make(map[string]bool)
	for _, v := range res.Violations {
		subjects[v.Subject] = true
	}
	assert.True(t, subjects["to b"])
	assert.True(t, subjects["to a"])
	assert.True(t, subjects["to leaf"])
}

func TestLossProcessorMustBeTerminalEndUse(t *testing.T) {
	b := NewBuilder()
	losses := b.AddRoot("losses", Landfill{Docf: 0.5, Lifetime: 10})
	b.AddRoot("mill", EndUse{Lifetime: 5}, WithYield(0.8))
	b.SetLoss(losses)
	g, err := b.Build()
	require.NoError(t, err)
	res, err := LossProcessorRule().Evaluate(context.Background(), Subject{Graph: g})
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "losses", res.Violations[0].Subject)
}

func TestRuleRejectsNilGraph(t *testing.T) {
	_, err := IntakeSumRule().Evaluate(context.Background(), Subject{})
	require.Error(t, err)
}
