package processor

import (
	"context"
	"fmt"
	"math"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Subject is what validity rules evaluate: a graph and the log categories a
// tree logger will produce.
type Subject struct {
	Graph      *Graph
	Categories []string
}

// IntakeTolerance bounds how far children intakes may drift from summing to 1.
const IntakeTolerance = 1e-9

// DefaultRulesEngine returns an engine holding every graph validity rule.
func DefaultRulesEngine() *domain.RulesEngine[Subject] {
	engine := domain.NewRulesEngine[Subject]()
	engine.Register(IntakeSumRule())
	engine.Register(FractionRangeRule())
	engine.Register(LifetimePositiveRule())
	engine.Register(DiversionTargetRule())
	engine.Register(DisposalTargetRule())
	engine.Register(LossProcessorRule())
	engine.Register(SplitChildrenRule())
	engine.Register(CategoryBindingRule())
	return engine
}

// Validate evaluates the default rules and returns a domain.RuleViolationError
// when any violation blocks.
func Validate(ctx context.Context, g *Graph, categories []string) (domain.Result, error) {
	res, err := DefaultRulesEngine().Evaluate(ctx, Subject{Graph: g, Categories: categories})
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	return res, nil
}

type ruleFunc struct {
	name string
	fn   func(s Subject) domain.Result
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(_ context.Context, s Subject) (domain.Result, error) {
	if s.Graph == nil {
		return domain.Result{}, fmt.Errorf("%s: nil graph", r.name)
	}
	return r.fn(s), nil
}

func block(rule, subject, format string, args ...any) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf(format, args...),
		Subject:  subject,
	}
}

// IntakeSumRule requires the intakes of every split's children to sum to 1.
func IntakeSumRule() domain.Rule[Subject] {
	return ruleFunc{name: "intake_sum", fn: func(s Subject) domain.Result {
		var res domain.Result
		for _, n := range s.Graph.nodes {
			if len(n.Children) == 0 {
				continue
			}
			var sum float64
			for _, c := range n.Children {
				sum += s.Graph.nodes[c].Intake
			}
			if math.Abs(sum-1) > IntakeTolerance {
				res.Violations = append(res.Violations, block("intake_sum", n.Name, "children of %q have intakes summing to %g", n.Name, sum))
			}
		}
		return res
	}}
}

// FractionRangeRule bounds intake, yield, docf and disposal fractions.
func FractionRangeRule() domain.Rule[Subject] {
	return ruleFunc{name: "fraction_range", fn: func(s Subject) domain.Result {
		var res domain.Result
		add := func(n Node, what string, v float64) {
			res.Violations = append(res.Violations, block("fraction_range", n.Name, "%s of %q is %g", what, n.Name, v))
		}
		for _, n := range s.Graph.nodes {
			if !(n.Intake > 0 && n.Intake <= 1) {
				add(n, "intake", n.Intake)
			}
			if !(n.Yield > 0 && n.Yield <= 1) {
				add(n, "yield", n.Yield)
			}
			if n.EmissionsPerMg < 0 {
				add(n, "emissions per Mg", n.EmissionsPerMg)
			}
			switch k := n.Kind.(type) {
			case Landfill:
				if !(k.Docf >= 0 && k.Docf <= 1) {
					add(n, "docf", k.Docf)
				}
			case EndUse:
				if k.Disposal.Kind == carbon.DisposalFraction && !(k.Disposal.Fraction > 0 && k.Disposal.Fraction <= 1) {
					add(n, "disposal fraction", k.Disposal.Fraction)
				}
				if k.EnergySubstitution < 0 || k.MaterialSubstitution < 0 {
					add(n, "substitution factor", math.Min(k.EnergySubstitution, k.MaterialSubstitution))
				}
			}
		}
		return res
	}}
}

// LifetimePositiveRule requires finite, positive lifetimes on every terminal node.
func LifetimePositiveRule() domain.Rule[Subject] {
	return ruleFunc{name: "lifetime_positive", fn: func(s Subject) domain.Result {
		var res domain.Result
		for _, n := range s.Graph.nodes {
			var lifetime float64
			switch k := n.Kind.(type) {
			case EndUse:
				lifetime = k.Lifetime
			case Landfill:
				lifetime = k.Lifetime
			case LeftInForest:
				lifetime = k.Lifetime
			default:
				continue
			}
			if math.IsInf(lifetime, 0) || !(lifetime > 0) {
				res.Violations = append(res.Violations, block("lifetime_positive", n.Name, "lifetime of %q must be finite and > 0, got %g", n.Name, lifetime))
			}
		}
		return res
	}}
}

// DiversionTargetRule requires diversions to reach an existing root without looping.
func DiversionTargetRule() domain.Rule[Subject] {
	return ruleFunc{name: "diversion_target", fn: func(s Subject) domain.Result {
		var res domain.Result
		g := s.Graph
		for _, n := range g.nodes {
			d, ok := n.Kind.(Diversion)
			if !ok {
				continue
			}
			target, err := g.node(d.Target)
			if err != nil {
				res.Violations = append(res.Violations, block("diversion_target", n.Name, "%q diverts to missing processor %d", n.Name, d.Target))
				continue
			}
			if !target.IsRoot() {
				res.Violations = append(res.Violations, block("diversion_target", n.Name, "%q diverts to %q which is not a production line root", n.Name, target.Name))
				continue
			}
			if g.divertsBackTo(d.Target, rootOf(g, n.ID), map[domain.ProcessorID]bool{}) {
				res.Violations = append(res.Violations, block("diversion_target", n.Name, "%q diverts into a cycle through %q", n.Name, target.Name))
			}
		}
		return res
	}}
}

func rootOf(g *Graph, id domain.ProcessorID) domain.ProcessorID {
	for g.nodes[id].Parent.Valid() {
		id = g.nodes[id].Parent
	}
	return id
}

// divertsBackTo reports whether the line rooted at from reaches origin through diversions.
func (g *Graph) divertsBackTo(from, origin domain.ProcessorID, seen map[domain.ProcessorID]bool) bool {
	if from == origin {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	stack := []domain.ProcessorID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.nodes[id]
		if d, ok := n.Kind.(Diversion); ok {
			if _, err := g.node(d.Target); err == nil && g.divertsBackTo(d.Target, origin, seen) {
				return true
			}
		}
		stack = append(stack, n.Children...)
	}
	return false
}

// DisposalTargetRule requires forward targets to be roots and fraction
// disposal to have a default disposal line.
func DisposalTargetRule() domain.Rule[Subject] {
	return ruleFunc{name: "disposal_target", fn: func(s Subject) domain.Result {
		var res domain.Result
		g := s.Graph
		for _, n := range g.nodes {
			e, ok := n.Kind.(EndUse)
			if !ok {
				continue
			}
			switch e.Disposal.Kind {
			case carbon.DisposalForward:
				target, err := g.node(e.Disposal.Target)
				if err != nil {
					res.Violations = append(res.Violations, block("disposal_target", n.Name, "%q forwards disposal to missing processor %d", n.Name, e.Disposal.Target))
				} else if !target.IsRoot() {
					res.Violations = append(res.Violations, block("disposal_target", n.Name, "%q forwards disposal to %q which is not a production line root", n.Name, target.Name))
				}
			case carbon.DisposalFraction:
				if !g.disposal.Valid() {
					res.Violations = append(res.Violations, block("disposal_target", n.Name, "%q disposes a fraction but the graph has no default disposal line", n.Name))
				}
			}
		}
		if g.disposal.Valid() {
			if target, err := g.node(g.disposal); err != nil || !target.IsRoot() {
				res.Violations = append(res.Violations, block("disposal_target", "", "default disposal %d is not a production line root", g.disposal))
			}
		}
		return res
	}}
}

// LossProcessorRule requires a terminal end-use loss processor whenever a yield is below 1.
func LossProcessorRule() domain.Rule[Subject] {
	return ruleFunc{name: "loss_processor", fn: func(s Subject) domain.Result {
		var res domain.Result
		g := s.Graph
		needed := false
		for _, n := range g.nodes {
			if n.Yield < 1 {
				needed = true
				break
			}
		}
		if !g.loss.Valid() {
			if needed {
				res.Violations = append(res.Violations, block("loss_processor", "", "a processor has yield < 1 but no loss processor is configured"))
			}
			return res
		}
		n, err := g.node(g.loss)
		if err != nil {
			res.Violations = append(res.Violations, block("loss_processor", "", "loss processor %d does not exist", g.loss))
			return res
		}
		if _, ok := n.Kind.(EndUse); !ok || len(n.Children) > 0 {
			res.Violations = append(res.Violations, block("loss_processor", n.Name, "loss processor %q must be a terminal end-use node", n.Name))
		}
		return res
	}}
}

// SplitChildrenRule requires split nodes to have children.
func SplitChildrenRule() domain.Rule[Subject] {
	return ruleFunc{name: "split_children", fn: func(s Subject) domain.Result {
		var res domain.Result
		for _, n := range s.Graph.nodes {
			if _, ok := n.Kind.(Split); ok && len(n.Children) == 0 {
				res.Violations = append(res.Violations, block("split_children", n.Name, "split %q has no children", n.Name))
			}
		}
		return res
	}}
}

// CategoryBindingRule requires every log category to be bound to a line.
func CategoryBindingRule() domain.Rule[Subject] {
	return ruleFunc{name: "category_binding", fn: func(s Subject) domain.Result {
		var res domain.Result
		for _, c := range s.Categories {
			if _, err := s.Graph.RootFor(c); err != nil {
				res.Violations = append(res.Violations, block("category_binding", c, "%v", err))
			}
		}
		return res
	}}
}
