package core

import (
	"context"
	"fmt"

	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

type scenarioRule struct {
	name string
	fn   func(sc *Scenario) domain.Result
}

func (r scenarioRule) Name() string { return r.name }

func (r scenarioRule) Evaluate(_ context.Context, sc *Scenario) (domain.Result, error) {
	if sc == nil {
		return domain.Result{}, fmt.Errorf("%s: nil scenario", r.name)
	}
	return r.fn(sc), nil
}

func blockScenario(rule, subject, format string, args ...any) domain.Violation {
	return domain.Violation{Rule: rule, Severity: domain.SeverityBlock, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// ScenarioRulesEngine returns the rules checked on a scenario before the
// processor graph rules.
func ScenarioRulesEngine() *domain.RulesEngine[*Scenario] {
	engine := domain.NewRulesEngine[*Scenario]()
	engine.Register(scenarioRule{name: "graph_present", fn: func(sc *Scenario) domain.Result {
		if sc.Graph == nil {
			return domain.Result{Violations: []domain.Violation{blockScenario("graph_present", "graph", "scenario has no processor graph")}}
		}
		return domain.Result{}
	}})
	engine.Register(scenarioRule{name: "stands_present", fn: func(sc *Scenario) domain.Result {
		if len(sc.Stands) == 0 {
			return domain.Result{Violations: []domain.Violation{blockScenario("stands_present", "stands", "scenario has no stands")}}
		}
		return domain.Result{}
	}})
	engine.Register(scenarioRule{name: "stand_dates_ordered", fn: func(sc *Scenario) domain.Result {
		var res domain.Result
		for i := 1; i < len(sc.Stands); i++ {
			if sc.Stands[i].Date < sc.Stands[i-1].Date {
				res.Violations = append(res.Violations, blockScenario("stand_dates_ordered", fmt.Sprintf("stand %d", i),
					"date %d precedes previous stand date %d", sc.Stands[i].Date, sc.Stands[i-1].Date))
			}
		}
		return res
	}})
	engine.Register(scenarioRule{name: "time_extension", fn: func(sc *Scenario) domain.Result {
		var res domain.Result
		if sc.ExtensionYears < 0 {
			res.Violations = append(res.Violations, blockScenario("time_extension", "extension_years", "must be >= 0, got %d", sc.ExtensionYears))
		}
		if sc.ExtensionYears > 0 && sc.Step <= 0 {
			res.Violations = append(res.Violations, blockScenario("time_extension", "step", "must be > 0 when extending, got %d", sc.Step))
		}
		return res
	}})
	engine.Register(scenarioRule{name: "rotation_positive", fn: func(sc *Scenario) domain.Result {
		if len(sc.Stands) == 0 {
			return domain.Result{}
		}
		if _, err := sc.RotationLength(); err != nil {
			return domain.Result{Violations: []domain.Violation{blockScenario("rotation_positive", "rotation", "%v", err)}}
		}
		return domain.Result{}
	}})
	engine.Register(scenarioRule{name: "harvest_amounts", fn: func(sc *Scenario) domain.Result {
		var res domain.Result
		for i, st := range sc.Stands {
			for j, p := range st.Harvest {
				subject := fmt.Sprintf("stand %d piece %d", i, j)
				if p.Category == "" {
					res.Violations = append(res.Violations, blockScenario("harvest_amounts", subject, "log category is empty"))
				}
				for _, e := range p.Amounts.Keys() {
					if p.Amounts[e] < 0 {
						res.Violations = append(res.Violations, blockScenario("harvest_amounts", subject, "%s amount %g is negative", e, p.Amounts[e]))
					}
				}
			}
		}
		return res
	}})
	return engine
}

// ValidateScenario evaluates the scenario rules and, when a graph is present,
// the processor graph rules against the scenario's log categories. Blocking
// violations are returned as a domain.RuleViolationError.
func ValidateScenario(ctx context.Context, sc *Scenario) (domain.Result, error) {
	if sc == nil {
		return domain.Result{}, fmt.Errorf("validate: nil scenario")
	}
	res, err := ScenarioRulesEngine().Evaluate(ctx, sc)
	if err != nil {
		return domain.Result{}, err
	}
	if sc.Graph != nil {
		graphRes, err := processor.DefaultRulesEngine().Evaluate(ctx, processor.Subject{Graph: sc.Graph, Categories: sc.LogCategories()})
		if err != nil {
			return domain.Result{}, err
		}
		res.Merge(graphRes)
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	return res, nil
}
