package domain

import (
	"context"
	"fmt"
	"strings"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a run may start.
const (
	// SeverityBlock refuses the run.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows the run.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	// Subject names the offending processor, category or parameter.
	Subject string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, fmt.Sprintf("%s: %s", v.Rule, v.Message))
		}
	}
	return "simulation refused by rules: " + strings.Join(msgs, "; ")
}

// Rule evaluates a validity constraint over a subject of type V.
type Rule[V any] interface {
	Name() string
	Evaluate(ctx context.Context, view V) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine[V any] struct {
	rules []Rule[V]
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine[V any]() *RulesEngine[V] {
	return &RulesEngine[V]{}
}

// Register appends a rule to the engine.
func (e *RulesEngine[V]) Register(rule Rule[V]) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine[V]) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine[V]) Evaluate(ctx context.Context, view V) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
