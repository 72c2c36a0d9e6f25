// Package compartment aggregates actualized carbon units into named carbon
// pools and flux series, and integrates them over the rotation.
package compartment

import (
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Compartment is one carbon pool or flux series. It is created once per
// Manager and reset between realizations.
type Compartment struct {
	kind       domain.CompartmentKind
	strategy   domain.Strategy
	fathers    []*Compartment
	values     []float64
	integrated float64
	// bound holds the units feeding this compartment, indexed by creation index.
	bound  [][]*carbon.Unit
	merged bool
}

func newCompartment(kind domain.CompartmentKind) *Compartment {
	return &Compartment{kind: kind, strategy: kind.Strategy()}
}

// Kind returns the compartment kind.
func (c *Compartment) Kind() domain.CompartmentKind { return c.kind }

// Strategy returns the calculation strategy.
func (c *Compartment) Strategy() domain.Strategy { return c.strategy }

// Fathers returns the kinds this compartment merges.
func (c *Compartment) Fathers() []domain.CompartmentKind {
	if len(c.fathers) == 0 {
		return nil
	}
	out := make([]domain.CompartmentKind, len(c.fathers))
	for i, f := range c.fathers {
		out[i] = f.kind
	}
	return out
}

// Values returns a copy of the per-index carbon array.
func (c *Compartment) Values() []float64 { return append([]float64(nil), c.values...) }

// Integrated returns the rotation-averaged value.
func (c *Compartment) Integrated() float64 { return c.integrated }

// Series returns the calculated content.
func (c *Compartment) Series() domain.Series {
	return domain.Series{Values: c.Values(), Integrated: c.integrated}
}

// Units returns the units bound to the compartment, ordered by creation index.
func (c *Compartment) Units() []*carbon.Unit {
	var out []*carbon.Unit
	for _, us := range c.bound {
		out = append(out, us...)
	}
	return out
}

// UnitsAt returns the units created at index i.
func (c *Compartment) UnitsAt(i int) []*carbon.Unit {
	if i < 0 || i >= len(c.bound) {
		return nil
	}
	return append([]*carbon.Unit(nil), c.bound[i]...)
}

func (c *Compartment) bind(u *carbon.Unit) error {
	i := u.CreationIndex()
	if i < 0 || i >= len(c.bound) {
		return fmt.Errorf("compartment %s: unit %s created at index %d outside time table", c.kind, u.Feature().Name, i)
	}
	c.bound[i] = append(c.bound[i], u)
	return nil
}

// reset clears transient state while keeping the compartment and its fathers.
func (c *Compartment) reset(n int) {
	c.values = make([]float64, n)
	c.integrated = 0
	c.bound = make([][]*carbon.Unit, n)
	c.merged = false
}

// CalculationError wraps a failure raised while calculating a compartment.
type CalculationError struct {
	Kind domain.CompartmentKind
	Err  error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculate compartment %s: %v", e.Kind, e.Err)
}

func (e *CalculationError) Unwrap() error { return e.Err }
