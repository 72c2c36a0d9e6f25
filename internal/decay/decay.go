// Package decay provides the decay law applied to carbon units.
package decay

import "math"

// Function returns the remaining fraction of a decaying quantity and its
// integral over an infinite horizon. Implementations are stateless and safe to
// share across units and realizations.
type Function interface {
	// Remaining returns f(dt, lifetime) in (0,1], with f(0) = 1.
	Remaining(dt, lifetime float64) float64
	// Integral returns the integral of f over [0, inf).
	Integral(lifetime float64) float64
}

// Exponential implements f = exp(-dt/lifetime). An infinite lifetime never decays.
type Exponential struct{}

// Remaining implements Function.
func (Exponential) Remaining(dt, lifetime float64) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Exp(-dt / lifetime)
}

// Integral implements Function. The integral of exp(-t/l) over [0, inf) is l.
func (Exponential) Integral(lifetime float64) float64 {
	return lifetime
}

// Default is the decay law used when none is configured.
var Default Function = Exponential{}
