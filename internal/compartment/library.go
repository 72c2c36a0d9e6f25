package compartment

import (
	"errors"
	"fmt"
	"math"

	"carboncore/internal/carbon"
	"carboncore/internal/decay"
	"carboncore/pkg/domain"
)

// Conversion factors between CO2, CH4 and carbon masses.
const (
	CarbonPerCO2 = 12.0 / 44.0
	CH4PerCarbon = 16.0 / 12.0
)

// Parameters are the calculation constants that are not carried by units.
type Parameters struct {
	// MethaneFraction is the share of degradable landfill carbon released as CH4.
	MethaneFraction float64 `json:"methane_fraction" yaml:"methane_fraction"`
	// MethaneGWP is the 100-year global warming potential of CH4.
	MethaneGWP float64 `json:"methane_gwp" yaml:"methane_gwp"`
}

// DefaultParameters returns the usual landfill methane constants.
func DefaultParameters() Parameters {
	return Parameters{MethaneFraction: 0.5, MethaneGWP: 25}
}

// MethaneCarbonEquivalent converts 1 Mg of carbon released as CH4 into Mg of C-equivalent.
func (p Parameters) MethaneCarbonEquivalent() float64 {
	return p.MethaneFraction * CH4PerCarbon * p.MethaneGWP * CarbonPerCO2
}

// Context carries what the library needs besides the compartment itself.
type Context struct {
	TimeTable domain.TimeTable
	EvenAged  bool
	Rotation  float64
	// Biomass holds one entry per stand; stand i lives at time index i.
	Biomass    []domain.Biomass
	Deviates   domain.Deviates
	Decay      decay.Function
	Parameters Parameters
}

// Trapezoid integrates values over dates. With origin set, a synthetic (0, 0)
// point is prepended before the first date.
func Trapezoid(dates []int, values []float64, origin bool) float64 {
	n := min(len(dates), len(values))
	if n == 0 {
		return 0
	}
	var area float64
	if origin {
		area += values[0] * 0.5 * float64(dates[0])
	}
	for i := 1; i < n; i++ {
		area += (values[i] + values[i-1]) * 0.5 * float64(dates[i]-dates[i-1])
	}
	return area
}

// Library dispatches a compartment to its strategy.
type Library struct{}

// Compile calculates c for the current realization.
func (Library) Compile(c *Compartment, ctx *Context) error {
	if ctx.Rotation <= 0 {
		return fmt.Errorf("rotation length must be > 0, got %g", ctx.Rotation)
	}
	var err error
	switch c.strategy {
	case domain.StrategyDirect:
		err = compileDirect(c, ctx)
	case domain.StrategyStock:
		err = compileStock(c, ctx)
	case domain.StrategyFlux:
		err = compileFlux(c, ctx)
	case domain.StrategyMerge:
		err = compileMerge(c)
	default:
		err = fmt.Errorf("unknown strategy %q", c.strategy)
	}
	if err != nil {
		return err
	}
	return checkFinite(c)
}

func checkFinite(c *Compartment) error {
	for i, v := range c.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value %v at index %d", v, i)
		}
	}
	if math.IsNaN(c.integrated) || math.IsInf(c.integrated, 0) {
		return fmt.Errorf("non-finite integrated value %v", c.integrated)
	}
	return nil
}

func compileDirect(c *Compartment, ctx *Context) error {
	n := ctx.TimeTable.Len()
	if len(ctx.Biomass) > n {
		return fmt.Errorf("%d biomass figures for a time table of length %d", len(ctx.Biomass), n)
	}
	factor := ctx.Deviates.BiomassFactor()
	values := make([]float64, n)
	for i, b := range ctx.Biomass {
		switch c.kind {
		case domain.CompartmentAboveGroundBiomass:
			values[i] = b.AboveGround * factor
		case domain.CompartmentBelowGroundBiomass:
			values[i] = b.BelowGround * factor
		default:
			return fmt.Errorf("no direct source for %s", c.kind)
		}
	}
	stands := len(ctx.Biomass)
	dates := ctx.TimeTable.Dates()[:stands]
	c.values = values
	c.integrated = Trapezoid(dates, values[:stands], ctx.EvenAged) / ctx.Rotation
	return nil
}

// ErrNotActualized is returned when a stock compartment meets a unit whose arrays are missing.
var ErrNotActualized = errors.New("carbon unit is not actualized")

func compileStock(c *Compartment, ctx *Context) error {
	n := ctx.TimeTable.Len()
	values := make([]float64, n)
	var analytic float64
	for _, u := range c.Units() {
		if !u.Actualized() {
			return fmt.Errorf("%s: %w", u.Feature().Name, ErrNotActualized)
		}
		stock := u.CarbonArray()
		for i := u.CreationIndex(); i < n && i < len(stock); i++ {
			values[i] += stock[i]
		}
		if ctx.EvenAged {
			analytic += u.IntegratedCarbon(ctx.Decay, ctx.Deviates)
		}
	}
	c.values = values
	if ctx.EvenAged {
		c.integrated = analytic / ctx.Rotation
	} else {
		c.integrated = Trapezoid(ctx.TimeTable.Dates(), values, false) / ctx.Rotation
	}
	return nil
}

// fluxContribution adds a unit's new contributions into per-index slots.
type fluxContribution func(u *carbon.Unit, contrib []float64, ctx *Context) error

var fluxContributions = map[domain.CompartmentKind]fluxContribution{
	domain.CompartmentCarbonEmissions: func(u *carbon.Unit, contrib []float64, _ *Context) error {
		contrib[u.CreationIndex()] -= u.Amounts().Get(domain.ElementEmissionsCO2Eq) * CarbonPerCO2
		return nil
	},
	domain.CompartmentEnergySubstitution: func(u *carbon.Unit, contrib []float64, _ *Context) error {
		return addReleased(u, contrib, u.Feature().EnergySubstitution)
	},
	domain.CompartmentMaterialSubstitution: func(u *carbon.Unit, contrib []float64, _ *Context) error {
		contrib[u.CreationIndex()] += u.Amounts().Get(domain.ElementVolume) * u.Feature().MaterialSubstitution
		return nil
	},
	domain.CompartmentLandfillNonDegradable: func(u *carbon.Unit, contrib []float64, _ *Context) error {
		contrib[u.CreationIndex()] += u.InitialCarbon()
		return nil
	},
	domain.CompartmentLandfillMethane: func(u *carbon.Unit, contrib []float64, ctx *Context) error {
		return addReleased(u, contrib, -ctx.Parameters.MethaneCarbonEquivalent())
	},
}

func addReleased(u *carbon.Unit, contrib []float64, factor float64) error {
	if !u.Actualized() {
		return fmt.Errorf("%s: %w", u.Feature().Name, ErrNotActualized)
	}
	released := u.ReleasedArray()
	for i := u.CreationIndex() + 1; i < len(contrib) && i < len(released); i++ {
		contrib[i] += released[i] * factor
	}
	return nil
}

func compileFlux(c *Compartment, ctx *Context) error {
	fn, ok := fluxContributions[c.kind]
	if !ok {
		return fmt.Errorf("no flux contribution for %s", c.kind)
	}
	n := ctx.TimeTable.Len()
	values := make([]float64, n)
	for _, u := range c.Units() {
		if err := fn(u, values, ctx); err != nil {
			return err
		}
	}
	for i := 1; i < n; i++ {
		values[i] += values[i-1]
	}
	c.values = values
	c.integrated = values[n-1] / ctx.Rotation
	return nil
}

// compileMerge sums the fathers. It is memoized: a merged compartment is not
// recalculated until reset, and fathers that are merges are merged first.
func compileMerge(c *Compartment) error {
	if c.merged {
		return nil
	}
	if len(c.fathers) == 0 {
		return errors.New("merge compartment has no fathers")
	}
	var values []float64
	var integrated float64
	for _, f := range c.fathers {
		if f.strategy == domain.StrategyMerge {
			if err := compileMerge(f); err != nil {
				return fmt.Errorf("father %s: %w", f.kind, err)
			}
		}
		if values == nil {
			values = make([]float64, len(f.values))
		}
		if len(f.values) != len(values) {
			return fmt.Errorf("father %s has %d values, expected %d", f.kind, len(f.values), len(values))
		}
		for i, v := range f.values {
			values[i] += v
		}
		integrated += f.integrated
	}
	c.values = values
	c.integrated = integrated
	c.merged = true
	return nil
}
