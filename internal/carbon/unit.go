package carbon

import (
	"fmt"

	"carboncore/internal/decay"
	"carboncore/pkg/domain"
)

// Epsilon is the quantity below which carbon is treated as zero.
const Epsilon = 1e-12

// Key identifies units that may be merged: same feature, creation index and status history.
type Key struct {
	feature *Feature
	created int
	history string
}

// Unit is an atomic decayable quantity created at a time table index.
type Unit struct {
	feature   *Feature
	created   int
	amounts   domain.AmountMap
	history   []domain.Status
	roundwood float64

	actualized bool
	stock      []float64
	released   []float64
}

// NewUnit creates a unit. The amount map is copied; history must end with the unit's current status.
func NewUnit(feature *Feature, created int, amounts domain.AmountMap, history []domain.Status) *Unit {
	return &Unit{
		feature: feature,
		created: created,
		amounts: amounts.Clone(),
		history: append([]domain.Status(nil), history...),
	}
}

// Key returns the merge key.
func (u *Unit) Key() Key {
	return Key{feature: u.feature, created: u.created, history: domain.HistoryKey(u.history)}
}

// Feature returns the shared feature.
func (u *Unit) Feature() *Feature { return u.feature }

// CreationIndex returns the time table index the unit was created at.
func (u *Unit) CreationIndex() int { return u.created }

// Amounts returns a copy of the amounts at creation.
func (u *Unit) Amounts() domain.AmountMap { return u.amounts.Clone() }

// InitialCarbon is the carbon at creation.
func (u *Unit) InitialCarbon() float64 { return u.amounts.Carbon() }

// History returns a copy of the status history.
func (u *Unit) History() []domain.Status { return append([]domain.Status(nil), u.history...) }

// Status returns the current status.
func (u *Unit) Status() domain.Status {
	if len(u.history) == 0 {
		return ""
	}
	return u.history[len(u.history)-1]
}

// SetRoundwoodVolume records the roundwood volume the unit was made from.
func (u *Unit) SetRoundwoodVolume(v float64) { u.roundwood = v }

// RoundwoodVolume returns the roundwood volume the unit was made from.
func (u *Unit) RoundwoodVolume() float64 { return u.roundwood }

// Actualized reports whether the carbon arrays are populated.
func (u *Unit) Actualized() bool { return u.actualized }

// CarbonArray returns the carbon stock per time index. The slice is shared and must not be modified.
func (u *Unit) CarbonArray() []float64 { return u.stock }

// ReleasedArray returns the carbon released at each time index. The slice is shared and must not be modified.
func (u *Unit) ReleasedArray() []float64 { return u.released }

// Actualize decays the unit over the time table. Before the creation index the
// stock is zero; at creation it equals the initial carbon; afterwards it is the
// previous stock times the remaining fraction over the elapsed step. Stocks
// falling below Epsilon are zeroed but the arrays keep the table's length.
func (u *Unit) Actualize(tt domain.TimeTable, fn decay.Function, d domain.Deviates) error {
	n := tt.Len()
	if u.created < 0 || u.created >= n {
		return fmt.Errorf("unit %s created at index %d outside time table of length %d", u.feature.Name, u.created, n)
	}
	if fn == nil {
		fn = decay.Default
	}
	lifetime := u.feature.EffectiveLifetime(d)
	stock := make([]float64, n)
	released := make([]float64, n)
	stock[u.created] = u.InitialCarbon()
	for i := u.created + 1; i < n; i++ {
		s := stock[i-1] * fn.Remaining(tt.Step(i), lifetime)
		if s < Epsilon {
			s = 0
		}
		stock[i] = s
		released[i] = stock[i-1] - s
	}
	u.stock = stock
	u.released = released
	u.actualized = true
	return nil
}

// IntegratedCarbon returns the analytic integral of the unit's stock over an infinite horizon.
func (u *Unit) IntegratedCarbon(fn decay.Function, d domain.Deviates) float64 {
	if fn == nil {
		fn = decay.Default
	}
	return u.InitialCarbon() * fn.Integral(u.feature.EffectiveLifetime(d))
}

// absorb merges other into u. Decay is linear in the initial carbon, so the
// arrays of two actualized units can simply be added.
func (u *Unit) absorb(other *Unit) {
	u.amounts.Add(other.amounts)
	u.roundwood += other.roundwood
	if u.actualized && other.actualized && len(u.stock) == len(other.stock) {
		for i := range u.stock {
			u.stock[i] += other.stock[i]
			u.released[i] += other.released[i]
		}
		return
	}
	u.actualized = false
	u.stock = nil
	u.released = nil
}
