package compartment

import (
	"errors"
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/internal/decay"
	"carboncore/pkg/domain"
)

// Manager owns the time table and the compartment dependency graph of one
// simulation run. A Manager is not safe for concurrent use; parallel
// realizations each get their own.
type Manager struct {
	library      Library
	decay        decay.Function
	params       Parameters
	compartments map[domain.CompartmentKind]*Compartment
	order        []*Compartment

	tt          domain.TimeTable
	evenAged    bool
	rotation    float64
	biomass     []domain.Biomass
	realization int
	deviates    domain.Deviates
	initialized bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDecay overrides the decay law.
func WithDecay(fn decay.Function) Option {
	return func(m *Manager) {
		if fn != nil {
			m.decay = fn
		}
	}
}

// WithParameters overrides the calculation constants.
func WithParameters(p Parameters) Option {
	return func(m *Manager) { m.params = p }
}

// NewManager creates every declared compartment and wires merge fathers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		decay:        decay.Default,
		params:       DefaultParameters(),
		compartments: make(map[domain.CompartmentKind]*Compartment),
		realization:  -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, kind := range domain.CompartmentKinds() {
		c := newCompartment(kind)
		m.compartments[kind] = c
		m.order = append(m.order, c)
	}
	for _, c := range m.order {
		for _, fk := range c.kind.Fathers() {
			c.fathers = append(c.fathers, m.compartments[fk])
		}
	}
	return m
}

// ErrNotInitialized is returned when a manager is used before Init.
var ErrNotInitialized = errors.New("compartment manager is not initialized")

// Init binds the manager to a time table and stand list and resets it.
func (m *Manager) Init(tt domain.TimeTable, evenAged bool, rotation float64, biomass []domain.Biomass) error {
	if tt.Len() == 0 {
		return domain.ErrEmptyTimeTable
	}
	if rotation <= 0 {
		return fmt.Errorf("rotation length must be > 0, got %g", rotation)
	}
	if len(biomass) > tt.Len() {
		return fmt.Errorf("%d biomass figures for a time table of length %d", len(biomass), tt.Len())
	}
	m.tt = tt
	m.evenAged = evenAged
	m.rotation = rotation
	m.biomass = append([]domain.Biomass(nil), biomass...)
	m.initialized = true
	m.ResetManager()
	return nil
}

// ResetManager clears the realization and every compartment.
func (m *Manager) ResetManager() {
	m.realization = -1
	m.deviates = domain.Deviates{}
	m.ResetCompartments()
}

// ResetCompartments clears compartment arrays, bindings and merge flags.
func (m *Manager) ResetCompartments() {
	for _, c := range m.order {
		c.reset(m.tt.Len())
	}
}

// SetRealization records the realization id and its deviates.
func (m *Manager) SetRealization(realization int, d domain.Deviates) {
	m.realization = realization
	m.deviates = d
}

// Realization returns the current realization id, -1 before SetRealization.
func (m *Manager) Realization() int { return m.realization }

// Deviates returns the current realization deviates.
func (m *Manager) Deviates() domain.Deviates { return m.deviates }

// TimeTable returns the bound time table.
func (m *Manager) TimeTable() domain.TimeTable { return m.tt }

// Rotation returns the rotation length.
func (m *Manager) Rotation() float64 { return m.rotation }

// EvenAged reports whether integrated stocks use the per-unit analytic integral.
func (m *Manager) EvenAged() bool { return m.evenAged }

// Decay returns the decay law.
func (m *Manager) Decay() decay.Function { return m.decay }

// Compartment returns the compartment of kind.
func (m *Manager) Compartment(kind domain.CompartmentKind) (*Compartment, bool) {
	c, ok := m.compartments[kind]
	return c, ok
}

// Bind assigns every unit of the inventory to the compartments it feeds.
func (m *Manager) Bind(inventory carbon.StatusMap) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	for _, u := range inventory.Units() {
		for _, kind := range Targets(u) {
			if err := m.compartments[kind].bind(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) context() *Context {
	return &Context{
		TimeTable:  m.tt,
		EvenAged:   m.evenAged,
		Rotation:   m.rotation,
		Biomass:    m.biomass,
		Deviates:   m.deviates,
		Decay:      m.decay,
		Parameters: m.params,
	}
}

// Calculate compiles every compartment in declaration order, so merges run
// after their fathers. The first failure aborts the remaining compartments
// and is returned as a *CalculationError.
func (m *Manager) Calculate() error {
	if !m.initialized {
		return ErrNotInitialized
	}
	ctx := m.context()
	for _, c := range m.order {
		if err := m.library.Compile(c, ctx); err != nil {
			return &CalculationError{Kind: c.kind, Err: err}
		}
	}
	return nil
}

// Snapshot returns the calculated series of every compartment.
func (m *Manager) Snapshot() map[domain.CompartmentKind]domain.Series {
	out := make(map[domain.CompartmentKind]domain.Series, len(m.order))
	for _, c := range m.order {
		out[c.kind] = c.Series()
	}
	return out
}

// RotationLength resolves the rotation used to average integrated values: the
// override when positive, else the last stand date for even-aged runs or the
// span of stand dates otherwise.
func RotationLength(standDates []int, evenAged bool, override float64) (float64, error) {
	if override > 0 {
		return override, nil
	}
	if len(standDates) == 0 {
		return 0, domain.ErrEmptyTimeTable
	}
	var rotation float64
	if evenAged {
		rotation = float64(standDates[len(standDates)-1])
	} else {
		rotation = float64(standDates[len(standDates)-1] - standDates[0])
	}
	if rotation <= 0 {
		return 0, fmt.Errorf("rotation length must be > 0, got %g", rotation)
	}
	return rotation, nil
}
