package carbon

import (
	"carboncore/internal/decay"
	"carboncore/pkg/domain"
)

// Collection holds units in insertion order. Adding a unit whose Key already
// exists merges it into the existing unit instead of appending.
type Collection struct {
	units []*Unit
	index map[Key]*Unit
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{index: make(map[Key]*Unit)}
}

// Add inserts u or merges it into the unit sharing its key. The collection
// takes ownership of u.
func (c *Collection) Add(u *Unit) {
	if c.index == nil {
		c.index = make(map[Key]*Unit)
	}
	key := u.Key()
	if existing, ok := c.index[key]; ok {
		existing.absorb(u)
		return
	}
	c.index[key] = u
	c.units = append(c.units, u)
}

// Merge adds every unit of other. other must not be used afterwards.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	for _, u := range other.units {
		c.Add(u)
	}
}

// Units returns the units in insertion order.
func (c *Collection) Units() []*Unit {
	return append([]*Unit(nil), c.units...)
}

// Len returns the number of distinct units.
func (c *Collection) Len() int { return len(c.units) }

// InitialCarbon sums the creation carbon of every unit.
func (c *Collection) InitialCarbon() float64 {
	var total float64
	for _, u := range c.units {
		total += u.InitialCarbon()
	}
	return total
}

// Actualize actualizes every unit that is not yet actualized.
func (c *Collection) Actualize(tt domain.TimeTable, fn decay.Function, d domain.Deviates) error {
	for _, u := range c.units {
		if u.Actualized() {
			continue
		}
		if err := u.Actualize(tt, fn, d); err != nil {
			return err
		}
	}
	return nil
}

// StatusMap groups collections by the current status of their units.
type StatusMap map[domain.Status]*Collection

// Add inserts u into the collection of its current status.
func (m StatusMap) Add(u *Unit) {
	s := u.Status()
	c, ok := m[s]
	if !ok {
		c = NewCollection()
		m[s] = c
	}
	c.Add(u)
}

// Merge adds every unit of other, status by status. other must not be used afterwards.
func (m StatusMap) Merge(other StatusMap) {
	for _, s := range orderedStatuses(other) {
		for _, u := range other[s].units {
			m.Add(u)
		}
	}
}

// Collection returns the collection of status s, nil when absent.
func (m StatusMap) Collection(s domain.Status) *Collection { return m[s] }

// Units returns every unit, grouped by status in Statuses order.
func (m StatusMap) Units() []*Unit {
	var out []*Unit
	for _, s := range orderedStatuses(m) {
		out = append(out, m[s].units...)
	}
	return out
}

// Len returns the number of distinct units across all statuses.
func (m StatusMap) Len() int {
	n := 0
	for _, c := range m {
		n += c.Len()
	}
	return n
}

// InitialCarbon sums the creation carbon of every unit.
func (m StatusMap) InitialCarbon() float64 {
	var total float64
	for _, c := range m {
		total += c.InitialCarbon()
	}
	return total
}

// Actualize actualizes every pending unit.
func (m StatusMap) Actualize(tt domain.TimeTable, fn decay.Function, d domain.Deviates) error {
	for _, s := range orderedStatuses(m) {
		if err := m[s].Actualize(tt, fn, d); err != nil {
			return err
		}
	}
	return nil
}

func orderedStatuses(m StatusMap) []domain.Status {
	out := make([]domain.Status, 0, len(m))
	seen := make(map[domain.Status]bool, len(m))
	for _, s := range domain.Statuses() {
		if _, ok := m[s]; ok {
			out = append(out, s)
			seen[s] = true
		}
	}
	for s := range m {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
