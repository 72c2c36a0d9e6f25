package processor

import (
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/internal/decay"
	"carboncore/pkg/domain"
)

// Actualize decays every unit of the inventory and drains the disposal work
// queue. Units whose feature disposes released carbon forward, at every index
// where the disposed share exceeds carbon.Epsilon, a batch to their successor
// line. The new units join the queue as the next generation. Each generation
// is created strictly later than its parent, so the queue empties within the
// time table length.
func (g *Graph) Actualize(inventory carbon.StatusMap, tt domain.TimeTable, fn decay.Function, d domain.Deviates) error {
	pending := inventory.Units()
	for generation := 0; len(pending) > 0; generation++ {
		if generation > tt.Len() {
			return fmt.Errorf("disposal queue did not drain after %d generations", generation)
		}
		next := carbon.StatusMap{}
		for _, u := range pending {
			if !u.Actualized() {
				if err := u.Actualize(tt, fn, d); err != nil {
					return err
				}
			}
			if err := g.dispose(u, next); err != nil {
				return err
			}
		}
		if err := next.Actualize(tt, fn, d); err != nil {
			return err
		}
		pending = next.Units()
		inventory.Merge(next)
	}
	return nil
}

func (g *Graph) dispose(u *carbon.Unit, next carbon.StatusMap) error {
	f := u.Feature()
	if !f.Disposes() {
		return nil
	}
	target, fraction, err := g.disposalTarget(f)
	if err != nil {
		return err
	}
	initial := u.InitialCarbon()
	if initial <= carbon.Epsilon {
		return nil
	}
	base := u.Amounts()
	// manufacturing emissions were accounted when the unit was created
	delete(base, domain.ElementEmissionsCO2Eq)
	released := u.ReleasedArray()
	lineage := u.History()
	for j := u.CreationIndex() + 1; j < len(released); j++ {
		disposed := released[j] * fraction
		if disposed <= carbon.Epsilon {
			continue
		}
		b := Batch{Index: j, Amounts: base.Scale(disposed / initial), Lineage: lineage}
		if err := g.processInto(target, b, next); err != nil {
			return fmt.Errorf("dispose %s: %w", f.Name, err)
		}
	}
	return nil
}

func (g *Graph) disposalTarget(f *carbon.Feature) (domain.ProcessorID, float64, error) {
	switch f.Disposal.Kind {
	case carbon.DisposalForward:
		if _, err := g.node(f.Disposal.Target); err != nil {
			return domain.NoProcessor, 0, fmt.Errorf("dispose %s: %w", f.Name, err)
		}
		return f.Disposal.Target, 1, nil
	case carbon.DisposalFraction:
		if !g.disposal.Valid() {
			return domain.NoProcessor, 0, fmt.Errorf("dispose %s: no default disposal line", f.Name)
		}
		return g.disposal, f.Disposal.Fraction, nil
	default:
		return domain.NoProcessor, 0, nil
	}
}
