package processor

import (
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Batch is one quantity of material entering a production line.
type Batch struct {
	// Index is the time table index the batch enters at.
	Index   int
	Amounts domain.AmountMap
	// Lineage is the status history of the unit the batch was disposed from; empty for harvested wood.
	Lineage []domain.Status
}

// ProcessCategory routes a harvested batch through the line bound to category.
func (g *Graph) ProcessCategory(category string, b Batch) (carbon.StatusMap, error) {
	root, err := g.RootFor(category)
	if err != nil {
		return nil, err
	}
	return g.Process(root, b)
}

// Process routes a batch through the production line starting at root and
// returns the units it created, grouped by status.
func (g *Graph) Process(root domain.ProcessorID, b Batch) (carbon.StatusMap, error) {
	out := carbon.StatusMap{}
	if err := g.processInto(root, b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Graph) processInto(root domain.ProcessorID, b Batch, out carbon.StatusMap) error {
	t := &traversal{
		g:         g,
		index:     b.Index,
		lineage:   b.Lineage,
		out:       out,
		diverting: map[domain.ProcessorID]bool{root: true},
	}
	return t.visit(root, b.Amounts, false)
}

type traversal struct {
	g         *Graph
	index     int
	lineage   []domain.Status
	out       carbon.StatusMap
	diverting map[domain.ProcessorID]bool
}

// visit runs one node. In loss context the yield is not applied again so the
// loss processor never routes into itself.
func (t *traversal) visit(id domain.ProcessorID, in domain.AmountMap, loss bool) error {
	n, err := t.g.node(id)
	if err != nil {
		return err
	}
	amounts := in.Clone()
	if n.EmissionsPerMg != 0 {
		amounts[domain.ElementEmissionsCO2Eq] += n.EmissionsPerMg * amounts.Get(domain.ElementBiomass)
	}

	processed := amounts
	if !loss && n.Yield < 1 {
		residue := amounts.Scale(1 - n.Yield)
		if residue.Carbon() > carbon.Epsilon {
			if !t.g.loss.Valid() {
				return fmt.Errorf("processor %q: %w", n.Name, ErrNoLossProcessor)
			}
			if err := t.visit(t.g.loss, residue, true); err != nil {
				return err
			}
		}
		processed = amounts.Scale(n.Yield)
	}
	if processed.Carbon() <= carbon.Epsilon {
		return nil
	}

	switch k := n.Kind.(type) {
	case Split:
		for _, child := range n.Children {
			c, err := t.g.node(child)
			if err != nil {
				return err
			}
			if err := t.visit(child, processed.Scale(c.Intake), loss); err != nil {
				return err
			}
		}
	case EndUse:
		return t.emit(n, t.g.features[n.ID][0], processed, t.endUseStatus(loss))
	case Landfill:
		features := t.g.features[n.ID]
		degradable := processed.Scale(k.Docf)
		if degradable.Carbon() > carbon.Epsilon {
			if err := t.emit(n, features[0], degradable, domain.StatusLandfillDegradable); err != nil {
				return err
			}
		}
		inert := processed.Scale(1 - k.Docf)
		if inert.Carbon() > carbon.Epsilon {
			return t.emit(n, features[1], inert, domain.StatusLandfillNonDegradable)
		}
	case LeftInForest:
		return t.emit(n, t.g.features[n.ID][0], processed, domain.StatusLeftInForest)
	case Diversion:
		if _, err := t.g.node(k.Target); err != nil {
			return fmt.Errorf("processor %q diversion: %w", n.Name, err)
		}
		if t.diverting[k.Target] {
			return fmt.Errorf("processor %q diverts to %d: %w", n.Name, k.Target, ErrDiversionCycle)
		}
		t.diverting[k.Target] = true
		defer delete(t.diverting, k.Target)
		return t.visit(k.Target, processed, loss)
	default:
		return fmt.Errorf("processor %q has unsupported kind %s", n.Name, KindName(n.Kind))
	}
	return nil
}

func (t *traversal) endUseStatus(loss bool) domain.Status {
	recycled := len(t.lineage) > 0
	switch {
	case loss && recycled:
		return domain.StatusRecycledLosses
	case loss:
		return domain.StatusIndustrialLosses
	case recycled:
		return domain.StatusRecycled
	default:
		return domain.StatusEndUseWoodProduct
	}
}

func (t *traversal) emit(n *Node, f *carbon.Feature, amounts domain.AmountMap, status domain.Status) error {
	history := make([]domain.Status, 0, len(t.lineage)+1)
	history = append(history, t.lineage...)
	history = append(history, status)
	u := carbon.NewUnit(f, t.index, amounts, history)
	if status == domain.StatusEndUseWoodProduct {
		v, err := t.g.RoundwoodVolume(n.ID, amounts.Get(domain.ElementVolume))
		if err != nil {
			return err
		}
		u.SetRoundwoodVolume(v)
	}
	t.out.Add(u)
	return nil
}
