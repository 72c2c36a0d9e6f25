package config

import (
	"fmt"

	"carboncore/internal/carbon"
	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

// ids assigns arena ids in declaration order, which matches the order the
// builder adds nodes, and checks every name reference.
func (g *Graph) ids() (map[string]domain.ProcessorID, error) {
	ids := make(map[string]domain.ProcessorID, len(g.Processors))
	for i, p := range g.Processors {
		if _, dup := ids[p.Name]; dup {
			return nil, fmt.Errorf("processor %q declared twice", p.Name)
		}
		if p.Parent != "" {
			if _, ok := ids[p.Parent]; !ok {
				return nil, fmt.Errorf("processor %q: parent %q must be declared before it", p.Name, p.Parent)
			}
		}
		ids[p.Name] = domain.ProcessorID(i)
	}
	ref := func(what, name string) error {
		if _, ok := ids[name]; !ok {
			return fmt.Errorf("%s references unknown processor %q", what, name)
		}
		return nil
	}
	for _, p := range g.Processors {
		if p.Target != "" {
			if err := ref(fmt.Sprintf("processor %q target", p.Name), p.Target); err != nil {
				return nil, err
			}
		}
		if p.Disposal.Target != "" {
			if err := ref(fmt.Sprintf("processor %q disposal", p.Name), p.Disposal.Target); err != nil {
				return nil, err
			}
		}
	}
	if g.Loss != "" {
		if err := ref("loss", g.Loss); err != nil {
			return nil, err
		}
	}
	if g.DefaultDisposal != "" {
		if err := ref("default_disposal", g.DefaultDisposal); err != nil {
			return nil, err
		}
	}
	for category, root := range g.Bindings {
		if err := ref(fmt.Sprintf("binding %q", category), root); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// BuildGraph builds the declared graph, or the reference graph when none is declared.
func (f *File) BuildGraph() (*processor.Graph, error) {
	if f.Graph == nil {
		return processor.ReferenceGraph()
	}
	return f.Graph.Build()
}

// Build assembles the processor graph.
func (g *Graph) Build() (*processor.Graph, error) {
	ids, err := g.ids()
	if err != nil {
		return nil, err
	}
	b := processor.NewBuilder()
	for _, p := range g.Processors {
		kind := p.kind(ids)
		var opts []processor.NodeOption
		if p.Yield != nil {
			opts = append(opts, processor.WithYield(*p.Yield))
		}
		if p.Emissions > 0 {
			opts = append(opts, processor.WithEmissions(p.Emissions))
		}
		if p.Parent == "" {
			b.AddRoot(p.Name, kind, opts...)
		} else {
			b.AddChild(ids[p.Parent], p.Name, p.Intake, kind, opts...)
		}
	}
	if g.Loss != "" {
		b.SetLoss(ids[g.Loss])
	}
	if g.DefaultDisposal != "" {
		b.SetDefaultDisposal(ids[g.DefaultDisposal])
	}
	for category, root := range g.Bindings {
		b.Bind(category, ids[root])
	}
	graph, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return graph, nil
}

func (p Processor) kind(ids map[string]domain.ProcessorID) processor.Kind {
	switch p.Kind {
	case "split":
		return processor.Split{}
	case "end_use":
		disposal := carbon.Disposal{Kind: carbon.DisposalNone}
		switch p.Disposal.Kind {
		case "fraction":
			disposal = carbon.Disposal{Kind: carbon.DisposalFraction, Fraction: p.Disposal.Fraction}
		case "forward":
			disposal = carbon.Disposal{Kind: carbon.DisposalForward, Target: ids[p.Disposal.Target]}
		}
		useClass := domain.UseClass(p.UseClass)
		if useClass == "" {
			useClass = domain.UseClassNone
		}
		return processor.EndUse{
			UseClass:             useClass,
			Lifetime:             p.Lifetime,
			Disposal:             disposal,
			EnergySubstitution:   p.EnergySubstitution,
			MaterialSubstitution: p.MaterialSubstitution,
		}
	case "landfill":
		return processor.Landfill{Docf: p.Docf, Lifetime: p.Lifetime}
	case "left_in_forest":
		return processor.LeftInForest{Lifetime: p.Lifetime}
	case "diversion":
		return processor.Diversion{Target: ids[p.Target]}
	default:
		return nil
	}
}
