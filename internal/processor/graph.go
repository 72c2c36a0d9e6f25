package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"carboncore/internal/carbon"
	"carboncore/pkg/domain"
)

// Node is one processing step in the graph arena. References to other nodes
// are plain ids.
type Node struct {
	ID   domain.ProcessorID
	Name string
	// Intake is the fraction of the parent's processed amounts routed here. Roots have intake 1.
	Intake float64
	// Yield is the fraction of incoming amounts kept; the complement goes to the loss processor.
	Yield float64
	// EmissionsPerMg is the manufacturing emission (Mg CO2 eq.) per Mg of incoming biomass.
	EmissionsPerMg float64
	Kind           Kind
	Parent         domain.ProcessorID
	Children       []domain.ProcessorID
}

// IsRoot reports whether the node starts a production line.
func (n Node) IsRoot() bool { return !n.Parent.Valid() }

// Graph is an immutable, built processor graph.
type Graph struct {
	nodes    []Node
	features [][]*carbon.Feature
	bindings map[string]domain.ProcessorID
	loss     domain.ProcessorID
	disposal domain.ProcessorID
}

// ErrUnknownProcessor is returned when routing references a processor that does not exist.
type ErrUnknownProcessor struct {
	ID domain.ProcessorID
}

func (e ErrUnknownProcessor) Error() string {
	return fmt.Sprintf("processor %d not found", e.ID)
}

// ErrUnboundCategory is returned when a log category has no production line.
type ErrUnboundCategory struct {
	Category string
}

func (e ErrUnboundCategory) Error() string {
	return fmt.Sprintf("log category %q is not bound to a production line", e.Category)
}

var (
	// ErrNoLossProcessor is returned when a node with yield < 1 is traversed without a loss processor.
	ErrNoLossProcessor = errors.New("processor graph has no loss processor")
	// ErrDiversionCycle is returned when diversions loop back onto a line being processed.
	ErrDiversionCycle = errors.New("processor diversion cycle")
)

// Node returns the node with the given id.
func (g *Graph) Node(id domain.ProcessorID) (Node, bool) {
	if !id.Valid() || int(id) >= len(g.nodes) {
		return Node{}, false
	}
	n := g.nodes[id]
	n.Children = append([]domain.ProcessorID(nil), n.Children...)
	return n, true
}

func (g *Graph) node(id domain.ProcessorID) (*Node, error) {
	if !id.Valid() || int(id) >= len(g.nodes) {
		return nil, ErrUnknownProcessor{ID: id}
	}
	return &g.nodes[id], nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns a copy of every node in id order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i := range g.nodes {
		out[i], _ = g.Node(domain.ProcessorID(i))
	}
	return out
}

// Roots returns the ids of every production line root.
func (g *Graph) Roots() []domain.ProcessorID {
	var out []domain.ProcessorID
	for _, n := range g.nodes {
		if n.IsRoot() {
			out = append(out, n.ID)
		}
	}
	return out
}

// Features returns the carbon unit features a terminal node creates units with.
// Landfill nodes return the degradable feature first.
func (g *Graph) Features(id domain.ProcessorID) []*carbon.Feature {
	if !id.Valid() || int(id) >= len(g.features) {
		return nil
	}
	return append([]*carbon.Feature(nil), g.features[id]...)
}

// Categories returns the bound log categories, sorted.
func (g *Graph) Categories() []string {
	out := make([]string, 0, len(g.bindings))
	for c := range g.bindings {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RootFor returns the production line bound to a log category.
func (g *Graph) RootFor(category string) (domain.ProcessorID, error) {
	id, ok := g.bindings[category]
	if !ok {
		return domain.NoProcessor, ErrUnboundCategory{Category: category}
	}
	return id, nil
}

// Loss returns the loss processor, NoProcessor when unset.
func (g *Graph) Loss() domain.ProcessorID { return g.loss }

// DefaultDisposal returns the line receiving fraction-disposed carbon, NoProcessor when unset.
func (g *Graph) DefaultDisposal() domain.ProcessorID { return g.disposal }

// LineageYield returns the product of yields from id up to its root.
func (g *Graph) LineageYield(id domain.ProcessorID) (float64, error) {
	y := 1.0
	for id.Valid() {
		n, err := g.node(id)
		if err != nil {
			return 0, err
		}
		y *= n.Yield
		id = n.Parent
	}
	return y, nil
}

// RoundwoodVolume reconstructs the roundwood volume needed to produce volume
// at node id by dividing by each yield on the way up to the root.
func (g *Graph) RoundwoodVolume(id domain.ProcessorID, volume float64) (float64, error) {
	y, err := g.LineageYield(id)
	if err != nil {
		return 0, err
	}
	if y <= 0 {
		return 0, fmt.Errorf("processor %d: non-positive cumulative yield", id)
	}
	return volume / y, nil
}

// NodeOption tweaks a node while building.
type NodeOption func(*Node)

// WithYield sets the node yield fraction.
func WithYield(y float64) NodeOption {
	return func(n *Node) { n.Yield = y }
}

// WithEmissions sets the manufacturing emissions per Mg of incoming biomass.
func WithEmissions(perMg float64) NodeOption {
	return func(n *Node) { n.EmissionsPerMg = perMg }
}

// Builder assembles a Graph. Structural mistakes are accumulated and reported by Build.
type Builder struct {
	nodes    []Node
	bindings map[string]domain.ProcessorID
	loss     domain.ProcessorID
	disposal domain.ProcessorID
	errs     []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		bindings: make(map[string]domain.ProcessorID),
		loss:     domain.NoProcessor,
		disposal: domain.NoProcessor,
	}
}

func (b *Builder) add(parent domain.ProcessorID, name string, intake float64, kind Kind, opts []NodeOption) domain.ProcessorID {
	id := domain.ProcessorID(len(b.nodes))
	n := Node{ID: id, Name: name, Intake: intake, Yield: 1, Kind: kind, Parent: parent}
	for _, opt := range opts {
		opt(&n)
	}
	if kind == nil {
		b.errs = append(b.errs, fmt.Errorf("processor %q: kind is required", name))
	}
	b.nodes = append(b.nodes, n)
	return id
}

// AddRoot adds a production line root.
func (b *Builder) AddRoot(name string, kind Kind, opts ...NodeOption) domain.ProcessorID {
	return b.add(domain.NoProcessor, name, 1, kind, opts)
}

// AddChild adds a node under parent, which must be a Split node.
func (b *Builder) AddChild(parent domain.ProcessorID, name string, intake float64, kind Kind, opts ...NodeOption) domain.ProcessorID {
	if !b.known(parent) {
		b.errs = append(b.errs, fmt.Errorf("processor %q: %w", name, ErrUnknownProcessor{ID: parent}))
		return b.add(domain.NoProcessor, name, intake, kind, opts)
	}
	if _, ok := b.nodes[parent].Kind.(Split); !ok {
		b.errs = append(b.errs, fmt.Errorf("processor %q: parent %q is %s, only split nodes have children", name, b.nodes[parent].Name, KindName(b.nodes[parent].Kind)))
	}
	id := b.add(parent, name, intake, kind, opts)
	b.nodes[parent].Children = append(b.nodes[parent].Children, id)
	return id
}

// SetLoss designates the terminal end-use node receiving industrial losses.
func (b *Builder) SetLoss(id domain.ProcessorID) *Builder {
	if !b.known(id) {
		b.errs = append(b.errs, fmt.Errorf("loss processor: %w", ErrUnknownProcessor{ID: id}))
	}
	b.loss = id
	return b
}

// SetDefaultDisposal designates the line receiving fraction-disposed carbon.
func (b *Builder) SetDefaultDisposal(id domain.ProcessorID) *Builder {
	if !b.known(id) {
		b.errs = append(b.errs, fmt.Errorf("default disposal: %w", ErrUnknownProcessor{ID: id}))
	}
	b.disposal = id
	return b
}

// Bind routes a log category to a production line root.
func (b *Builder) Bind(category string, root domain.ProcessorID) *Builder {
	switch {
	case category == "":
		b.errs = append(b.errs, errors.New("bind: category is required"))
	case !b.known(root):
		b.errs = append(b.errs, fmt.Errorf("bind %q: %w", category, ErrUnknownProcessor{ID: root}))
	case !b.nodes[root].IsRoot():
		b.errs = append(b.errs, fmt.Errorf("bind %q: processor %q is not a production line root", category, b.nodes[root].Name))
	default:
		b.bindings[category] = root
	}
	return b
}

func (b *Builder) known(id domain.ProcessorID) bool {
	return id.Valid() && int(id) < len(b.nodes)
}

// Build freezes the graph and creates one feature per terminal node.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	g := &Graph{
		nodes:    make([]Node, len(b.nodes)),
		features: make([][]*carbon.Feature, len(b.nodes)),
		bindings: make(map[string]domain.ProcessorID, len(b.bindings)),
		loss:     b.loss,
		disposal: b.disposal,
	}
	for i, n := range b.nodes {
		n.Children = append([]domain.ProcessorID(nil), n.Children...)
		g.nodes[i] = n
		g.features[i] = featuresFor(n)
	}
	for c, id := range b.bindings {
		g.bindings[c] = id
	}
	return g, nil
}

func featuresFor(n Node) []*carbon.Feature {
	switch k := n.Kind.(type) {
	case EndUse:
		return []*carbon.Feature{{
			Processor:            n.ID,
			Name:                 n.Name,
			Lifetime:             k.Lifetime,
			UseClass:             k.UseClass,
			Disposal:             k.Disposal,
			EnergySubstitution:   k.EnergySubstitution,
			MaterialSubstitution: k.MaterialSubstitution,
		}}
	case Landfill:
		return []*carbon.Feature{
			{Processor: n.ID, Name: n.Name + " (degradable)", Lifetime: k.Lifetime, UseClass: domain.UseClassNone, Disposal: carbon.Disposal{Kind: carbon.DisposalNone}},
			{Processor: n.ID, Name: n.Name + " (non-degradable)", Lifetime: math.Inf(1), UseClass: domain.UseClassNone, Disposal: carbon.Disposal{Kind: carbon.DisposalNone}},
		}
	case LeftInForest:
		return []*carbon.Feature{{Processor: n.ID, Name: n.Name, Lifetime: k.Lifetime, UseClass: domain.UseClassNone, Disposal: carbon.Disposal{Kind: carbon.DisposalNone}}}
	case Split, Diversion:
		return nil
	default:
		return nil
	}
}
