package graph

import (
	"fmt"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
)

// Relation is the elemental relation from one node to another.
type Relation int

const (
	RelNone Relation = iota
	RelSame
	RelGenerates
	RelControls
	RelGeneratedBy
	RelControlledBy
)

// Graph is an immutable node set with its detected interactions and a
// relation cache keyed by node index. Reclassifying nodes always produces a
// new Graph so the cache can never go stale.
type Graph struct {
	Nodes        []Node
	DayMaster    chart.Stem
	Month        chart.Branch
	Interactions Interactions

	// Transmutations lists the stem combinations that reclassified nodes.
	Transmutations []Combination

	relations [][]Relation
	tenGods   []int
}

// New builds a Graph over nodes, detecting interactions and filling the
// relation cache. nodes is copied.
func New(nodes []Node, dayMaster chart.Stem, month chart.Branch, cfg *config.Config) *Graph {
	g := &Graph{
		Nodes:     append([]Node(nil), nodes...),
		DayMaster: dayMaster,
		Month:     month,
	}
	g.Interactions = DetectInteractions(g.Nodes, month, cfg)
	g.buildRelations()
	return g
}

// Build runs the node builder on c and returns the resulting Graph, with
// combination transmutation applied when enabled. Geo modifiers are applied
// last, so a transmuted stem is scaled by its new element.
func Build(c chart.Chart, cfg *config.Config, geo GeoModifiers) *Graph {
	g := New(BuildNodes(c, cfg), c.DayMaster(), c.MonthBranch(), cfg)
	if cfg.Interactions.Transmutation {
		g = g.Transmute(cfg)
	}
	if len(geo) == 0 {
		return g
	}
	out := New(ApplyGeo(g.Nodes, geo), g.DayMaster, g.Month, cfg)
	out.Transmutations = g.Transmutations
	return out
}

func (g *Graph) buildRelations() {
	n := len(g.Nodes)
	g.relations = make([][]Relation, n)
	g.tenGods = make([]int, n)
	dm := g.DayMaster.Element()
	for i := range g.Nodes {
		g.relations[i] = make([]Relation, n)
		for j := range g.Nodes {
			if i != j {
				g.relations[i][j] = relationOf(g.Nodes[i].Element, g.Nodes[j].Element)
			}
		}
		g.tenGods[i] = g.Nodes[i].Element.Offset(dm)
	}
}

func relationOf(a, b chart.Element) Relation {
	switch {
	case a == b:
		return RelSame
	case a.Generates() == b:
		return RelGenerates
	case a.Controls() == b:
		return RelControls
	case b.Generates() == a:
		return RelGeneratedBy
	default:
		return RelControlledBy
	}
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.Nodes) }

// Relation returns the cached elemental relation from node i to node j.
func (g *Graph) Relation(i, j int) Relation { return g.relations[i][j] }

// TenGodOffset returns the cached cyclic offset of node i's element from the
// day master's element.
func (g *Graph) TenGodOffset(i int) int { return g.tenGods[i] }

// Initial returns the initial energy vector in node order.
func (g *Graph) Initial() []float64 {
	out := make([]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Initial
	}
	return out
}

// Index returns the position of the node with the given ID, or -1.
func (g *Graph) Index(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// DayMasterIndex returns the index of the day stem node.
func (g *Graph) DayMasterIndex() int {
	return g.Index(NodeID(chart.Day, RoleStem))
}

// Distance returns the pillar distance between nodes i and j. Luck and
// annual pillars sit at distance 1 from everything.
func (g *Graph) Distance(i, j int) int {
	a, b := g.Nodes[i].Position, g.Nodes[j].Position
	if a == b {
		return 0
	}
	if a.Dynamic() || b.Dynamic() {
		return 1
	}
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

// Transmute applies combination transmutation: a natal, adjacent, non-jealous
// stem combination whose element matches the month branch reclassifies both
// stems into that element, except the day master which never changes. It
// returns g unchanged when nothing transmutes, otherwise a new Graph with
// interactions and relation cache rebuilt.
func (g *Graph) Transmute(cfg *config.Config) *Graph {
	monthEl := g.Month.Element()
	dmIdx := g.DayMasterIndex()

	var fired []Combination
	nodes := append([]Node(nil), g.Nodes...)
	for _, c := range g.Interactions.Combinations {
		if c.Kind != StemCombination || c.Jealous() || c.Element != monthEl {
			continue
		}
		a, b := c.Nodes[0], c.Nodes[1]
		if nodes[a].Dynamic() || nodes[b].Dynamic() || g.Distance(a, b) != 1 {
			continue
		}
		changed := false
		for _, idx := range c.Nodes {
			if idx == dmIdx || nodes[idx].Element == c.Element {
				continue
			}
			nodes[idx].Element = c.Element
			nodes[idx].Transmuted = true
			changed = true
		}
		if changed {
			fired = append(fired, c)
		}
	}
	if len(fired) == 0 {
		return g
	}

	out := New(nodes, g.DayMaster, g.Month, cfg)
	out.Transmutations = append(append([]Combination(nil), g.Transmutations...), fired...)
	return out
}

// Triggers returns the structural events of the graph: transmutations first,
// then the detected interactions.
func (g *Graph) Triggers() []string {
	var out []string
	for _, c := range g.Transmutations {
		out = append(out, fmt.Sprintf("%s: %s -> %s", constants.TriggerTransmutation, joinIDs(g.Nodes, c.Nodes), c.Element))
	}
	return append(out, g.Interactions.Triggers(g.Nodes)...)
}
