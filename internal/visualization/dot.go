// Package visualization renders an analysed energy graph in various output formats.
package visualization

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/ranking"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// DefaultMinWeight hides edges too weak to matter in a drawing.
const DefaultMinWeight = 0.01

var errNoTrace = errors.New("nothing to render: trace is empty")

// elementColors maps elements to DOT fill colors.
var elementColors = map[chart.Element]string{
	chart.Wood:  "mediumseagreen",
	chart.Fire:  "tomato",
	chart.Earth: "goldenrod",
	chart.Metal: "lightgray",
	chart.Water: "steelblue",
}

// edgeStyles maps edge kinds to DOT styles.
var edgeStyles = map[string]string{
	"generates": "solid",
	"controls":  "dashed",
}

// Node is one graph node in the JSON rendering.
type Node struct {
	ID         string             `json:"id"`
	Symbol     string             `json:"symbol"`
	Element    string             `json:"element"`
	TenGod     string             `json:"ten_god"`
	Initial    float64            `json:"initial"`
	Final      float64            `json:"final"`
	Influence  float64            `json:"influence"`
	DayMaster  bool               `json:"day_master,omitempty"`
	Transmuted bool               `json:"transmuted,omitempty"`
	Hidden     []graph.HiddenStem `json:"hidden,omitempty"`
}

// Edge is one nonzero transfer matrix entry.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`
}

// Graph is the JSON rendering of a trace.
type Graph struct {
	Chart     string      `json:"chart"`
	Strategy  string      `json:"strategy"`
	Rounds    int         `json:"rounds"`
	Nodes     []Node      `json:"nodes"`
	Edges     []Edge      `json:"edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
	Steps     [][]float64 `json:"steps,omitempty"`
}

// CollectEdges lists the matrix entries with |weight| ≥ minWeight in row
// order.
func CollectEdges(t *analysis.Trace, minWeight float64) []Edge {
	g, m := t.Graph, t.Matrix
	var out []Edge
	for i := 0; i < m.Len(); i++ {
		for j := 0; j < m.Len(); j++ {
			w := m.At(i, j)
			if i == j || w == 0 || math.Abs(w) < minWeight {
				continue
			}
			kind := "generates"
			if w < 0 {
				kind = "controls"
			}
			out = append(out, Edge{
				Source: g.Nodes[i].ID,
				Target: g.Nodes[j].ID,
				Kind:   kind,
				Weight: w,
			})
		}
	}
	return out
}

// RenderJSON builds the JSON graph for t. Per-round energies are included
// when the trace recorded them.
func RenderJSON(t *analysis.Trace, minWeight float64) (*Graph, error) {
	if t == nil || t.Graph == nil || t.Matrix == nil {
		return nil, errNoTrace
	}
	g := t.Graph
	dm := g.DayMasterIndex()
	influence := ranking.PageRank(t.Matrix, ranking.DefaultPageRankConfig())

	nodes := make([]Node, 0, g.Len())
	for i, n := range g.Nodes {
		nodes = append(nodes, Node{
			ID:         n.ID,
			Symbol:     n.Symbol,
			Element:    n.Element.String(),
			TenGod:     constants.TenGodAt(g.TenGodOffset(i)),
			Initial:    n.Initial,
			Final:      finalAt(t, i),
			Influence:  influence[i],
			DayMaster:  i == dm,
			Transmuted: n.Transmuted,
			Hidden:     n.Hidden,
		})
	}

	edges := CollectEdges(t, minWeight)
	out := &Graph{
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		Rounds:    t.Run.Rounds,
	}
	if t.Report != nil {
		out.Chart = t.Report.Chart
		out.Strategy = t.Report.Strategy
	}
	for _, s := range t.Run.Steps {
		out.Steps = append(out.Steps, s.Energy)
	}
	return out, nil
}

// RenderDOT produces a Graphviz DOT representation of t.
func RenderDOT(t *analysis.Trace, minWeight float64) (string, error) {
	if t == nil || t.Graph == nil || t.Matrix == nil {
		return "", errNoTrace
	}
	g := t.Graph
	dm := g.DayMasterIndex()
	influence := ranking.PageRank(t.Matrix, ranking.DefaultPageRankConfig())

	var b strings.Builder
	b.WriteString("digraph qiflow {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	if t.Report != nil {
		b.WriteString(fmt.Sprintf("  label=%q;\n", t.Report.Chart))
	}
	b.WriteString("\n")

	for i, n := range g.Nodes {
		color := elementColors[n.Element]
		if color == "" {
			color = "white"
		}
		label := fmt.Sprintf("%s %s\n%s %.2f -> %.2f", n.ID, n.Symbol, n.Element, n.Initial, finalAt(t, i))
		extra := ""
		if i == dm {
			extra = ", peripheries=2"
		}
		// Border width follows the node's share of transfer flow.
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q, tooltip=%q, penwidth=%.2f%s];\n",
			n.ID, label, color, constants.TenGodAt(g.TenGodOffset(i)), 1+2*influence[i], extra))
	}
	b.WriteString("\n")

	for _, e := range CollectEdges(t, minWeight) {
		b.WriteString(fmt.Sprintf("  %q -> %q [label=\"%.3f\", style=%s];\n",
			e.Source, e.Target, e.Weight, edgeStyles[e.Kind]))
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// Render renders t in the given format. JSON output is indented.
func Render(t *analysis.Trace, format Format, minWeight float64) (string, error) {
	switch format {
	case FormatDOT:
		return RenderDOT(t, minWeight)
	case FormatJSON:
		g, err := RenderJSON(t, minWeight)
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal graph: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported format %q (use 'dot' or 'json')", format)
	}
}

func finalAt(t *analysis.Trace, i int) float64 {
	if i < len(t.Run.Final) {
		return t.Run.Final[i]
	}
	return 0
}
