// Package graph builds the typed node set of an elemental energy graph from a
// parsed chart: node identities, initial energies, hidden-stem splits, the
// structural interactions between pillars and the relation cache the matrix
// and scoring stages read from.
package graph

import (
	"math"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
)

// Role distinguishes the stem and branch half of a pillar.
type Role int

const (
	RoleStem Role = iota
	RoleBranch
)

// String returns "stem" or "branch".
func (r Role) String() string {
	if r == RoleStem {
		return "stem"
	}
	return "branch"
}

// HiddenStem is one component of a branch's hidden composition.
type HiddenStem struct {
	Stem  chart.Stem `json:"stem"`
	Ratio float64    `json:"ratio"`
}

// Node is one stem or branch of one pillar.
type Node struct {
	ID       string         `json:"id"`
	Position chart.Position `json:"-"`
	Role     Role           `json:"-"`

	// Symbol is the stem or branch character.
	Symbol string `json:"symbol"`

	Stem   chart.Stem   `json:"-"` // valid for stem nodes
	Branch chart.Branch `json:"-"` // valid for branch nodes

	Element chart.Element `json:"-"`
	Initial float64       `json:"initial"`

	// Hidden is the branch's hidden-stem split with ratios summing to 1.
	// Empty for stem nodes.
	Hidden []HiddenStem `json:"hidden,omitempty"`

	// Transmuted is set when a stem combination reclassified the element.
	Transmuted bool `json:"transmuted,omitempty"`
}

// Dynamic reports whether the node comes from a luck or annual pillar.
func (n Node) Dynamic() bool { return n.Position.Dynamic() }

// NodeID returns the identifier of the node at pos with the given role.
func NodeID(pos chart.Position, role Role) string {
	return pos.String() + "." + role.String()
}

// GeoModifiers scales initial energy per element.
type GeoModifiers map[chart.Element]float64

// factor returns the multiplier for e. Missing elements are 1; negative or
// non-finite modifiers are 0.
func (g GeoModifiers) factor(e chart.Element) float64 {
	v, ok := g[e]
	if !ok {
		return 1
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ApplyGeo returns a copy of nodes with each initial energy scaled by the
// modifier of the node's current element.
func ApplyGeo(nodes []Node, geo GeoModifiers) []Node {
	out := append([]Node(nil), nodes...)
	if len(geo) == 0 {
		return out
	}
	for i := range out {
		out[i].Initial *= geo.factor(out[i].Element)
	}
	return out
}

// BuildNodes returns the chart's nodes in documented order (year, month, day,
// hour, then luck and annual when present; stem before branch) with their
// initial energies. It is a pure function of its inputs.
func BuildNodes(c chart.Chart, cfg *config.Config) []Node {
	pillars := c.Pillars()
	month := c.MonthBranch()
	p := cfg.Physics
	s := cfg.Structure

	stemElements := make(map[chart.Element]bool, len(pillars))
	for _, pp := range pillars {
		stemElements[pp.Pillar.Stem.Element()] = true
	}

	// root[e] sums hidden ratios of element e across every branch.
	var root [chart.NumElements]float64
	for _, pp := range pillars {
		for _, h := range hiddenSplit(pp.Pillar.Branch, p.HiddenStemRatios) {
			root[h.Stem.Element()] += h.Ratio
		}
	}

	void := chart.VoidBranches(c.Natal[chart.Day])

	nodes := make([]Node, 0, 2*len(pillars))
	for _, pp := range pillars {
		pos, pil := pp.Position, pp.Pillar
		base := p.BaseEnergy * p.PillarWeight(pos)

		stemEl := pil.Stem.Element()
		stemEnergy := base * p.RoleWeight(true) * p.SeasonalWeight(chart.StateIn(stemEl, month))
		stemEnergy *= 1 + s.RootingBonus*math.Min(root[stemEl], s.RootCap)
		if sitsOnSelf(pil) {
			stemEnergy *= 1 + s.SelfSittingBonus
		}
		nodes = append(nodes, Node{
			ID:       NodeID(pos, RoleStem),
			Position: pos,
			Role:     RoleStem,
			Symbol:   pil.Stem.String(),
			Stem:     pil.Stem,
			Branch:   -1,
			Element:  stemEl,
			Initial:  stemEnergy,
		})

		branchEl := pil.Branch.Element()
		branchEnergy := base * p.RoleWeight(false) * p.SeasonalWeight(chart.StateIn(branchEl, month))
		hidden := hiddenSplit(pil.Branch, p.HiddenStemRatios)
		if stemElements[hidden[0].Stem.Element()] {
			branchEnergy *= 1 + s.ExposedBonus
		}
		if !pos.Dynamic() && (pil.Branch == void[0] || pil.Branch == void[1]) {
			branchEnergy *= 1 - s.VoidPenalty
		}
		nodes = append(nodes, Node{
			ID:       NodeID(pos, RoleBranch),
			Position: pos,
			Role:     RoleBranch,
			Symbol:   pil.Branch.String(),
			Stem:     -1,
			Branch:   pil.Branch,
			Element:  branchEl,
			Initial:  branchEnergy,
			Hidden:   hidden,
		})
	}
	return nodes
}

// sitsOnSelf reports whether the pillar's branch hides a stem of the pillar
// stem's element.
func sitsOnSelf(p chart.Pillar) bool {
	for _, h := range p.Branch.HiddenStems() {
		if h.Element() == p.Stem.Element() {
			return true
		}
	}
	return false
}

// hiddenSplit returns the branch's hidden stems with the configured ratios
// renormalised over the stems actually present.
func hiddenSplit(b chart.Branch, ratios []float64) []HiddenStem {
	stems := b.HiddenStems()
	out := make([]HiddenStem, len(stems))
	var total float64
	for i := range stems {
		if i < len(ratios) {
			total += ratios[i]
		}
	}
	for i, st := range stems {
		out[i].Stem = st
		switch {
		case total > 0 && i < len(ratios):
			out[i].Ratio = ratios[i] / total
		case total == 0:
			out[i].Ratio = 1 / float64(len(stems))
		}
	}
	return out
}
