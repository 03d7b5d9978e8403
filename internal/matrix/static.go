package matrix

import (
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/graph"
)

// StaticPrior is the physics prior: five-element base coefficients scaled by
// proximity and role coupling, then modulated by combinations, conflicts,
// vault states and phase gates, in that order.
type StaticPrior struct{}

// Name implements Strategy.
func (StaticPrior) Name() string { return "static" }

// Compute implements Strategy.
func (StaticPrior) Compute(g *graph.Graph, cfg *config.Config) *Matrix {
	ix := cfg.Interactions
	n := g.Len()
	m := New(n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			var base float64
			switch g.Relation(i, j) {
			case graph.RelGenerates:
				base = ix.BaseGeneration
			case graph.RelControls:
				base = -ix.BaseControl
			case graph.RelSame:
				base = ix.BaseSame
			}
			m.W[i][j] = base * reach(g, i, j, ix)
		}
	}

	applyCombinations(m, g, ix)
	applyConflicts(m, g, ix)
	applyVaults(m, g, ix)
	applyGates(m, g, cfg.Flow.PhaseChange)
	return m
}

// reach is the proximity and role coupling factor between two nodes.
func reach(g *graph.Graph, i, j int, ix config.InteractionsConfig) float64 {
	d := g.Distance(i, j)
	f := ix.ProximityAt(d)
	if g.Nodes[i].Role != g.Nodes[j].Role && d > 0 {
		f *= ix.CrossRoleCoupling
	}
	return f
}

func applyCombinations(m *Matrix, g *graph.Graph, ix config.InteractionsConfig) {
	for _, c := range g.Interactions.Combinations {
		var bonus float64
		switch c.Kind {
		case graph.StemCombination:
			bonus = ix.StemCombinationBonus
		case graph.BranchCombination:
			bonus = ix.BranchCombinationBonus
		case graph.TrineCombination:
			bonus = ix.TrineBonus
			if !c.Full {
				bonus *= 0.5
			}
		}
		if c.Jealous() {
			bonus *= ix.JealousyDamping
		}
		for _, a := range c.Nodes {
			for _, b := range c.Nodes {
				if a == b || (c.Kind == graph.TrineCombination && g.Nodes[a].Branch == g.Nodes[b].Branch) {
					continue
				}
				w := m.W[a][b]
				switch {
				case w > 0:
					m.W[a][b] = w * (1 + bonus)
				case w < 0:
					m.W[a][b] = w * (1 - bonus)
				default:
					m.W[a][b] = bonus * ix.BaseGeneration * 0.5 * reach(g, a, b, ix)
				}
			}
		}
	}
}

func applyConflicts(m *Matrix, g *graph.Graph, ix config.InteractionsConfig) {
	for _, c := range g.Interactions.Conflicts {
		var penalty float64
		switch c.Kind {
		case graph.Clash:
			penalty = ix.ClashPenalty
		case graph.Punishment:
			penalty = ix.PunishmentPenalty
		case graph.Harm:
			penalty = ix.HarmPenalty
		}
		p := penalty * ix.PenaltyDamping
		for _, e := range [2][2]int{{c.A, c.B}, {c.B, c.A}} {
			a, b := e[0], e[1]
			if m.W[a][b] > 0 {
				m.W[a][b] *= 1 - p
			}
			m.W[a][b] -= p * ix.BaseControl * reach(g, a, b, ix)
		}
	}
}

func applyVaults(m *Matrix, g *graph.Graph, ix config.InteractionsConfig) {
	for _, v := range g.Interactions.Vaults {
		var f float64
		switch v.State {
		case graph.VaultOpened:
			f = ix.VaultOpenAmplifier
		case graph.VaultBroken:
			f = 1 - ix.VaultBreakPenalty
		default:
			continue
		}
		for j := range m.W[v.Node] {
			m.W[v.Node][j] *= f
		}
	}
}

func applyGates(m *Matrix, g *graph.Graph, pc config.PhaseChangeConfig) {
	for _, gate := range g.Interactions.Gates {
		damping := gate.Damping(pc)
		for i, a := range g.Nodes {
			if a.Element != gate.From {
				continue
			}
			for j, b := range g.Nodes {
				if b.Element == gate.To && m.W[i][j] > 0 {
					m.W[i][j] *= damping
				}
			}
		}
	}
}
