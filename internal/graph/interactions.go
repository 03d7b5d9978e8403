package graph

import (
	"fmt"
	"strings"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
)

// CombinationKind identifies which bonding rule produced a Combination.
type CombinationKind string

const (
	StemCombination   CombinationKind = "stem"
	BranchCombination CombinationKind = "branch"
	TrineCombination  CombinationKind = "trine"
)

// Combination is a bond between two or three nodes.
type Combination struct {
	Kind    CombinationKind
	Nodes   []int // node indices, ascending
	Element chart.Element

	// Rivals counts competing combinations sharing a member. Non-zero rivals
	// make the combination jealous.
	Rivals int

	// Full is set for a trine with all three members present.
	Full bool
}

// Jealous reports whether another combination competes for a member.
func (c Combination) Jealous() bool { return c.Rivals > 0 }

// ConflictKind identifies a destructive branch relation.
type ConflictKind string

const (
	Clash      ConflictKind = "clash"
	Punishment ConflictKind = "punishment"
	Harm       ConflictKind = "harm"
)

// Conflict is a clash, punishment or harm between two branch nodes.
type Conflict struct {
	Kind ConflictKind
	A, B int // node indices, A < B
}

// VaultState is the storage state of a vault branch.
type VaultState string

const (
	VaultSealed VaultState = "sealed"
	VaultOpened VaultState = "opened"
	VaultBroken VaultState = "broken"
)

// Vault describes one vault branch node.
type Vault struct {
	Node    int
	Element chart.Element // stored element

	// Energy is the stored energy measured against the alive threshold.
	Energy float64
	Alive  bool
	State  VaultState

	// Cause is the node index whose conflict opened or broke the vault, or -1.
	Cause int

	// Dynamic is set when a luck or annual node took part in the conflict.
	Dynamic bool
}

// PhaseGate damps generation edges from one element to the next in an
// extreme month.
type PhaseGate struct {
	From, To chart.Element
	Season   string // "hot" or "cold"
}

// Damping returns the configured multiplier for the gate's season.
func (g PhaseGate) Damping(pc config.PhaseChangeConfig) float64 {
	if g.Season == "cold" {
		return pc.FrozenWaterDamping
	}
	return pc.ScorchedEarthDamping
}

// Interactions is the ordered set of structural events detected on a node set.
type Interactions struct {
	Combinations []Combination
	Conflicts    []Conflict
	Vaults       []Vault
	Gates        []PhaseGate
}

// VaultAt returns the vault record for node i.
func (ix Interactions) VaultAt(i int) (Vault, bool) {
	for _, v := range ix.Vaults {
		if v.Node == i {
			return v, true
		}
	}
	return Vault{}, false
}

// DetectInteractions finds combinations, conflicts, vault states and phase
// gates among nodes. month is the natal month branch.
func DetectInteractions(nodes []Node, month chart.Branch, cfg *config.Config) Interactions {
	var ix Interactions

	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			switch {
			case a.Role == RoleStem && b.Role == RoleStem:
				if e, ok := chart.StemCombination(a.Stem, b.Stem); ok {
					ix.Combinations = append(ix.Combinations, Combination{Kind: StemCombination, Nodes: []int{i, j}, Element: e})
				}
			case a.Role == RoleBranch && b.Role == RoleBranch:
				if e, ok := chart.BranchCombination(a.Branch, b.Branch); ok {
					ix.Combinations = append(ix.Combinations, Combination{Kind: BranchCombination, Nodes: []int{i, j}, Element: e})
				}
				if chart.Clashes(a.Branch, b.Branch) {
					ix.Conflicts = append(ix.Conflicts, Conflict{Kind: Clash, A: i, B: j})
				}
				if chart.Punishes(a.Branch, b.Branch) {
					ix.Conflicts = append(ix.Conflicts, Conflict{Kind: Punishment, A: i, B: j})
				}
				if chart.Harms(a.Branch, b.Branch) {
					ix.Conflicts = append(ix.Conflicts, Conflict{Kind: Harm, A: i, B: j})
				}
			}
		}
	}

	ix.Combinations = append(ix.Combinations, detectTrines(nodes)...)
	markRivals(ix.Combinations)
	ix.Vaults = detectVaults(nodes, ix.Conflicts, cfg)
	ix.Gates = phaseGates(month, cfg.Flow.PhaseChange)
	return ix
}

// detectTrines returns one combination per trine with at least two distinct
// members present.
func detectTrines(nodes []Node) []Combination {
	var out []Combination
	for _, tr := range chart.Trines() {
		var members []int
		seen := make(map[chart.Branch]bool, 3)
		for i, n := range nodes {
			if n.Role != RoleBranch || !tr.Contains(n.Branch) {
				continue
			}
			members = append(members, i)
			seen[n.Branch] = true
		}
		if len(seen) < 2 {
			continue
		}
		out = append(out, Combination{Kind: TrineCombination, Nodes: members, Element: tr.Element, Full: len(seen) == 3})
	}
	return out
}

// markRivals sets Rivals on stem and six-branch combinations that share a
// member with another combination of the same kind.
func markRivals(combos []Combination) {
	for i := range combos {
		if combos[i].Kind == TrineCombination {
			continue
		}
		for j := range combos {
			if i == j || combos[j].Kind != combos[i].Kind {
				continue
			}
			if sharesMember(combos[i].Nodes, combos[j].Nodes) {
				combos[i].Rivals++
			}
		}
	}
}

func sharesMember(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// detectVaults classifies every vault branch node.
func detectVaults(nodes []Node, conflicts []Conflict, cfg *config.Config) []Vault {
	ix := cfg.Interactions
	var out []Vault
	for i, n := range nodes {
		if n.Role != RoleBranch {
			continue
		}
		stored, ok := chart.VaultElement(n.Branch)
		if !ok {
			continue
		}

		energy := n.Initial * storedShare(n.Hidden, stored)
		var support float64
		for _, m := range nodes {
			if m.Role == RoleStem && m.Element == stored {
				support += m.Initial
			}
		}
		energy += ix.VaultSupportRatio * support

		v := Vault{
			Node:    i,
			Element: stored,
			Energy:  energy,
			Alive:   energy > ix.VaultAliveThreshold,
			State:   VaultSealed,
			Cause:   -1,
		}
		for _, c := range conflicts {
			if c.A != i && c.B != i {
				continue
			}
			if c.Kind == Harm || (c.Kind == Punishment && !ix.VaultOpenOnPunishment) {
				continue
			}
			other := c.A
			if other == i {
				other = c.B
			}
			if v.Cause < 0 {
				v.Cause = other
			}
			if nodes[other].Dynamic() {
				v.Dynamic = true
			}
		}
		if v.Cause >= 0 {
			if v.Alive {
				v.State = VaultOpened
			} else {
				v.State = VaultBroken
			}
		}
		out = append(out, v)
	}
	return out
}

// storedShare returns the hidden ratio of stems of element e.
func storedShare(hidden []HiddenStem, e chart.Element) float64 {
	var share float64
	for _, h := range hidden {
		if h.Stem.Element() == e {
			share += h.Ratio
		}
	}
	return share
}

func phaseGates(month chart.Branch, pc config.PhaseChangeConfig) []PhaseGate {
	var gates []PhaseGate
	for _, s := range pc.HotBranches {
		if b, err := chart.ParseBranch(s); err == nil && b == month {
			gates = append(gates, PhaseGate{From: chart.Earth, To: chart.Metal, Season: "hot"})
			break
		}
	}
	for _, s := range pc.ColdBranches {
		if b, err := chart.ParseBranch(s); err == nil && b == month {
			gates = append(gates, PhaseGate{From: chart.Water, To: chart.Wood, Season: "cold"})
			break
		}
	}
	return gates
}

// Triggers returns the human-readable structural events in detection order.
func (ix Interactions) Triggers(nodes []Node) []string {
	var out []string
	for _, v := range ix.Vaults {
		n := nodes[v.Node]
		switch v.State {
		case VaultOpened:
			out = append(out, fmt.Sprintf("%s: %s %s (%s) by %s %s", constants.TriggerVaultOpened,
				n.ID, n.Symbol, v.Element, nodes[v.Cause].ID, nodes[v.Cause].Symbol))
		case VaultBroken:
			out = append(out, fmt.Sprintf("%s: %s %s (%s) by %s %s", constants.TriggerVaultBroken,
				n.ID, n.Symbol, v.Element, nodes[v.Cause].ID, nodes[v.Cause].Symbol))
		}
	}
	for _, g := range ix.Gates {
		if hasElement(nodes, g.From) && hasElement(nodes, g.To) {
			out = append(out, fmt.Sprintf("%s: %s month damps %s->%s", constants.TriggerPhaseChange, g.Season, g.From, g.To))
		}
	}
	for _, c := range ix.Combinations {
		kind := constants.TriggerStemCombination
		switch c.Kind {
		case BranchCombination:
			kind = constants.TriggerBranchCombination
		case TrineCombination:
			kind = constants.TriggerTrine
		}
		detail := ""
		if c.Jealous() {
			detail = " (jealous)"
		} else if c.Kind == TrineCombination && !c.Full {
			detail = " (half)"
		}
		out = append(out, fmt.Sprintf("%s: %s -> %s%s", kind, joinIDs(nodes, c.Nodes), c.Element, detail))
	}
	for _, c := range ix.Conflicts {
		kind := constants.TriggerClash
		switch c.Kind {
		case Punishment:
			kind = constants.TriggerPunishment
		case Harm:
			kind = constants.TriggerHarm
		}
		out = append(out, fmt.Sprintf("%s: %s %s", kind, joinIDs(nodes, []int{c.A, c.B}), nodes[c.A].Symbol+nodes[c.B].Symbol))
	}
	return out
}

func joinIDs(nodes []Node, idx []int) string {
	ids := make([]string, len(idx))
	for k, i := range idx {
		ids[k] = nodes[i].ID
	}
	return strings.Join(ids, "+")
}

func hasElement(nodes []Node, e chart.Element) bool {
	for _, n := range nodes {
		if n.Element == e {
			return true
		}
	}
	return false
}
