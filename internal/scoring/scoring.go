// Package scoring reduces propagated node energies to elemental sums,
// ten-god energies, a strength score and label, and the three domain scores.
package scoring

import (
	"fmt"
	"math"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/propagation"
	"github.com/nvandessel/qiflow/internal/vecmath"
)

// TenGods holds the energy of each ten-god category.
type TenGods struct {
	Self     float64 `json:"self"`
	Resource float64 `json:"resource"`
	Output   float64 `json:"output"`
	Wealth   float64 `json:"wealth"`
	Officer  float64 `json:"officer"`
}

// Get returns the energy for a ten-god name, or 0 for an unknown name.
func (t TenGods) Get(name string) float64 {
	switch name {
	case constants.TenGodSelf:
		return t.Self
	case constants.TenGodResource:
		return t.Resource
	case constants.TenGodOutput:
		return t.Output
	case constants.TenGodWealth:
		return t.Wealth
	case constants.TenGodOfficer:
		return t.Officer
	}
	return 0
}

func (t *TenGods) add(offset int, v float64) {
	switch constants.TenGodAt(offset) {
	case constants.TenGodSelf:
		t.Self += v
	case constants.TenGodResource:
		t.Resource += v
	case constants.TenGodOutput:
		t.Output += v
	case constants.TenGodWealth:
		t.Wealth += v
	case constants.TenGodOfficer:
		t.Officer += v
	}
}

// Total returns the sum over all categories.
func (t TenGods) Total() float64 {
	return t.Self + t.Resource + t.Output + t.Wealth + t.Officer
}

// DomainBreakdown records every step of a domain's correction chain.
type DomainBreakdown struct {
	Raw       float64 `json:"raw"`
	Band      string  `json:"band"`
	Biased    float64 `json:"biased"`
	Amplified float64 `json:"amplified"`
	Corrector float64 `json:"corrector"`
	Final     float64 `json:"final"`
}

// Result is the scored outcome of one analysis.
type Result struct {
	// Elements maps element names to final energy.
	Elements map[string]float64 `json:"elements"`

	TenGods       TenGods         `json:"ten_gods"`
	TotalEnergy   float64         `json:"total_energy"`
	StrengthScore float64         `json:"strength_score"`
	StrengthLabel constants.Label `json:"strength_label"`

	// Domains maps domain names to their final 0-100 score.
	Domains map[string]float64         `json:"domains"`
	Details map[string]DomainBreakdown `json:"domain_details"`

	// Triggers lists structural events in a stable order.
	Triggers []string `json:"triggers"`
}

// Baseline is the geography-free analysis of the same chart. When present,
// the strength score starts from the baseline's propagated support share and
// moves by how far geography shifted the initial support odds.
type Baseline struct {
	Graph *graph.Graph
	Run   propagation.Result
}

// Score aggregates a propagation result over g. It never fails: a chart
// with no energy scores 0 with label Unknown.
func Score(g *graph.Graph, run propagation.Result, cfg *config.Config) Result {
	return ScoreAgainst(g, run, nil, cfg)
}

// ScoreAgainst is Score with the strength measured against base. A nil base
// scores the propagated support share of run directly.
func ScoreAgainst(g *graph.Graph, run propagation.Result, base *Baseline, cfg *config.Config) Result {
	final := nonNegative(run.Final)

	res := Result{
		Elements: make(map[string]float64, chart.NumElements),
		Domains:  make(map[string]float64, 3),
		Details:  make(map[string]DomainBreakdown, 3),
	}
	for _, e := range chart.Elements() {
		res.Elements[e.String()] = 0
	}

	var dynamicTotal float64
	var dynamic TenGods
	for i, n := range g.Nodes {
		res.Elements[n.Element.String()] += final[i]
		res.TotalEnergy += final[i]
		attribute(&res.TenGods, g, i, final[i], cfg)
		if n.Dynamic() {
			dynamicTotal += final[i]
			attribute(&dynamic, g, i, final[i], cfg)
		}
	}

	share := supportShare(res.TenGods, res.TotalEnergy)
	if base != nil {
		var baseGods TenGods
		var baseTotal float64
		for i, v := range nonNegative(base.Run.Final) {
			baseTotal += v
			attribute(&baseGods, base.Graph, i, v, cfg)
		}
		share = shiftOdds(supportShare(baseGods, baseTotal), supportOddsRatio(g, base.Graph))
	}
	res.StrengthScore, res.StrengthLabel = strength(g, share, res.TotalEnergy, cfg.Grading)

	for _, name := range constants.Domains() {
		d, _ := cfg.Nonlinear.Domain(name)
		b := domainScore(name, d, g, res.TenGods, res.TotalEnergy, dynamic, dynamicTotal, cfg.Spacetime)
		res.Domains[name] = b.Final
		res.Details[name] = b
	}

	res.Triggers = triggers(g, run, res.StrengthLabel)
	return res
}

func nonNegative(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Max(vecmath.Finite(x), 0)
	}
	return out
}

// supportShare is the self and resource share of total, in [0, 1].
func supportShare(tg TenGods, total float64) float64 {
	if !(total > 0) {
		return 0
	}
	return vecmath.Clamp((tg.Self+tg.Resource)/total, 0, 1)
}

// initialSupport splits g's initial energy by node element into the self and
// resource categories and the rest.
func initialSupport(g *graph.Graph) (support, rest float64) {
	for i, n := range g.Nodes {
		v := math.Max(vecmath.Finite(n.Initial), 0)
		switch constants.TenGodAt(g.TenGodOffset(i)) {
		case constants.TenGodSelf, constants.TenGodResource:
			support += v
		default:
			rest += v
		}
	}
	return support, rest
}

// supportOddsRatio compares the initial support odds of g against base, a
// graph over the same nodes before geography. It is 1 when the odds match
// and +Inf when g has support but nothing else left.
func supportOddsRatio(g, base *graph.Graph) float64 {
	s, r := initialSupport(g)
	bs, br := initialSupport(base)
	switch {
	case bs == 0 || br == 0:
		return 1
	case r == 0 && s > 0:
		return math.Inf(1)
	case r == 0:
		return 1
	}
	return (s / bs) * (br / r)
}

// shiftOdds multiplies the odds p/(1-p) by ratio and returns the new share.
// The result is non-decreasing in ratio.
func shiftOdds(p, ratio float64) float64 {
	switch {
	case ratio == 1 || p <= 0 || p >= 1:
		return p
	case math.IsInf(ratio, 1):
		return 1
	}
	o := p * ratio
	return o / (o + (1 - p))
}

// attribute adds node i's energy to its ten-god categories. Stem energy goes
// to the stem's element; branch energy is split across hidden stems with the
// stored share of a vault set by its state.
func attribute(t *TenGods, g *graph.Graph, i int, energy float64, cfg *config.Config) {
	if energy == 0 {
		return
	}
	n := g.Nodes[i]
	dm := g.DayMaster.Element()
	if n.Role == graph.RoleStem || len(n.Hidden) == 0 {
		t.add(g.TenGodOffset(i), energy)
		return
	}
	for _, h := range vaultShares(g, i, cfg.Interactions.VaultReleaseRatio) {
		t.add(h.Stem.Element().Offset(dm), energy*h.Ratio)
	}
}

// vaultShares returns node i's hidden split adjusted for its vault state:
// a sealed or broken vault withholds the stored element, an opened vault
// releases it at releaseRatio.
func vaultShares(g *graph.Graph, i int, releaseRatio float64) []graph.HiddenStem {
	n := g.Nodes[i]
	v, ok := g.Interactions.VaultAt(i)
	if !ok {
		return n.Hidden
	}

	var stored, rest float64
	for _, h := range n.Hidden {
		if h.Stem.Element() == v.Element {
			stored += h.Ratio
		} else {
			rest += h.Ratio
		}
	}
	if stored == 0 || rest == 0 {
		return n.Hidden
	}

	storedTarget := 0.0
	if v.State == graph.VaultOpened {
		storedTarget = releaseRatio
	}
	out := make([]graph.HiddenStem, len(n.Hidden))
	for k, h := range n.Hidden {
		out[k].Stem = h.Stem
		if h.Stem.Element() == v.Element {
			out[k].Ratio = storedTarget * h.Ratio / stored
		} else {
			out[k].Ratio = (1 - storedTarget) * h.Ratio / rest
		}
	}
	return out
}

func strength(g *graph.Graph, share, total float64, gr config.GradingConfig) (float64, constants.Label) {
	if !(total > 0) {
		return 0, constants.LabelUnknown
	}
	score := vecmath.Clamp(100*share, 0, 100)

	dm := g.DayMaster.Element()
	var selfInitial float64
	for _, n := range g.Nodes {
		if n.Element == dm {
			selfInitial += n.Initial
		}
	}

	switch {
	case selfInitial == 0:
		if score < gr.WeakThreshold {
			return score, constants.LabelFollower
		}
		return score, constants.LabelWeak
	case score >= gr.ExtremeHigh:
		return score, constants.LabelSpecialStrong
	case score <= gr.ExtremeLow:
		return score, constants.LabelFollower
	case score >= gr.StrongThreshold:
		return score, constants.LabelStrong
	case score < gr.WeakThreshold:
		return score, constants.LabelWeak
	default:
		return score, constants.LabelBalanced
	}
}

func domainScore(name string, d config.DomainConfig, g *graph.Graph, tg TenGods, total float64,
	dynamic TenGods, dynamicTotal float64, st config.SpacetimeConfig) DomainBreakdown {
	b := DomainBreakdown{Corrector: 1, Band: "low"}
	if !(total > 0) {
		return b
	}

	var weighted float64
	for _, god := range constants.TenGods() {
		weighted += d.Weights[god] * tg.Get(god)
	}
	b.Raw = vecmath.Clamp(100*weighted/total, 0, d.Ceiling)

	band := d.Low
	switch {
	case b.Raw >= d.BandHigh:
		band, b.Band = d.High, "high"
	case b.Raw >= d.BandLow:
		band, b.Band = d.Mid, "mid"
	}
	b.Biased = vecmath.Clamp(100*band.Multiplier*math.Pow(b.Raw/100, band.Exponent), 0, d.Ceiling)
	b.Amplified = vecmath.Clamp(b.Biased*d.Amplifier, 0, d.Ceiling)

	corrected := b.Amplified
	if st.Enabled && hasDynamic(g) {
		b.Corrector = corrector(name, d, g, dynamic, dynamicTotal, st)
		corrected = vecmath.Clamp(b.Amplified*b.Corrector, 0, d.Ceiling)
	}
	b.Final = math.Min(corrected, d.MaxScore)
	return b
}

func hasDynamic(g *graph.Graph) bool {
	for _, n := range g.Nodes {
		if n.Dynamic() {
			return true
		}
	}
	return false
}

// neutralDynamicShare is the share at which the dynamic context neither
// raises nor lowers a domain: one category in five.
const neutralDynamicShare = 0.2

func corrector(name string, d config.DomainConfig, g *graph.Graph, dynamic TenGods, dynamicTotal float64, st config.SpacetimeConfig) float64 {
	share := neutralDynamicShare
	var weightSum, weighted float64
	for _, god := range constants.TenGods() {
		w := d.Weights[god]
		weightSum += w
		weighted += w * dynamic.Get(god)
	}
	if dynamicTotal > 0 && weightSum > 0 {
		share = weighted / (weightSum * dynamicTotal)
	}
	c := 1 + st.DynamicWeight*(share-neutralDynamicShare)

	dm := g.DayMaster.Element()
	for _, v := range g.Interactions.Vaults {
		if v.State == graph.VaultOpened && v.Dynamic && d.Weights[constants.TenGodAt(v.Element.Offset(dm))] > 0 {
			c *= 1 + st.VaultOpenBoost
			break
		}
	}

	if name == constants.DomainRelationship {
		spouse := g.Index(graph.NodeID(chart.Day, graph.RoleBranch))
		for _, cf := range g.Interactions.Conflicts {
			if cf.Kind != graph.Clash || (cf.A != spouse && cf.B != spouse) {
				continue
			}
			if g.Nodes[cf.A].Dynamic() || g.Nodes[cf.B].Dynamic() {
				c *= 1 - st.SpouseClashPenalty
				break
			}
		}
	}
	return vecmath.Clamp(c, st.MinCorrector, st.MaxCorrector)
}

func triggers(g *graph.Graph, run propagation.Result, label constants.Label) []string {
	out := g.Triggers()
	for _, ev := range run.Events {
		a, d := g.Nodes[ev.Attacker], g.Nodes[ev.Defender]
		out = append(out, fmt.Sprintf("%s: %s %s -> %s %s reflected in %d round(s)",
			constants.TriggerInverseControl, a.ID, a.Symbol, d.ID, d.Symbol, ev.Count))
	}
	if label == constants.LabelFollower {
		out = append(out, fmt.Sprintf("%s: day master %s yields to the chart", constants.TriggerFollower, g.DayMaster))
	}
	if out == nil {
		out = []string{}
	}
	return out
}
