package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/matrix"
	"github.com/nvandessel/qiflow/internal/propagation"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// Per-element energies shared by the rotation fixtures.
var rotationEnergy = map[chart.Element]float64{
	chart.Wood:  35,
	chart.Water: 35,
	chart.Fire:  15,
	chart.Metal: 15,
}

// rotationGraph builds four stem nodes carrying rotationEnergy, with the
// day stem set to dm. Only the reference element changes between calls;
// every per-element energy stays the same.
func rotationGraph(t *testing.T, dm chart.Stem) (*graph.Graph, propagation.Result) {
	t.Helper()
	stems := map[chart.Element]chart.Stem{
		chart.Wood: 0, chart.Fire: 2, chart.Metal: 6, chart.Water: 8,
	}
	order := []chart.Element{chart.Wood, chart.Water, chart.Fire, chart.Metal}

	// The day slot takes the day master's element, or Wood when the chart
	// has none of it.
	dayElement := dm.Element()
	if _, ok := rotationEnergy[dayElement]; !ok {
		dayElement = chart.Wood
	}
	slots := []chart.Position{chart.Year, chart.Month, chart.Hour}
	var nodes []graph.Node
	for _, e := range order {
		pos := chart.Day
		if e != dayElement {
			pos, slots = slots[0], slots[1:]
		}
		nodes = append(nodes, graph.Node{
			ID:       graph.NodeID(pos, graph.RoleStem),
			Position: pos,
			Role:     graph.RoleStem,
			Symbol:   stems[e].String(),
			Stem:     stems[e],
			Branch:   -1,
			Element:  e,
			Initial:  rotationEnergy[e],
		})
	}
	g := graph.New(nodes, dm, chart.Branch(2), config.Default())
	return g, propagation.Result{Initial: g.Initial(), Final: g.Initial()}
}

func TestScore_TenGodRotation(t *testing.T) {
	tests := []struct {
		dm    chart.Stem
		score float64
		label constants.Label
	}{
		{0, 70, constants.LabelStrong},   // 甲: Wood self, Water resource
		{2, 50, constants.LabelBalanced}, // 丙: Fire self, Wood resource
		{6, 15, constants.LabelWeak},     // 庚: Metal self, no Earth resource
		{8, 50, constants.LabelBalanced}, // 壬: Water self, Metal resource
	}
	cfg := config.Default()
	for _, tt := range tests {
		t.Run(tt.dm.String(), func(t *testing.T) {
			g, run := rotationGraph(t, tt.dm)
			res := Score(g, run, cfg)
			if !approx(res.StrengthScore, tt.score) {
				t.Errorf("score = %v, want %v", res.StrengthScore, tt.score)
			}
			if res.StrengthLabel != tt.label {
				t.Errorf("label = %s, want %s", res.StrengthLabel, tt.label)
			}
			if !approx(res.TotalEnergy, 100) {
				t.Errorf("total = %v", res.TotalEnergy)
			}
			if !approx(res.TenGods.Total(), res.TotalEnergy) {
				t.Errorf("ten gods total %v != total %v", res.TenGods.Total(), res.TotalEnergy)
			}
		})
	}
}

func TestScore_RootlessDayMaster(t *testing.T) {
	// 戊 has no Earth anywhere in the chart.
	g, run := rotationGraph(t, 4)
	res := Score(g, run, config.Default())

	if res.StrengthLabel != constants.LabelFollower {
		t.Errorf("label = %s, want Follower", res.StrengthLabel)
	}
	if !approx(res.StrengthScore, 15) {
		t.Errorf("score = %v, want 15", res.StrengthScore)
	}
	last := res.Triggers[len(res.Triggers)-1]
	if last != "follower pattern: day master 戊 yields to the chart" {
		t.Errorf("last trigger = %q", last)
	}

	// Enough resource keeps a rootless day master Weak, never Strong.
	cfg := config.Default()
	cfg.Grading.WeakThreshold = 10
	cfg.Grading.ExtremeLow = 5
	res = Score(g, run, cfg)
	if res.StrengthLabel != constants.LabelWeak {
		t.Errorf("label = %s, want Weak", res.StrengthLabel)
	}
}

func TestScore_Extremes(t *testing.T) {
	g, run := rotationGraph(t, 0)
	cfg := config.Default()

	cfg.Grading.ExtremeHigh = 65
	if res := Score(g, run, cfg); res.StrengthLabel != constants.LabelSpecialStrong {
		t.Errorf("label = %s, want Special_Strong", res.StrengthLabel)
	}

	g, run = rotationGraph(t, 6)
	cfg = config.Default()
	cfg.Grading.ExtremeLow = 20
	if res := Score(g, run, cfg); res.StrengthLabel != constants.LabelFollower {
		t.Errorf("label = %s, want Follower", res.StrengthLabel)
	}
}

func TestScore_ZeroEnergy(t *testing.T) {
	g, _ := rotationGraph(t, 0)
	run := propagation.Result{Final: make([]float64, g.Len())}
	res := Score(g, run, config.Default())

	if res.StrengthScore != 0 || res.StrengthLabel != constants.LabelUnknown {
		t.Errorf("got %v %s, want 0 Unknown", res.StrengthScore, res.StrengthLabel)
	}
	for _, d := range constants.Domains() {
		if res.Domains[d] != 0 {
			t.Errorf("domain %s = %v", d, res.Domains[d])
		}
	}
	if res.Triggers == nil {
		t.Error("triggers must be non-nil")
	}
	if len(res.Elements) != chart.NumElements {
		t.Errorf("elements = %v", res.Elements)
	}
}

func TestScore_NonFiniteFinalEnergy(t *testing.T) {
	g, run := rotationGraph(t, 0)
	run.Final = []float64{math.NaN(), math.Inf(1), -3, 15}
	res := Score(g, run, config.Default())
	if !approx(res.TotalEnergy, 15) {
		t.Errorf("total = %v, want 15", res.TotalEnergy)
	}
	for k, v := range res.Elements {
		if math.IsNaN(v) || v < 0 {
			t.Errorf("element %s = %v", k, v)
		}
	}
}

func TestScore_DomainChain(t *testing.T) {
	g, run := rotationGraph(t, 0)
	cfg := config.Default()
	res := Score(g, run, cfg)

	// self 35, resource 35, output 15, wealth 0, officer 15.
	tests := []struct {
		domain string
		raw    float64
		band   string
		mult   float64
		exp    float64
		amp    float64
	}{
		{constants.DomainWealth, 7.5, "low", 1.2, 0.95, 1.1},
		{constants.DomainCareer, 37, "mid", 1.4, 0.9, 1.0},
		{constants.DomainRelationship, 15, "low", 1.2, 0.95, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			d := res.Details[tt.domain]
			if !approx(d.Raw, tt.raw) || d.Band != tt.band {
				t.Errorf("raw = %v band = %s, want %v %s", d.Raw, d.Band, tt.raw, tt.band)
			}
			biased := 100 * tt.mult * math.Pow(tt.raw/100, tt.exp)
			if !approx(d.Biased, biased) {
				t.Errorf("biased = %v, want %v", d.Biased, biased)
			}
			if !approx(d.Amplified, biased*tt.amp) {
				t.Errorf("amplified = %v, want %v", d.Amplified, biased*tt.amp)
			}
			// No luck or annual pillar: no corrector.
			if d.Corrector != 1 || d.Final != d.Amplified {
				t.Errorf("corrector = %v final = %v", d.Corrector, d.Final)
			}
			if res.Domains[tt.domain] != d.Final {
				t.Errorf("Domains[%s] = %v, Details final = %v", tt.domain, res.Domains[tt.domain], d.Final)
			}
		})
	}
}

func TestScore_MaxScoreCap(t *testing.T) {
	g, run := rotationGraph(t, 0)
	cfg := config.Default()
	cfg.Nonlinear.Career.MaxScore = 30
	res := Score(g, run, cfg)
	if res.Domains[constants.DomainCareer] != 30 {
		t.Errorf("career = %v, want capped at 30", res.Domains[constants.DomainCareer])
	}
}

func TestScore_InverseControlTrigger(t *testing.T) {
	// With a 庚 day master, 甲 and 壬 sit in the year and month slots.
	g, run := rotationGraph(t, 6)
	run.Events = []propagation.Event{{Round: 1, Attacker: 0, Defender: 1, Damage: 1, Count: 2}}
	res := Score(g, run, config.Default())

	want := "inverse control: year.stem 甲 -> month.stem 壬 reflected in 2 round(s)"
	if len(res.Triggers) != 1 || res.Triggers[0] != want {
		t.Errorf("triggers = %q, want [%q]", res.Triggers, want)
	}
}

// scoreChart runs the deterministic pipeline on a chart.
func scoreChart(t *testing.T, cfg *config.Config, natal []string, annual string) (*graph.Graph, Result) {
	t.Helper()
	c, err := chart.Parse(natal, "", annual)
	if err != nil {
		t.Fatalf("chart.Parse: %v", err)
	}
	g := graph.Build(c, cfg, nil)
	m := matrix.ForConfig(cfg).Compute(g, cfg)
	return g, Score(g, propagation.NewEngine(cfg).Propagate(g, m), cfg)
}

func TestVaultShares(t *testing.T) {
	cfg := config.Default()
	natal := []string{"庚子", "乙丑", "丙寅", "戊寅"}

	sealed, _ := scoreChart(t, cfg, natal, "")
	shares := vaultShares(sealed, 3, cfg.Interactions.VaultReleaseRatio)
	// 丑 hides 己 0.6, 癸 0.3, 辛 0.1; 辛 is the stored Metal.
	want := []float64{0.6 / 0.9, 0.3 / 0.9, 0}
	for k, h := range shares {
		if !approx(h.Ratio, want[k]) {
			t.Errorf("sealed share %s = %v, want %v", h.Stem, h.Ratio, want[k])
		}
	}

	opened, _ := scoreChart(t, cfg, natal, "丁未")
	shares = vaultShares(opened, 3, cfg.Interactions.VaultReleaseRatio)
	want = []float64{0.4 * 0.6 / 0.9, 0.4 * 0.3 / 0.9, 0.6}
	for k, h := range shares {
		if !approx(h.Ratio, want[k]) {
			t.Errorf("opened share %s = %v, want %v", h.Stem, h.Ratio, want[k])
		}
	}

	// Non-vault branches keep their split.
	if got := vaultShares(opened, 1, 0.6); len(got) != 1 || got[0].Ratio != 1 {
		t.Errorf("子 shares = %+v", got)
	}
}

func TestScore_SpouseClashPenalty(t *testing.T) {
	natal := []string{"庚子", "乙丑", "丙寅", "戊寅"}
	cfg := config.Default()
	none := config.Default()
	none.Spacetime.SpouseClashPenalty = 0

	// 申 clashes the 寅 day branch.
	_, with := scoreChart(t, cfg, natal, "甲申")
	_, without := scoreChart(t, none, natal, "甲申")

	rel := constants.DomainRelationship
	if !approx(with.Details[rel].Corrector, without.Details[rel].Corrector*0.75) {
		t.Errorf("corrector = %v, want 0.75 × %v", with.Details[rel].Corrector, without.Details[rel].Corrector)
	}
	if with.Domains[rel] >= without.Domains[rel] {
		t.Errorf("relationship %v should fall below %v", with.Domains[rel], without.Domains[rel])
	}
	career := constants.DomainCareer
	if with.Details[career].Corrector != without.Details[career].Corrector {
		t.Error("spouse penalty leaked into career")
	}
}

func TestScore_DynamicVaultBoost(t *testing.T) {
	_, res := scoreChart(t, config.Default(), []string{"庚子", "乙丑", "丙寅", "戊寅"}, "丁未")

	w := res.Details[constants.DomainWealth]
	if w.Corrector <= 1.4 {
		t.Errorf("wealth corrector = %v, want the vault boost", w.Corrector)
	}
	if !strings.HasPrefix(res.Triggers[0], constants.TriggerVaultOpened) {
		t.Errorf("first trigger = %q", res.Triggers[0])
	}
}

func TestTenGods_Get(t *testing.T) {
	tg := TenGods{Self: 1, Resource: 2, Output: 3, Wealth: 4, Officer: 5}
	for i, name := range []string{"self", "resource", "output", "wealth", "officer"} {
		if tg.Get(name) != float64(i+1) {
			t.Errorf("Get(%s) = %v", name, tg.Get(name))
		}
	}
	if tg.Get("spouse") != 0 {
		t.Error("unknown name should be 0")
	}
	if tg.Total() != 15 {
		t.Errorf("Total = %v", tg.Total())
	}
}

func TestShiftOdds(t *testing.T) {
	tests := []struct {
		name     string
		p, ratio float64
		want     float64
	}{
		{"identity", 0.4, 1, 0.4},
		{"doubled odds", 0.5, 2, 2.0 / 3},
		{"halved odds", 0.5, 0.5, 1.0 / 3},
		{"zero ratio", 0.7, 0, 0},
		{"infinite ratio", 0.2, math.Inf(1), 1},
		{"no support stays", 0, 5, 0},
		{"full support stays", 1, 0.1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shiftOdds(tt.p, tt.ratio); !approx(got, tt.want) {
				t.Errorf("shiftOdds(%v, %v) = %v, want %v", tt.p, tt.ratio, got, tt.want)
			}
		})
	}

	prev := -1.0
	for _, r := range []float64{0, 0.25, 0.9, 1, 1.0001, 1.1, 3, 1e6, math.Inf(1)} {
		got := shiftOdds(0.35, r)
		if got < prev {
			t.Errorf("shiftOdds(0.35, %v) = %v fell below %v", r, got, prev)
		}
		prev = got
	}
}

func TestSupportOddsRatio(t *testing.T) {
	c, err := chart.Parse([]string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	if err != nil {
		t.Fatalf("chart.Parse: %v", err)
	}
	cfg := config.Default()
	base := graph.Build(c, cfg, nil)

	// Day master 丙 is Fire, so Fire and Wood are support.
	tests := []struct {
		name string
		geo  graph.GeoModifiers
		cmp  func(float64) bool
	}{
		{"unchanged", graph.GeoModifiers{chart.Fire: 1}, func(r float64) bool { return r == 1 }},
		{"boosted self", graph.GeoModifiers{chart.Fire: 1.5}, func(r float64) bool { return r > 1 }},
		{"boosted resource", graph.GeoModifiers{chart.Wood: 1.5}, func(r float64) bool { return r > 1 }},
		{"boosted wealth", graph.GeoModifiers{chart.Metal: 1.5}, func(r float64) bool { return r < 1 }},
		{"others removed", graph.GeoModifiers{chart.Earth: 0, chart.Metal: 0, chart.Water: 0}, func(r float64) bool { return math.IsInf(r, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.Build(c, cfg, tt.geo)
			if r := supportOddsRatio(g, base); !tt.cmp(r) {
				t.Errorf("supportOddsRatio = %v", r)
			}
		})
	}
}

func TestScoreAgainst(t *testing.T) {
	c, err := chart.Parse([]string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "丁未")
	if err != nil {
		t.Fatalf("chart.Parse: %v", err)
	}
	cfg := config.Default()
	run := func(geo graph.GeoModifiers) (*graph.Graph, propagation.Result) {
		g := graph.Build(c, cfg, geo)
		return g, propagation.NewEngine(cfg).Propagate(g, matrix.ForConfig(cfg).Compute(g, cfg))
	}
	bg, brun := run(nil)
	base := &Baseline{Graph: bg, Run: brun}

	plain := Score(bg, brun, cfg)
	if same := ScoreAgainst(bg, brun, base, cfg); !approx(same.StrengthScore, plain.StrengthScore) {
		t.Errorf("scoring against itself = %v, want %v", same.StrengthScore, plain.StrengthScore)
	}

	prev := plain.StrengthScore
	for _, f := range []float64{1.1, 1.5, 2, 4} {
		g, r := run(graph.GeoModifiers{chart.Fire: f})
		res := ScoreAgainst(g, r, base, cfg)
		if res.StrengthScore < prev-1e-9 {
			t.Errorf("Fire ×%v: strength %v fell below %v", f, res.StrengthScore, prev)
		}
		prev = res.StrengthScore
	}

	g, r := run(graph.GeoModifiers{chart.Fire: 0})
	res := ScoreAgainst(g, r, base, cfg)
	if res.StrengthLabel == constants.LabelStrong || res.StrengthLabel == constants.LabelSpecialStrong {
		t.Errorf("no Fire energy labelled %s", res.StrengthLabel)
	}
}
