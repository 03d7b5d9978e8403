package graph

import (
	"math"
	"strings"
	"testing"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
)

// mustChart parses a chart and fails the test on error.
func mustChart(t *testing.T, natal []string, luck, annual string) chart.Chart {
	t.Helper()
	c, err := chart.Parse(natal, luck, annual)
	if err != nil {
		t.Fatalf("chart.Parse(%v): %v", natal, err)
	}
	return c
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// nodeByID returns the node with the given ID or fails the test.
func nodeByID(t *testing.T, g *Graph, id string) Node {
	t.Helper()
	i := g.Index(id)
	if i < 0 {
		t.Fatalf("node %s not found", id)
	}
	return g.Nodes[i]
}

func TestBuildNodes_OrderAndEnergies(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	nodes := BuildNodes(c, config.Default())

	want := []struct {
		id      string
		symbol  string
		element chart.Element
		initial float64
	}{
		{"year.stem", "庚", chart.Metal, 10.25},
		{"year.branch", "子", chart.Water, 6.24},
		{"month.stem", "乙", chart.Wood, 13.52},
		{"month.branch", "丑", chart.Earth, 26.91},
		{"day.stem", "丙", chart.Fire, 13.225},
		{"day.branch", "寅", chart.Wood, 11.04},
		{"hour.stem", "戊", chart.Earth, 18.63},
		{"hour.branch", "寅", chart.Wood, 9.936},
	}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i, w := range want {
		n := nodes[i]
		if n.ID != w.id || n.Symbol != w.symbol || n.Element != w.element {
			t.Errorf("node %d = %s %s %s, want %s %s %s", i, n.ID, n.Symbol, n.Element, w.id, w.symbol, w.element)
		}
		if !approx(n.Initial, w.initial) {
			t.Errorf("%s initial = %v, want %v", n.ID, n.Initial, w.initial)
		}
	}
}

func TestBuildNodes_HiddenSplit(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	nodes := BuildNodes(c, config.Default())

	for _, n := range nodes {
		if n.Role == RoleStem {
			if len(n.Hidden) != 0 {
				t.Errorf("%s: stem node carries hidden stems", n.ID)
			}
			if n.Branch != -1 {
				t.Errorf("%s: stem node has branch %d", n.ID, n.Branch)
			}
			continue
		}
		var sum float64
		for _, h := range n.Hidden {
			sum += h.Ratio
		}
		if !approx(sum, 1) {
			t.Errorf("%s: hidden ratios sum to %v", n.ID, sum)
		}
	}

	// 子 hides a single stem which takes the whole split.
	if h := nodes[1].Hidden; len(h) != 1 || !approx(h[0].Ratio, 1) {
		t.Errorf("year.branch hidden = %+v", h)
	}
	// 丑 hides 己癸辛 at the configured 0.6/0.3/0.1.
	h := nodes[3].Hidden
	if len(h) != 3 || !approx(h[0].Ratio, 0.6) || !approx(h[1].Ratio, 0.3) || !approx(h[2].Ratio, 0.1) {
		t.Errorf("month.branch hidden = %+v", h)
	}
}

func TestBuildNodes_Void(t *testing.T) {
	// Day pillar 甲子 leaves 戌 and 亥 void.
	c := mustChart(t, []string{"丙戌", "庚子", "甲子", "乙亥"}, "", "")

	noVoid := config.Default()
	noVoid.Structure.VoidPenalty = 0

	with := BuildNodes(c, config.Default())
	without := BuildNodes(c, noVoid)

	for i := range with {
		ratio := with[i].Initial / without[i].Initial
		want := 1.0
		if with[i].ID == "year.branch" || with[i].ID == "hour.branch" {
			want = 0.7
		}
		if !approx(ratio, want) {
			t.Errorf("%s: void ratio = %v, want %v", with[i].ID, ratio, want)
		}
	}
}

func TestBuildNodes_VoidIgnoresDynamicPillars(t *testing.T) {
	c := mustChart(t, []string{"丙戌", "庚子", "甲子", "乙亥"}, "", "甲戌")

	noVoid := config.Default()
	noVoid.Structure.VoidPenalty = 0

	with := BuildNodes(c, config.Default())
	without := BuildNodes(c, noVoid)
	last := len(with) - 1
	if with[last].ID != "annual.branch" {
		t.Fatalf("last node = %s", with[last].ID)
	}
	if !approx(with[last].Initial, without[last].Initial) {
		t.Errorf("annual branch penalised as void: %v vs %v", with[last].Initial, without[last].Initial)
	}
}

func TestApplyGeo(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	base := BuildNodes(c, config.Default())

	tests := []struct {
		name string
		geo  GeoModifiers
		fire float64 // multiplier on Fire nodes
		wood float64 // multiplier on Wood nodes
	}{
		{"empty", nil, 1, 1},
		{"doubled", GeoModifiers{chart.Fire: 2}, 2, 1},
		{"negative", GeoModifiers{chart.Fire: -1}, 0, 1},
		{"nan", GeoModifiers{chart.Fire: math.NaN()}, 0, 1},
		{"inf", GeoModifiers{chart.Fire: math.Inf(1)}, 0, 1},
		{"other element only", GeoModifiers{chart.Wood: 3}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := ApplyGeo(base, tt.geo)
			for i, n := range nodes {
				want := base[i].Initial
				switch n.Element {
				case chart.Fire:
					want *= tt.fire
				case chart.Wood:
					want *= tt.wood
				}
				if !approx(n.Initial, want) {
					t.Errorf("%s = %v, want %v", n.ID, n.Initial, want)
				}
			}
		})
	}

	nodes := ApplyGeo(base, GeoModifiers{chart.Fire: 2})
	if &nodes[0] == &base[0] {
		t.Error("ApplyGeo returned the input slice")
	}
}

func TestBuild_GeoFollowsTransmutedElement(t *testing.T) {
	// 甲己 combine into Earth in a 丑 month, so the year stem is Earth.
	c := mustChart(t, []string{"甲子", "己丑", "丙寅", "戊戌"}, "", "")
	cfg := config.Default()
	plain := Build(c, cfg, nil)
	g := Build(c, cfg, GeoModifiers{chart.Wood: 3, chart.Earth: 2})

	if len(g.Transmutations) != 1 {
		t.Fatalf("transmutations = %+v", g.Transmutations)
	}
	year := nodeByID(t, g, "year.stem")
	if year.Element != chart.Earth {
		t.Fatalf("year.stem element = %s", year.Element)
	}
	if want := 2 * nodeByID(t, plain, "year.stem").Initial; !approx(year.Initial, want) {
		t.Errorf("year.stem = %v, want Earth modifier applied (%v)", year.Initial, want)
	}
	if got, want := nodeByID(t, g, "day.stem").Initial, nodeByID(t, plain, "day.stem").Initial; !approx(got, want) {
		t.Errorf("day.stem = %v, want unchanged %v", got, want)
	}
}

func TestBuildNodes_Pure(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "甲申", "丁未")
	cfg := config.Default()
	a := BuildNodes(c, cfg)
	b := BuildNodes(c, cfg)
	if len(a) != 12 || len(b) != 12 {
		t.Fatalf("expected 12 nodes, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Initial != b[i].Initial {
			t.Errorf("node %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestDetectInteractions_VaultSealed(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	g := New(BuildNodes(c, config.Default()), c.DayMaster(), c.MonthBranch(), config.Default())

	if len(g.Interactions.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", g.Interactions.Conflicts)
	}
	v, ok := g.Interactions.VaultAt(3)
	if !ok {
		t.Fatal("month.branch 丑 should be a vault")
	}
	if v.Element != chart.Metal || !v.Alive || v.State != VaultSealed || v.Cause != -1 {
		t.Errorf("vault = %+v", v)
	}
	if !approx(v.Energy, 7.816) {
		t.Errorf("vault energy = %v, want 7.816", v.Energy)
	}

	if len(g.Interactions.Combinations) != 2 {
		t.Fatalf("expected 2 combinations, got %+v", g.Interactions.Combinations)
	}
	if sc := g.Interactions.Combinations[0]; sc.Kind != StemCombination || sc.Element != chart.Metal {
		t.Errorf("first combination = %+v", sc)
	}
	if bc := g.Interactions.Combinations[1]; bc.Kind != BranchCombination || bc.Element != chart.Earth {
		t.Errorf("second combination = %+v", bc)
	}
}

func TestDetectInteractions_AnnualClashOpensVault(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "丁未")
	g := Build(c, config.Default(), nil)

	wantConflicts := []Conflict{
		{Kind: Harm, A: 1, B: 9},
		{Kind: Clash, A: 3, B: 9},
		{Kind: Punishment, A: 3, B: 9},
	}
	if len(g.Interactions.Conflicts) != len(wantConflicts) {
		t.Fatalf("conflicts = %+v", g.Interactions.Conflicts)
	}
	for i, w := range wantConflicts {
		if g.Interactions.Conflicts[i] != w {
			t.Errorf("conflict %d = %+v, want %+v", i, g.Interactions.Conflicts[i], w)
		}
	}

	v, _ := g.Interactions.VaultAt(3)
	if v.State != VaultOpened || v.Cause != 9 || !v.Dynamic {
		t.Errorf("month vault = %+v", v)
	}
	annual, ok := g.Interactions.VaultAt(9)
	if !ok || annual.State != VaultOpened || annual.Cause != 3 || annual.Dynamic {
		t.Errorf("annual vault = %+v", annual)
	}

	triggers := g.Triggers()
	if len(triggers) == 0 || triggers[0] != "vault opened: month.branch 丑 (Metal) by annual.branch 未" {
		t.Errorf("triggers = %q", triggers)
	}
}

func TestDetectInteractions_DeadVaultBreaks(t *testing.T) {
	c := mustChart(t, []string{"甲子", "己丑", "丙寅", "戊戌"}, "", "")
	g := New(BuildNodes(c, config.Default()), c.DayMaster(), c.MonthBranch(), config.Default())

	v, _ := g.Interactions.VaultAt(3)
	if v.Alive || v.State != VaultBroken || v.Cause != 7 {
		t.Errorf("丑 vault = %+v", v)
	}
	w, _ := g.Interactions.VaultAt(7)
	if !w.Alive || w.State != VaultOpened || w.Cause != 3 {
		t.Errorf("戌 vault = %+v", w)
	}
}

func TestDetectInteractions_PunishmentDisabled(t *testing.T) {
	c := mustChart(t, []string{"甲子", "己丑", "丙寅", "戊戌"}, "", "")
	cfg := config.Default()
	cfg.Interactions.VaultOpenOnPunishment = false
	g := New(BuildNodes(c, cfg), c.DayMaster(), c.MonthBranch(), cfg)

	for _, v := range g.Interactions.Vaults {
		if v.State != VaultSealed {
			t.Errorf("vault at %d = %s, want sealed", v.Node, v.State)
		}
	}
}

func TestDetectInteractions_Jealousy(t *testing.T) {
	// Two 乙 stems compete for one 庚.
	c := mustChart(t, []string{"乙丑", "庚辰", "乙卯", "丙子"}, "", "")
	g := Build(c, config.Default(), nil)

	var stems, trines int
	for _, cb := range g.Interactions.Combinations {
		switch cb.Kind {
		case StemCombination:
			stems++
			if !cb.Jealous() {
				t.Errorf("stem combination %v should be jealous", cb.Nodes)
			}
		case BranchCombination:
			if cb.Jealous() {
				t.Errorf("branch combination %v should not be jealous", cb.Nodes)
			}
		case TrineCombination:
			trines++
			if cb.Full || cb.Element != chart.Water {
				t.Errorf("trine = %+v, want half Water", cb)
			}
		}
	}
	if stems != 2 || trines != 1 {
		t.Errorf("stems=%d trines=%d", stems, trines)
	}
	if len(g.Transmutations) != 0 {
		t.Errorf("jealous combinations must not transmute: %+v", g.Transmutations)
	}

	joined := strings.Join(g.Triggers(), "\n")
	if !strings.Contains(joined, "stem combination: year.stem+month.stem -> Metal (jealous)") {
		t.Errorf("missing jealous trigger in:\n%s", joined)
	}
	if !strings.Contains(joined, "trine: month.branch+hour.branch -> Water (half)") {
		t.Errorf("missing half trine trigger in:\n%s", joined)
	}
}

func TestDetectInteractions_PhaseGate(t *testing.T) {
	c := mustChart(t, []string{"甲子", "庚午", "丙寅", "戊子"}, "", "")
	g := Build(c, config.Default(), nil)

	gates := g.Interactions.Gates
	if len(gates) != 1 {
		t.Fatalf("gates = %+v", gates)
	}
	if gates[0].From != chart.Earth || gates[0].To != chart.Metal || gates[0].Season != "hot" || gates[0].Damping(config.Default().Flow.PhaseChange) != 0.2 {
		t.Errorf("gate = %+v", gates[0])
	}

	joined := strings.Join(g.Triggers(), "\n")
	if !strings.Contains(joined, "phase-change block: hot month damps Earth->Metal") {
		t.Errorf("missing gate trigger in:\n%s", joined)
	}
}

func TestTriggers_PhaseGateNeedsGatedEdge(t *testing.T) {
	tests := []struct {
		name  string
		natal []string
		want  bool
	}{
		// 戊 and 戌 are Earth, 庚 is Metal.
		{"earth and metal present", []string{"甲子", "庚午", "丙寅", "戊戌"}, true},
		// Hot month with Earth but no Metal node.
		{"no metal", []string{"甲寅", "丙午", "丙寅", "戊戌"}, false},
		// Hot month with Metal but no Earth node.
		{"no earth", []string{"甲子", "庚午", "丙寅", "丙申"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Build(mustChart(t, tt.natal, "", ""), config.Default(), nil)
			if len(g.Interactions.Gates) != 1 {
				t.Fatalf("gates = %+v", g.Interactions.Gates)
			}
			joined := strings.Join(g.Triggers(), "\n")
			if got := strings.Contains(joined, "phase-change block"); got != tt.want {
				t.Errorf("gate trigger present = %v, want %v in:\n%s", got, tt.want, joined)
			}
		})
	}
}

func TestTransmute_ReclassifiesAndRebuildsCache(t *testing.T) {
	c := mustChart(t, []string{"甲子", "己丑", "丙寅", "戊戌"}, "", "")
	cfg := config.Default()
	before := New(BuildNodes(c, cfg), c.DayMaster(), c.MonthBranch(), cfg)
	after := before.Transmute(cfg)

	if after == before {
		t.Fatal("expected a new graph")
	}
	if before.Nodes[0].Element != chart.Wood || before.Relation(0, 4) != RelGenerates {
		t.Errorf("original graph modified: %s %v", before.Nodes[0].Element, before.Relation(0, 4))
	}

	year := after.Nodes[0]
	if year.Element != chart.Earth || !year.Transmuted {
		t.Errorf("year.stem = %+v, want transmuted Earth", year)
	}
	if after.Nodes[2].Transmuted {
		t.Error("month.stem is already Earth and should not be marked")
	}
	// Fire now generates the year stem.
	if got := after.Relation(0, 4); got != RelGeneratedBy {
		t.Errorf("Relation(year.stem, day.stem) = %v, want RelGeneratedBy", got)
	}
	if got := after.TenGodOffset(0); got != chart.Earth.Offset(chart.Fire) {
		t.Errorf("TenGodOffset = %d", got)
	}
	if len(after.Transmutations) != 1 {
		t.Fatalf("transmutations = %+v", after.Transmutations)
	}
	if tr := after.Triggers(); tr[0] != "transmutation: year.stem+month.stem -> Earth" {
		t.Errorf("first trigger = %q", tr[0])
	}
}

func TestTransmute_DayMasterNeverChanges(t *testing.T) {
	// 丙辛 combine into Water in a 亥 month; only 辛 changes.
	c := mustChart(t, []string{"庚午", "辛亥", "丙寅", "戊子"}, "", "")
	g := Build(c, config.Default(), nil)

	if dm := nodeByID(t, g, "day.stem"); dm.Element != chart.Fire || dm.Transmuted {
		t.Errorf("day master = %+v", dm)
	}
	if ms := nodeByID(t, g, "month.stem"); ms.Element != chart.Water || !ms.Transmuted {
		t.Errorf("month.stem = %+v", ms)
	}
}

func TestTransmute_Disabled(t *testing.T) {
	c := mustChart(t, []string{"甲子", "己丑", "丙寅", "戊戌"}, "", "")
	cfg := config.Default()
	cfg.Interactions.Transmutation = false
	g := Build(c, cfg, nil)
	if g.Nodes[0].Element != chart.Wood || len(g.Transmutations) != 0 {
		t.Errorf("transmutation applied while disabled: %+v", g.Nodes[0])
	}
}

func TestDistance(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "甲申", "丁未")
	g := Build(c, config.Default(), nil)

	tests := []struct {
		a, b string
		want int
	}{
		{"year.stem", "year.branch", 0},
		{"year.stem", "month.stem", 1},
		{"year.stem", "hour.branch", 3},
		{"hour.stem", "month.branch", 2},
		{"year.stem", "luck.stem", 1},
		{"luck.branch", "annual.branch", 1},
		{"annual.stem", "annual.branch", 0},
	}
	for _, tt := range tests {
		if got := g.Distance(g.Index(tt.a), g.Index(tt.b)); got != tt.want {
			t.Errorf("Distance(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGraphAccessors(t *testing.T) {
	c := mustChart(t, []string{"庚子", "乙丑", "丙寅", "戊寅"}, "", "")
	g := Build(c, config.Default(), nil)

	if g.Len() != 8 {
		t.Errorf("Len = %d", g.Len())
	}
	if g.DayMasterIndex() != 4 {
		t.Errorf("DayMasterIndex = %d", g.DayMasterIndex())
	}
	if g.Index("luck.stem") != -1 {
		t.Error("luck.stem should be absent")
	}
	initial := g.Initial()
	initial[0] = -1
	if g.Nodes[0].Initial == -1 {
		t.Error("Initial must return a copy")
	}
	// 庚 Metal controls 乙 Wood; 乙 is controlled by 庚.
	if g.Relation(0, 2) != RelControls || g.Relation(2, 0) != RelControlledBy {
		t.Errorf("relations = %v, %v", g.Relation(0, 2), g.Relation(2, 0))
	}
	if g.Relation(5, 7) != RelSame {
		t.Errorf("寅-寅 relation = %v", g.Relation(5, 7))
	}
}
