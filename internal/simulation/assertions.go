package simulation

import (
	"math"
	"strings"
	"testing"

	"github.com/nvandessel/qiflow/internal/constants"
)

func mustCase(t *testing.T, result SimulationResult, label string) CaseResult {
	t.Helper()
	c, ok := result.Case(label)
	if !ok {
		t.Fatalf("%s: no case labelled %q", result.Scenario, label)
	}
	return c
}

// AssertLabel asserts the strength label of a case.
func AssertLabel(t *testing.T, result SimulationResult, label string, want constants.Label) {
	t.Helper()
	c := mustCase(t, result, label)
	if got := c.Report().StrengthLabel; got != want {
		t.Errorf("AssertLabel: %s: label %s (score %.2f), want %s", label, got, c.Report().StrengthScore, want)
	}
}

// AssertWealthAbove asserts that a case's wealth index exceeds min.
func AssertWealthAbove(t *testing.T, result SimulationResult, label string, min float64) {
	t.Helper()
	c := mustCase(t, result, label)
	if c.Wealth.WealthIndex <= min {
		t.Errorf("AssertWealthAbove: %s: wealth index %.2f not above %.2f", label, c.Wealth.WealthIndex, min)
	}
}

// AssertWealthBelow asserts that a case's wealth index is under max.
func AssertWealthBelow(t *testing.T, result SimulationResult, label string, max float64) {
	t.Helper()
	c := mustCase(t, result, label)
	if c.Wealth.WealthIndex >= max {
		t.Errorf("AssertWealthBelow: %s: wealth index %.2f not below %.2f", label, c.Wealth.WealthIndex, max)
	}
}

// AssertTrigger asserts that a case reports a trigger with the given prefix.
func AssertTrigger(t *testing.T, result SimulationResult, label, prefix string) {
	t.Helper()
	c := mustCase(t, result, label)
	for _, tr := range c.Report().Triggers {
		if strings.HasPrefix(tr, prefix) {
			return
		}
	}
	t.Errorf("AssertTrigger: %s: no %q trigger in %v", label, prefix, c.Report().Triggers)
}

// AssertNoTrigger asserts that no trigger of a case has the given prefix.
func AssertNoTrigger(t *testing.T, result SimulationResult, label, prefix string) {
	t.Helper()
	c := mustCase(t, result, label)
	for _, tr := range c.Report().Triggers {
		if strings.HasPrefix(tr, prefix) {
			t.Errorf("AssertNoTrigger: %s: unexpected trigger %q", label, tr)
		}
	}
}

// AssertRecoil asserts that the attacker -> defender control edge reflected:
// in the first reflecting round the attacker lost more than the nominal
// control damage, and the defender survives the run.
func AssertRecoil(t *testing.T, result SimulationResult, label, attacker, defender string) {
	t.Helper()
	c := mustCase(t, result, label)
	g, run := c.Trace.Graph, c.Trace.Run
	a, d := g.Index(attacker), g.Index(defender)
	if a < 0 || d < 0 {
		t.Fatalf("AssertRecoil: %s: unknown node %s or %s", label, attacker, defender)
	}

	for _, ev := range run.Events {
		if ev.Attacker != a || ev.Defender != d {
			continue
		}
		if ev.Round > len(run.Steps) {
			t.Fatalf("AssertRecoil: %s: round %d not recorded", label, ev.Round)
		}
		pre := run.Initial
		if ev.Round > 1 {
			pre = run.Steps[ev.Round-2].Energy
		}
		post := run.Steps[ev.Round-1].Energy
		if drop := pre[a] - post[a]; drop <= ev.Damage {
			t.Errorf("AssertRecoil: %s: attacker %s dropped %.4f in round %d, not more than nominal damage %.4f",
				label, attacker, drop, ev.Round, ev.Damage)
		}
		if run.Final[d] <= 0 {
			t.Errorf("AssertRecoil: %s: defender %s destroyed", label, defender)
		}
		return
	}
	t.Errorf("AssertRecoil: %s: no reflection on %s -> %s (events: %+v)", label, attacker, defender, run.Events)
}

// AssertMirrorLabels asserts that one case reads strong and the other weak.
func AssertMirrorLabels(t *testing.T, result SimulationResult, labelA, labelB string) {
	t.Helper()
	a := mustCase(t, result, labelA).Report()
	b := mustCase(t, result, labelB).Report()
	if !(isStrong(a.StrengthLabel) && isWeak(b.StrengthLabel)) && !(isWeak(a.StrengthLabel) && isStrong(b.StrengthLabel)) {
		t.Errorf("AssertMirrorLabels: %s is %s (%.2f), %s is %s (%.2f)",
			labelA, a.StrengthLabel, a.StrengthScore, labelB, b.StrengthLabel, b.StrengthScore)
	}
}

func isStrong(l constants.Label) bool {
	return l == constants.LabelStrong || l == constants.LabelSpecialStrong
}

func isWeak(l constants.Label) bool {
	return l == constants.LabelWeak || l == constants.LabelFollower
}

// AssertEnergiesBounded asserts that every recorded energy is finite and in
// [0, ceiling].
func AssertEnergiesBounded(t *testing.T, result SimulationResult, ceiling float64) {
	t.Helper()
	for _, c := range result.Cases {
		for _, step := range c.Trace.Run.Steps {
			for i, e := range step.Energy {
				if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 || e > ceiling {
					t.Errorf("AssertEnergiesBounded: %s: round %d node %s energy %v", c.Label, step.Round, c.Trace.Graph.Nodes[i].ID, e)
				}
			}
		}
	}
}

// AssertDecisionCount asserts how many decision events of a kind were logged.
func AssertDecisionCount(t *testing.T, result SimulationResult, event string, want int) {
	t.Helper()
	var got int
	for _, d := range result.Decisions {
		if d["event"] == event {
			got++
		}
	}
	if got != want {
		t.Errorf("AssertDecisionCount: %d %q events, want %d", got, event, want)
	}
}
