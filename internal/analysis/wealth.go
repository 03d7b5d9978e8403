package analysis

import (
	"fmt"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/scoring"
)

// WealthRequest is a chart plus the gender used for the spouse-star reading.
// An empty gender skips that reading.
type WealthRequest struct {
	Request `yaml:",inline"`

	Gender constants.Gender `json:"gender,omitempty" yaml:"gender,omitempty"`
}

// WealthReport specialises a Report for the wealth domain.
type WealthReport struct {
	Chart         string          `json:"chart"`
	WealthIndex   float64         `json:"wealth_index"`
	StrengthScore float64         `json:"strength_score"`
	StrengthLabel constants.Label `json:"strength_label"`
	Opportunity   string          `json:"opportunity"`
	Details       []string        `json:"details"`
	Triggers      []string        `json:"triggers"`
}

// Opportunity grades a 0-100 wealth index.
func Opportunity(index float64) string {
	switch {
	case index >= constants.OpportunityHighThreshold:
		return constants.OpportunityHigh
	case index >= constants.OpportunityModerateThreshold:
		return constants.OpportunityModerate
	case index >= constants.OpportunityLimitedThreshold:
		return constants.OpportunityLimited
	default:
		return constants.OpportunityLow
	}
}

// CalculateWealthIndex runs an analysis and reports the wealth domain with
// narrative detail.
func (a *Analyzer) CalculateWealthIndex(req WealthRequest) (*WealthReport, error) {
	_, w, err := a.AnalyzeWealth(req)
	return w, err
}

// AnalyzeWealth runs one analysis and returns both the full report and its
// wealth reading.
func (a *Analyzer) AnalyzeWealth(req WealthRequest) (*Report, *WealthReport, error) {
	if req.Gender != "" && !req.Gender.Valid() {
		return nil, nil, &chart.InvalidChartError{
			Input:  string(req.Gender),
			Reason: "gender must be male or female",
		}
	}

	s, err := a.run(req.Request)
	if err != nil {
		return nil, nil, err
	}

	r := s.score
	index := r.Domains[constants.DomainWealth]
	out := &WealthReport{
		Chart:         s.chart.String(),
		WealthIndex:   index,
		StrengthScore: r.StrengthScore,
		StrengthLabel: r.StrengthLabel,
		Opportunity:   Opportunity(index),
		Details:       wealthDetails(s.graph, r, req.Gender),
		Triggers:      r.Triggers,
	}

	a.decisions.Log(map[string]any{
		"event":        "wealth_index",
		"chart":        out.Chart,
		"gender":       string(req.Gender),
		"wealth_index": out.WealthIndex,
		"opportunity":  out.Opportunity,
	})
	return s.report(), out, nil
}

func wealthDetails(g *graph.Graph, r scoring.Result, gender constants.Gender) []string {
	dm := g.DayMaster.Element()
	wealth := elementFor(dm, constants.TenGodWealth)

	details := []string{}
	for _, v := range g.Interactions.Vaults {
		if v.Element != wealth || !v.Alive {
			continue
		}
		n := g.Nodes[v.Node]
		switch v.State {
		case graph.VaultOpened:
			details = append(details, fmt.Sprintf("wealth vault %s %s opened by %s", n.ID, n.Symbol, g.Nodes[v.Cause].ID))
		case graph.VaultBroken:
			details = append(details, fmt.Sprintf("wealth vault %s %s broken by %s", n.ID, n.Symbol, g.Nodes[v.Cause].ID))
		default:
			details = append(details, fmt.Sprintf("wealth vault %s %s sealed", n.ID, n.Symbol))
		}
	}

	switch r.StrengthLabel {
	case constants.LabelStrong, constants.LabelSpecialStrong:
		details = append(details, fmt.Sprintf("day master %s is strong enough to hold wealth", g.DayMaster))
	case constants.LabelBalanced:
		details = append(details, fmt.Sprintf("day master %s holds wealth with effort", g.DayMaster))
	case constants.LabelWeak, constants.LabelFollower:
		details = append(details, fmt.Sprintf("day master %s is too weak to hold wealth; it follows the wealth flow", g.DayMaster))
	}

	if gender != "" && r.TotalEnergy > 0 {
		star := constants.TenGodWealth
		if gender == constants.GenderFemale {
			star = constants.TenGodOfficer
		}
		share := 100 * r.TenGods.Get(star) / r.TotalEnergy
		details = append(details, fmt.Sprintf("spouse star (%s, %s) carries %.1f%% of chart energy",
			star, elementFor(dm, star), share))
	}
	return details
}

// elementFor returns the element standing in ten-god relation god to dm.
func elementFor(dm chart.Element, god string) chart.Element {
	for _, e := range chart.Elements() {
		if constants.TenGodAt(e.Offset(dm)) == god {
			return e
		}
	}
	return dm
}
