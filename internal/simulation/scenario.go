package simulation

import (
	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Calibration names a file under testdata/calibration (without the
	// .yaml extension) whose partial overrides are merged over the defaults.
	Calibration string

	// Overrides are merged after the calibration file.
	Overrides map[string]any

	Cases []Case
}

// Case is one chart of a scenario.
type Case struct {
	// Label identifies the case in assertions.
	Label   string
	Request analysis.WealthRequest
}

// Natal builds a case from four natal pillars.
func Natal(label string, pillars ...string) Case {
	return Case{Label: label, Request: analysis.WealthRequest{
		Request: analysis.Request{Pillars: pillars},
	}}
}

// Annual builds a case from four natal pillars plus an annual pillar and
// gender.
func Annual(label, annual string, gender constants.Gender, pillars ...string) Case {
	c := Natal(label, pillars...)
	c.Request.Annual = annual
	c.Request.Gender = gender
	return c
}

// CaseResult captures the outcome of a single case.
type CaseResult struct {
	Index  int
	Label  string
	Trace  *analysis.Trace
	Wealth *analysis.WealthReport
}

// Report returns the analysis report of the case.
func (c CaseResult) Report() *analysis.Report { return c.Trace.Report }

// SimulationResult captures every case and the configuration they ran on.
type SimulationResult struct {
	Scenario string
	Config   *config.Config
	Cases    []CaseResult

	// Decisions are the decision log events written during the run.
	Decisions []map[string]any
}

// Case returns the result with the given label.
func (r SimulationResult) Case(label string) (CaseResult, bool) {
	for _, c := range r.Cases {
		if c.Label == label {
			return c, true
		}
	}
	return CaseResult{}, false
}
