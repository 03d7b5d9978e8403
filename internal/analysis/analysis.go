// Package analysis is the public entry point of the energy graph engine.
// An analysis runs a fixed pipeline of pure stages (parse, nodes, matrix,
// propagate, baseline, score) threaded through one typed state value, and
// returns a Report. The wealth wrapper specialises the report for the wealth domain.
package analysis

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/matrix"
	"github.com/nvandessel/qiflow/internal/propagation"
	"github.com/nvandessel/qiflow/internal/scoring"
)

// Request is one chart to analyse.
type Request struct {
	// Pillars are the year, month, day and hour pillars, e.g. "甲子".
	Pillars []string `json:"pillars" yaml:"pillars"`

	// DayMaster optionally names the day stem; it must match the day pillar.
	DayMaster string `json:"day_master,omitempty" yaml:"day_master,omitempty"`

	Luck   string `json:"luck,omitempty" yaml:"luck,omitempty"`
	Annual string `json:"annual,omitempty" yaml:"annual,omitempty"`

	// Geo maps element names (Wood, Fire, Earth, Metal, Water) to
	// initial-energy multipliers.
	Geo map[string]float64 `json:"geo,omitempty" yaml:"geo,omitempty"`
}

// Report is the outcome of one analysis.
type Report struct {
	Chart     string `json:"chart"`
	DayMaster string `json:"day_master"`

	Elements      map[string]float64                 `json:"elements"`
	TenGods       scoring.TenGods                    `json:"ten_gods"`
	TotalEnergy   float64                            `json:"total_energy"`
	StrengthScore float64                            `json:"strength_score"`
	StrengthLabel constants.Label                    `json:"strength_label"`
	Domains       map[string]float64                 `json:"domains"`
	Details       map[string]scoring.DomainBreakdown `json:"domain_details"`
	Triggers      []string                           `json:"triggers"`

	// Strategy names the matrix strategy that produced the transfer matrix.
	Strategy string `json:"strategy"`
	Rounds   int    `json:"rounds"`
}

// Trace exposes the intermediate values of one analysis for rendering.
type Trace struct {
	Graph  *graph.Graph
	Matrix *matrix.Matrix
	Run    propagation.Result
	Report *Report
}

// state is the typed context threaded through the pipeline stages.
type state struct {
	req    Request
	record bool

	chart    chart.Chart
	geo      graph.GeoModifiers
	graph    *graph.Graph
	strategy matrix.Strategy
	matrix   *matrix.Matrix
	run      propagation.Result
	baseline *scoring.Baseline
	score    scoring.Result
}

type stage struct {
	name string
	run  func(cfg *config.Config, s *state) error
}

var pipeline = []stage{
	{"parse", parseStage},
	{"nodes", nodesStage},
	{"matrix", matrixStage},
	{"propagate", propagateStage},
	{"baseline", baselineStage},
	{"score", scoreStage},
}

func parseStage(_ *config.Config, s *state) error {
	c, err := chart.Parse(s.req.Pillars, s.req.Luck, s.req.Annual)
	if err != nil {
		return err
	}
	if err := c.CheckDayMaster(s.req.DayMaster); err != nil {
		return err
	}
	geo, err := ParseGeo(s.req.Geo)
	if err != nil {
		return err
	}
	s.chart, s.geo = c, geo
	return nil
}

func nodesStage(cfg *config.Config, s *state) error {
	s.graph = graph.Build(s.chart, cfg, s.geo)
	return nil
}

func matrixStage(cfg *config.Config, s *state) error {
	s.strategy = matrix.ForConfig(cfg)
	s.matrix = s.strategy.Compute(s.graph, cfg)
	return nil
}

func propagateStage(cfg *config.Config, s *state) error {
	e := propagation.NewEngine(cfg)
	if s.record {
		s.run = e.PropagateWithSteps(s.graph, s.matrix)
	} else {
		s.run = e.Propagate(s.graph, s.matrix)
	}
	return nil
}

// baselineStage analyses the chart again without geo modifiers, so strength
// under geography is measured against the unmodified chart.
func baselineStage(cfg *config.Config, s *state) error {
	if len(s.geo) == 0 {
		return nil
	}
	g := graph.Build(s.chart, cfg, nil)
	m := s.strategy.Compute(g, cfg)
	s.baseline = &scoring.Baseline{Graph: g, Run: propagation.NewEngine(cfg).Propagate(g, m)}
	return nil
}

func scoreStage(cfg *config.Config, s *state) error {
	s.score = scoring.ScoreAgainst(s.graph, s.run, s.baseline, cfg)
	return nil
}

// execute runs every stage in order and stops at the first error.
func execute(cfg *config.Config, req Request, record bool) (*state, error) {
	s := &state{req: req, record: record}
	for _, st := range pipeline {
		if err := st.run(cfg, s); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return s, nil
}

func (s *state) report() *Report {
	r := s.score
	return &Report{
		Chart:         s.chart.String(),
		DayMaster:     s.chart.DayMaster().String(),
		Elements:      r.Elements,
		TenGods:       r.TenGods,
		TotalEnergy:   r.TotalEnergy,
		StrengthScore: r.StrengthScore,
		StrengthLabel: r.StrengthLabel,
		Domains:       r.Domains,
		Details:       r.Details,
		Triggers:      r.Triggers,
		Strategy:      s.strategy.Name(),
		Rounds:        s.run.Rounds,
	}
}

// Evaluate runs the deterministic core on cfg without validating it. It is
// the building block for callers that derive many configurations, such as
// the sampling wrapper. Most callers want Analyzer.Analyze.
func Evaluate(cfg *config.Config, req Request) (*Report, error) {
	s, err := execute(cfg, req, false)
	if err != nil {
		return nil, err
	}
	return s.report(), nil
}

// ParseGeo converts element-keyed multipliers to graph modifiers. Keys are
// matched case-insensitively; an unknown key is an UnknownSymbolError.
func ParseGeo(m map[string]float64) (graph.GeoModifiers, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(graph.GeoModifiers, len(m))
	for k, v := range m {
		e, ok := chart.ParseElement(k)
		if !ok {
			return nil, &chart.UnknownSymbolError{Symbol: k, Kind: "element"}
		}
		out[e] = v
	}
	return out, nil
}

// Analyzer runs analyses against one validated configuration. It is safe
// for concurrent use: the configuration is never mutated and every call
// allocates its own graph, matrix and propagation state.
type Analyzer struct {
	cfg       *config.Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New validates cfg and returns an Analyzer holding its own copy of it.
// logger and decisions may be nil.
func New(cfg *config.Config, logger *slog.Logger, decisions *logging.DecisionLogger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	own, err := cfg.Clone()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyzer{cfg: own, logger: logger, decisions: decisions}, nil
}

// Config returns the analyzer's configuration. Callers must not modify it.
func (a *Analyzer) Config() *config.Config { return a.cfg }

// Analyze scores one chart.
func (a *Analyzer) Analyze(req Request) (*Report, error) {
	s, err := a.run(req)
	if err != nil {
		return nil, err
	}
	return s.report(), nil
}

// Trace scores one chart and keeps the graph, matrix and per-round
// energies.
func (a *Analyzer) Trace(req Request) (*Trace, error) {
	s, err := execute(a.cfg, req, true)
	if err != nil {
		return nil, err
	}
	return &Trace{Graph: s.graph, Matrix: s.matrix, Run: s.run, Report: s.report()}, nil
}

func (a *Analyzer) run(req Request) (*state, error) {
	s, err := execute(a.cfg, req, a.decisions.Tracing())
	if err != nil {
		a.logger.Debug("analysis failed", "pillars", strings.Join(req.Pillars, " "), "error", err)
		return nil, err
	}

	r := s.score
	a.logger.Debug("analysis complete",
		"chart", s.chart.String(),
		"strength", r.StrengthScore,
		"label", r.StrengthLabel,
		"rounds", s.run.Rounds)

	a.decisions.Log(map[string]any{
		"event":          "analysis",
		"chart":          s.chart.String(),
		"strategy":       s.strategy.Name(),
		"strength_score": r.StrengthScore,
		"strength_label": string(r.StrengthLabel),
		"domains":        r.Domains,
		"triggers":       r.Triggers,
	})
	if a.decisions.Tracing() {
		for _, step := range s.run.Steps {
			a.decisions.Log(map[string]any{
				"event":  "propagation_round",
				"chart":  s.chart.String(),
				"round":  step.Round,
				"energy": step.Energy,
			})
		}
	}
	return s, nil
}
