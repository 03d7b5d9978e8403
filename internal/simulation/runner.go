package simulation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/logging"
)

// CalibrationDir returns the directory holding the calibration files.
func CalibrationDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return filepath.Join("testdata", "calibration")
	}
	return filepath.Join(filepath.Dir(file), "testdata", "calibration")
}

// LoadCalibration reads the named calibration file as a partial override
// map.
func LoadCalibration(name string) (map[string]any, error) {
	path := filepath.Join(CalibrationDir(), name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration %s: %w", name, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", name, err)
	}
	return m, nil
}

// Runner executes scenarios against the real analysis pipeline.
type Runner struct {
	t *testing.T
}

// NewRunner creates a simulation runner with a sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &Runner{t: t}
}

// Config builds the configuration a scenario runs on: defaults, then the
// calibration file, then inline overrides.
func (r *Runner) Config(scenario Scenario) *config.Config {
	r.t.Helper()
	cfg := config.Default()

	if scenario.Calibration != "" {
		overrides, err := LoadCalibration(scenario.Calibration)
		if err != nil {
			r.t.Fatalf("%s: %v", scenario.Name, err)
		}
		if cfg, err = config.Merge(cfg, overrides); err != nil {
			r.t.Fatalf("%s: merge calibration: %v", scenario.Name, err)
		}
	}
	if len(scenario.Overrides) > 0 {
		var err error
		if cfg, err = config.Merge(cfg, scenario.Overrides); err != nil {
			r.t.Fatalf("%s: merge overrides: %v", scenario.Name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		r.t.Fatalf("%s: %v", scenario.Name, err)
	}
	return cfg
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	cfg := r.Config(scenario)

	var decisions bytes.Buffer
	a, err := analysis.New(cfg, nil, logging.NewDecisionWriter(&decisions, false))
	if err != nil {
		r.t.Fatalf("%s: analysis.New: %v", scenario.Name, err)
	}

	cases := make([]CaseResult, len(scenario.Cases))
	for i, c := range scenario.Cases {
		trace, err := a.Trace(c.Request.Request)
		if err != nil {
			r.t.Fatalf("%s/%s: Trace: %v", scenario.Name, c.Label, err)
		}
		wealth, err := a.CalculateWealthIndex(c.Request)
		if err != nil {
			r.t.Fatalf("%s/%s: CalculateWealthIndex: %v", scenario.Name, c.Label, err)
		}
		cases[i] = CaseResult{Index: i, Label: c.Label, Trace: trace, Wealth: wealth}
	}

	return SimulationResult{
		Scenario:  scenario.Name,
		Config:    cfg,
		Cases:     cases,
		Decisions: r.parseDecisions(&decisions),
	}
}

func (r *Runner) parseDecisions(buf *bytes.Buffer) []map[string]any {
	r.t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			r.t.Fatalf("decision log line %d: %v", len(out)+1, err)
		}
		out = append(out, m)
	}
	return out
}
