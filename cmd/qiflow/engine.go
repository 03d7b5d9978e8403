package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/store"
)

// engine bundles what every scoring command needs.
type engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	analyzer  *analysis.Analyzer
}

func (e *engine) Close() {
	e.decisions.Close()
}

// loadConfig resolves --config (or the default locations), then the
// QIFLOW_* environment, then --log-level. The result is validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
		if err == nil {
			config.ApplyEnvOverrides(cfg)
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decisionDir returns where decisions.jsonl is written.
func decisionDir(cfg *config.Config) (string, error) {
	if cfg.Logging.Dir != "" {
		return cfg.Logging.Dir, nil
	}
	return store.GlobalDir()
}

func newEngine(cmd *cobra.Command) (*engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	var decisions *logging.DecisionLogger
	if dir, err := decisionDir(cfg); err != nil {
		logger.Warn("decision logging disabled", "error", err)
	} else {
		decisions = logging.NewDecisionLogger(dir, cfg.Logging.Level)
	}

	a, err := analysis.New(cfg, logger, decisions)
	if err != nil {
		decisions.Close()
		return nil, err
	}
	return &engine{cfg: cfg, logger: logger, decisions: decisions, analyzer: a}, nil
}

// addChartFlags registers the chart options shared by the scoring commands.
func addChartFlags(cmd *cobra.Command) {
	cmd.Flags().String("luck", "", "Luck pillar, e.g. 丁巳")
	cmd.Flags().String("annual", "", "Annual pillar, e.g. 丁未")
	cmd.Flags().String("day-master", "", "Day stem; must match the day pillar")
	cmd.Flags().StringToString("geo", nil, "Initial-energy multipliers by element, e.g. Fire=1.2,Water=0.9")
}

// chartRequest builds a request from the positional pillars and chart flags.
// Pillars may be given as separate arguments or as one quoted string.
func chartRequest(cmd *cobra.Command, args []string) (analysis.Request, error) {
	luck, _ := cmd.Flags().GetString("luck")
	annual, _ := cmd.Flags().GetString("annual")
	dayMaster, _ := cmd.Flags().GetString("day-master")
	geoFlags, _ := cmd.Flags().GetStringToString("geo")

	var geo map[string]float64
	if len(geoFlags) > 0 {
		geo = make(map[string]float64, len(geoFlags))
		for k, v := range geoFlags {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return analysis.Request{}, fmt.Errorf("invalid --geo multiplier for %s: %q", k, v)
			}
			geo[k] = f
		}
	}

	return analysis.Request{
		Pillars:   strings.Fields(strings.Join(args, " ")),
		DayMaster: dayMaster,
		Luck:      luck,
		Annual:    annual,
		Geo:       geo,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func printReport(w io.Writer, r *analysis.Report) {
	fmt.Fprintf(w, "Chart:       %s\n", r.Chart)
	fmt.Fprintf(w, "Day master:  %s (%s, %.1f)\n", r.DayMaster, r.StrengthLabel, r.StrengthScore)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Elements:")
	for _, e := range chart.Elements() {
		fmt.Fprintf(w, "  %-6s %8.2f\n", e, r.Elements[e.String()])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Domains:")
	for _, d := range constants.Domains() {
		fmt.Fprintf(w, "  %-13s %5.1f\n", d, r.Domains[d])
	}
	printTriggers(w, r.Triggers)
	fmt.Fprintf(w, "\nMatrix: %s, %d rounds\n", r.Strategy, r.Rounds)
}

func printTriggers(w io.Writer, triggers []string) {
	if len(triggers) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Triggers:")
	for _, t := range triggers {
		fmt.Fprintf(w, "  - %s\n", t)
	}
}
