// Package batch scores many charts in parallel. A malformed case never aborts
// the run: its error is recorded on its outcome and the remaining cases are
// still scored.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/logging"
)

// Case is one chart in a batch file.
type Case struct {
	ID string `json:"id" yaml:"id"`

	analysis.WealthRequest `yaml:",inline"`
}

// Outcome is the result of scoring one case. Exactly one of Report and
// Error is set.
type Outcome struct {
	ID     string                 `json:"id"`
	Index  int                    `json:"index"`
	Report *analysis.Report       `json:"report,omitempty"`
	Wealth *analysis.WealthReport `json:"wealth,omitempty"`
	Error  string                 `json:"error,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// OK reports whether the case scored without error.
func (o Outcome) OK() bool { return o.Error == "" }

// Summary counts the outcomes of a run.
type Summary struct {
	RunID     string                  `json:"run_id"`
	Total     int                     `json:"total"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Labels    map[constants.Label]int `json:"labels"`
	Started   time.Time               `json:"started"`
	Elapsed   time.Duration           `json:"elapsed_ns"`
}

// String renders a one-line human summary.
func (s Summary) String() string {
	return fmt.Sprintf("run %s: %s cases, %s scored, %s failed in %s (started %s)",
		s.RunID,
		humanize.Comma(int64(s.Total)),
		humanize.Comma(int64(s.Succeeded)),
		humanize.Comma(int64(s.Failed)),
		s.Elapsed.Round(time.Millisecond),
		humanize.Time(s.Started))
}

// Result is a completed run: the summary plus one outcome per case in input
// order.
type Result struct {
	Summary  Summary   `json:"summary"`
	Outcomes []Outcome `json:"outcomes"`
}

// Runner scores cases with a bounded worker pool.
type Runner struct {
	analyzer *analysis.Analyzer
	workers  int
	logger   *slog.Logger
}

// NewRunner returns a Runner using at most workers goroutines.
func NewRunner(a *analysis.Analyzer, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{analyzer: a, workers: max(workers, 1), logger: logger}
}

// Run scores every case. Per-case failures are captured on the outcome; only
// cancellation of ctx stops the run early and is returned as an error.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Result, error) {
	started := time.Now()
	runID := uuid.New().String()
	outcomes := make([]Outcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.score(i, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", runID, err)
	}

	sum := Summary{
		RunID:   runID,
		Total:   len(cases),
		Labels:  make(map[constants.Label]int),
		Started: started,
		Elapsed: time.Since(started),
	}
	for _, o := range outcomes {
		if !o.OK() {
			sum.Failed++
			continue
		}
		sum.Succeeded++
		sum.Labels[o.Report.StrengthLabel]++
	}

	r.logger.Info("batch complete",
		"run_id", runID,
		"total", sum.Total,
		"failed", sum.Failed,
		"elapsed", sum.Elapsed)
	return &Result{Summary: sum, Outcomes: outcomes}, nil
}

func (r *Runner) score(i int, c Case) Outcome {
	id := c.ID
	if id == "" {
		id = fmt.Sprintf("case-%d", i+1)
	}
	start := time.Now()
	out := Outcome{ID: id, Index: i}

	var report *analysis.Report
	var err error
	if c.Gender != "" {
		report, out.Wealth, err = r.analyzer.AnalyzeWealth(c.WealthRequest)
	} else {
		report, err = r.analyzer.Analyze(c.Request)
	}
	out.Duration = time.Since(start)
	if err != nil {
		r.logger.Warn("case failed", "case", id, "error", err)
		out.Error = err.Error()
		out.Wealth = nil
		return out
	}
	out.Report = report
	return out
}
