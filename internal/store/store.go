// Package store persists batch runs and their per-case results.
package store

import (
	"context"
	"time"
)

// Run is one stored batch run.
type Run struct {
	ID        string    `db:"id" json:"id"`
	Source    string    `db:"source" json:"source"`
	Total     int       `db:"total" json:"total"`
	Succeeded int       `db:"succeeded" json:"succeeded"`
	Failed    int       `db:"failed" json:"failed"`
	Started   time.Time `db:"started_at" json:"started"`
	ElapsedMS int64     `db:"elapsed_ms" json:"elapsed_ms"`

	// Config is the YAML configuration the run was scored with.
	Config string `db:"config_yaml" json:"-"`
}

// Result is one stored case outcome.
type Result struct {
	RunID         string   `db:"run_id" json:"run_id"`
	CaseID        string   `db:"case_id" json:"case_id"`
	Position      int      `db:"position" json:"position"`
	Chart         string   `db:"chart" json:"chart"`
	StrengthScore *float64 `db:"strength_score" json:"strength_score,omitempty"`
	StrengthLabel *string  `db:"strength_label" json:"strength_label,omitempty"`
	WealthIndex   *float64 `db:"wealth_index" json:"wealth_index,omitempty"`
	Error         *string  `db:"error" json:"error,omitempty"`

	// Report is the full JSON report, empty for failed cases.
	Report string `db:"report_json" json:"-"`
}

// RunStore stores batch runs.
type RunStore interface {
	// SaveRun writes a run and its results in one transaction.
	SaveRun(ctx context.Context, run Run, results []Result) error

	// GetRun returns a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first, at most limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Results returns a run's results in input order.
	Results(ctx context.Context, runID string) ([]Result, error)

	// Close releases resources.
	Close() error
}
