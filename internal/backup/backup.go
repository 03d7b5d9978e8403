// Package backup archives stored batch runs to portable files and restores
// them into a run store.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvandessel/qiflow/internal/store"
)

// Archive is the payload of an archive file.
type Archive struct {
	CreatedAt time.Time  `json:"created_at"`
	Runs      []RunEntry `json:"runs"`
}

// RunEntry is one run with everything needed to restore it.
type RunEntry struct {
	Run store.Run `json:"run"`

	// Config is the YAML configuration the run was scored with.
	Config  string        `json:"config_yaml"`
	Results []ResultEntry `json:"results"`
}

// ResultEntry is one stored result plus its full report.
type ResultEntry struct {
	store.Result

	ReportJSON json.RawMessage `json:"report,omitempty"`
}

// ResultCount returns the number of results across all runs.
func (a *Archive) ResultCount() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Results)
	}
	return n
}

// Export collects runs from st. With no ids every stored run is exported,
// most recent first.
func Export(ctx context.Context, st store.RunStore, ids []string) (*Archive, error) {
	if len(ids) == 0 {
		runs, err := st.ListRuns(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	archive := &Archive{
		CreatedAt: time.Now().UTC(),
		Runs:      make([]RunEntry, 0, len(ids)),
	}
	for _, id := range ids {
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		results, err := st.Results(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get results for %s: %w", id, err)
		}

		entry := RunEntry{Run: *run, Config: run.Config, Results: make([]ResultEntry, len(results))}
		for i, r := range results {
			entry.Results[i] = ResultEntry{Result: r}
			if r.Report != "" {
				entry.Results[i].ReportJSON = json.RawMessage(r.Report)
			}
		}
		archive.Runs = append(archive.Runs, entry)
	}
	return archive, nil
}

// Import saves every run of a into st, replacing runs with the same ID.
// It returns the number of runs written.
func Import(ctx context.Context, st store.RunStore, a *Archive) (int, error) {
	for i, entry := range a.Runs {
		run := entry.Run
		run.Config = entry.Config

		results := make([]store.Result, len(entry.Results))
		for j, r := range entry.Results {
			results[j] = r.Result
			results[j].Report = string(r.ReportJSON)
		}
		if err := st.SaveRun(ctx, run, results); err != nil {
			return i, fmt.Errorf("failed to restore run %s: %w", run.ID, err)
		}
	}
	return len(a.Runs), nil
}
