package store

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/qiflow/internal/batch"
)

// FromBatch converts a completed batch into rows. source names the case file
// and cfgYAML is the configuration the batch ran with.
func FromBatch(res *batch.Result, source string, cfgYAML []byte) (Run, []Result, error) {
	s := res.Summary
	run := Run{
		ID:        s.RunID,
		Source:    source,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Started:   s.Started.UTC(),
		ElapsedMS: s.Elapsed.Milliseconds(),
		Config:    string(cfgYAML),
	}

	rows := make([]Result, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		row := Result{RunID: s.RunID, CaseID: o.ID, Position: o.Index}
		if !o.OK() {
			msg := o.Error
			row.Error = &msg
			rows = append(rows, row)
			continue
		}

		data, err := json.Marshal(o.Report)
		if err != nil {
			return Run{}, nil, fmt.Errorf("encoding report %s: %w", o.ID, err)
		}
		score := o.Report.StrengthScore
		label := o.Report.StrengthLabel.String()
		row.Chart = o.Report.Chart
		row.StrengthScore = &score
		row.StrengthLabel = &label
		row.Report = string(data)
		if o.Wealth != nil {
			w := o.Wealth.WealthIndex
			row.WealthIndex = &w
		}
		rows = append(rows, row)
	}
	return run, rows, nil
}
