package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/batch"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/store"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <cases-file>",
		Short: "Score every chart in a case file",
		Long: `Score a file of charts in parallel. YAML files hold a list of cases (or a
"cases" key); .jsonl files hold one case per line. A case is a chart plus
an optional id and gender; cases with a gender also get a wealth index.

A malformed case is reported and the rest of the batch still runs.

Examples:
  qiflow batch charts.yaml --workers 8
  qiflow batch charts.jsonl --save --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			workers, _ := cmd.Flags().GetInt("workers")
			save, _ := cmd.Flags().GetBool("save")
			dbPath, _ := cmd.Flags().GetString("db")
			path := args[0]

			cases, err := batch.LoadCases(path)
			if err != nil {
				return err
			}

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := batch.NewRunner(eng.analyzer, workers, eng.logger).Run(ctx, cases)
			if err != nil {
				return err
			}

			if save || dbPath != "" {
				saved, err := saveBatch(ctx, dbPath, path, eng, res)
				if err != nil {
					return err
				}
				eng.logger.Info("batch saved", "run_id", res.Summary.RunID, "db", saved)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Int("workers", 4, "Number of charts scored in parallel")
	cmd.Flags().Bool("save", false, "Store the run in the results database")
	cmd.Flags().String("db", "", "Results database (default ~/.qiflow/results.db); implies --save")

	return cmd
}

// saveBatch stores res and returns the database path used.
func saveBatch(ctx context.Context, dbPath, source string, eng *engine, res *batch.Result) (string, error) {
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return "", err
		}
	}

	cfgYAML, err := eng.cfg.Marshal()
	if err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	run, rows, err := store.FromBatch(res, source, cfgYAML)
	if err != nil {
		return "", err
	}

	st, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return "", fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SaveRun(ctx, run, rows); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return dbPath, nil
}

func printBatch(w io.Writer, res *batch.Result) {
	for _, o := range res.Outcomes {
		if !o.OK() {
			fmt.Fprintf(w, "%-12s error: %s\n", o.ID, o.Error)
			continue
		}
		line := fmt.Sprintf("%-12s %s  %-14s %5.1f", o.ID, o.Report.Chart, o.Report.StrengthLabel, o.Report.StrengthScore)
		if o.Wealth != nil {
			line += fmt.Sprintf("  wealth %5.1f (%s)", o.Wealth.WealthIndex, o.Wealth.Opportunity)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, res.Summary.String())
	for _, l := range constants.Labels() {
		if n := res.Summary.Labels[l]; n > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", l, n)
		}
	}
}
