package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/backup"
	"github.com/nvandessel/qiflow/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored batch runs, or show one run's results",
		Long: `Read the results database written by 'qiflow batch --save'.

Examples:
  qiflow runs                 # Most recent runs
  qiflow runs 6f1c...         # Results of one run
  qiflow runs export -o runs.qfa
  qiflow runs verify runs.qfa
  qiflow runs import runs.qfa`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := st.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(w, map[string]any{"runs": runs, "count": len(runs)})
				}
				if len(runs) == 0 {
					fmt.Fprintln(w, "No stored runs.")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(w, "%s  %s cases (%d failed)  %s  %s\n",
						r.ID, humanize.Comma(int64(r.Total)), r.Failed,
						humanize.Time(r.Started), r.Source)
				}
				return nil
			}

			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			results, err := st.Results(ctx, run.ID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(w, map[string]any{"run": run, "results": results})
			}

			fmt.Fprintf(w, "Run %s\n", run.ID)
			fmt.Fprintf(w, "  source:  %s\n", run.Source)
			fmt.Fprintf(w, "  started: %s (%s)\n", run.Started.Format(time.RFC3339), humanize.Time(run.Started))
			fmt.Fprintf(w, "  cases:   %d scored, %d failed in %s\n",
				run.Succeeded, run.Failed, time.Duration(run.ElapsedMS)*time.Millisecond)
			fmt.Fprintln(w)
			for _, r := range results {
				if r.Error != nil {
					fmt.Fprintf(w, "%-12s error: %s\n", r.CaseID, *r.Error)
					continue
				}
				line := fmt.Sprintf("%-12s %s  %-14s %5.1f", r.CaseID, r.Chart, deref(r.StrengthLabel), derefFloat(r.StrengthScore))
				if r.WealthIndex != nil {
					line += fmt.Sprintf("  wealth %5.1f", *r.WealthIndex)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.PersistentFlags().String("db", "", "Results database (default ~/.qiflow/results.db)")

	cmd.AddCommand(
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsVerifyCmd(),
	)

	return cmd
}

// openRunStore opens --db or the default results database.
func openRunStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	st, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run-id...]",
		Short: "Archive stored runs to a file",
		Long: `Write runs, their configurations and full reports to a compressed,
checksummed archive. With no run IDs every stored run is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			archive, err := backup.Export(context.Background(), st, args)
			if err != nil {
				return err
			}
			header, err := backup.Write(output, archive)
			if err != nil {
				return fmt.Errorf("write archive: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"path": output, "header": header})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs (%d results) to %s\n", header.RunCount, header.ResultCount, output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive file to write")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore runs from an archive",
		Long:  `Verify an archive and save its runs, replacing stored runs with the same ID.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			archive, header, err := backup.Read(args[0])
			if err != nil {
				return err
			}

			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := backup.Import(context.Background(), st, archive)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"imported": n, "header": header})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs (%d results) into %s\n", n, header.ResultCount, st.Path())
			return nil
		},
	}
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.Verify(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), header)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d runs, %d results, created %s)\n",
				args[0], header.RunCount, header.ResultCount, humanize.Time(header.CreatedAt))
			return nil
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
