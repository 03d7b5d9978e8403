package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <year> <month> <day> <hour>",
		Short: "Score a four-pillar chart",
		Long: `Build the energy graph of a chart, propagate it and report the day
master strength, the final energy of each element and the domain scores.

Examples:
  qiflow analyze 庚子 乙丑 丙寅 戊寅
  qiflow analyze "庚子 乙丑 丙寅 戊寅" --annual 丁未 --luck 丁巳
  qiflow analyze 庚子 乙丑 丙寅 戊寅 --geo Fire=1.2 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			req, err := chartRequest(cmd, args)
			if err != nil {
				return err
			}

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.analyzer.Analyze(req)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	addChartFlags(cmd)

	return cmd
}
