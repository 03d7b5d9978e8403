package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/constants"
)

func newWealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wealth <year> <month> <day> <hour>",
		Short: "Compute the wealth index of a chart",
		Long: `Score a chart and report its wealth index (0-100), the opportunity band
and the vault, capacity and spouse-star readings behind it.

Examples:
  qiflow wealth 庚子 乙丑 丙寅 戊寅 --annual 丁未 --gender male`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			gender, _ := cmd.Flags().GetString("gender")

			req, err := chartRequest(cmd, args)
			if err != nil {
				return err
			}

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.analyzer.CalculateWealthIndex(analysis.WealthRequest{
				Request: req,
				Gender:  constants.Gender(gender),
			})
			if err != nil {
				return fmt.Errorf("wealth index: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Chart:        %s\n", report.Chart)
			fmt.Fprintf(w, "Wealth index: %.1f (%s)\n", report.WealthIndex, report.Opportunity)
			fmt.Fprintf(w, "Strength:     %s (%.1f)\n", report.StrengthLabel, report.StrengthScore)
			if len(report.Details) > 0 {
				fmt.Fprintln(w)
				for _, d := range report.Details {
					fmt.Fprintf(w, "  %s\n", d)
				}
			}
			printTriggers(w, report.Triggers)
			return nil
		},
	}

	addChartFlags(cmd)
	cmd.Flags().String("gender", "", "male or female; enables the spouse-star reading")

	return cmd
}
