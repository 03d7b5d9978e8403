package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <year> <month> <day> <hour>",
		Short: "Visualize the energy graph of a chart",
		Long: `Output the energy graph of a chart in DOT (Graphviz) or JSON format.

Nodes carry their initial and final energy; edges are the non-zero entries
of the transfer matrix.

Examples:
  qiflow graph 庚子 乙丑 丙寅 戊寅 | dot -Tsvg > chart.svg
  qiflow graph 庚子 乙丑 丙寅 戊寅 --annual 丁未 --format json -o chart.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			minWeight, _ := cmd.Flags().GetFloat64("min-weight")
			output, _ := cmd.Flags().GetString("output")

			req, err := chartRequest(cmd, args)
			if err != nil {
				return err
			}

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			trace, err := eng.analyzer.Trace(req)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			out, err := visualization.Render(trace, visualization.Format(format), minWeight)
			if err != nil {
				return fmt.Errorf("render graph: %w", err)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(out), 0644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Graph written to %s\n", output)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	addChartFlags(cmd)
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().Float64("min-weight", visualization.DefaultMinWeight, "Hide edges with smaller absolute weight")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	return cmd
}
