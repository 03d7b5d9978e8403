package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qiflow",
		Short: "Elemental energy graph engine for four-pillar charts",
		Long: `qiflow scores four-pillar charts by building a graph of elemental
energy nodes, propagating energy along generating and controlling edges,
and grading the result.

It reports day master strength, career, wealth and relationship scores,
and can render the energy graph, sample perturbed configurations, score
whole batches, and serve the engine over HTTP or MCP.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.qiflow/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAnalyzeCmd(),
		newWealthCmd(),
		newGraphCmd(),
		newSampleCmd(),
		newBatchCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newServeCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "qiflow version %s\n", version)
			}
		},
	}
}
