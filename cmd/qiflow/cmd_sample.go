package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/sampling"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <year> <month> <day> <hour>",
		Short: "Score a chart under randomly perturbed configurations",
		Long: `Run the analysis once on the configured model and then on randomly
perturbed copies of it, and report the mean and spread of every score.

A fixed seed makes the run reproducible.

Examples:
  qiflow sample 庚子 乙丑 丙寅 戊寅 --samples 200 --seed 7`,
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

			overrides := map[string]any{}
			if cmd.Flags().Changed("samples") {
				n, _ := cmd.Flags().GetInt("samples")
				overrides["samples"] = n
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				overrides["seed"] = seed
			}
			if cmd.Flags().Changed("perturbation") {
				band, _ := cmd.Flags().GetFloat64("perturbation")
				overrides["perturbation"] = band
			}
			cfg, err := config.Merge(eng.cfg, map[string]any{"sampling": overrides})
			if err != nil {
				return fmt.Errorf("sampling config: %w", err)
			}

			sampler, err := sampling.New(cfg, eng.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := sampler.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("sample: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Chart:     %s\n", res.Chart)
			fmt.Fprintf(w, "Samples:   %d (seed %d, ±%.0f%%)\n", res.Samples, res.Seed, res.Perturbation*100)
			fmt.Fprintf(w, "Baseline:  %s (%.1f)\n", res.Baseline.StrengthLabel, res.Baseline.StrengthScore)
			fmt.Fprintf(w, "Strength:  %.1f ± %.1f, mostly %s\n", res.StrengthScore.Mean, res.StrengthScore.StdDev, res.ModalLabel)
			fmt.Fprintf(w, "Stability: %.3f\n", res.Stability)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Labels:")
			for _, l := range constants.Labels() {
				if n := res.Labels[l]; n > 0 {
					fmt.Fprintf(w, "  %-15s %d\n", l, n)
				}
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Domains:")
			for _, d := range constants.Domains() {
				s := res.Domains[d]
				fmt.Fprintf(w, "  %-13s %5.1f ± %.1f\n", d, s.Mean, s.StdDev)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Elements:")
			for _, e := range chart.Elements() {
				s := res.Elements[e.String()]
				fmt.Fprintf(w, "  %-6s %8.2f ± %.2f\n", e, s.Mean, s.StdDev)
			}
			return nil
		},
	}

	addChartFlags(cmd)
	cmd.Flags().Int("samples", 0, "Number of perturbed runs (default from sampling.samples)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from sampling.seed)")
	cmd.Flags().Float64("perturbation", 0, "Perturbation band, e.g. 0.1 for ±10% (default from sampling.perturbation)")

	return cmd
}
