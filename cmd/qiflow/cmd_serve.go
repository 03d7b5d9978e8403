package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/api"
	"github.com/nvandessel/qiflow/internal/sampling"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long: `Serve the engine as a JSON HTTP API.

Endpoints:
  POST /v1/analyze   chart -> analysis report
  POST /v1/wealth    chart + gender -> wealth report
  POST /v1/sample    chart -> sampling result (disable with --no-sample)
  GET  /healthz
  GET  /metrics      Prometheus metrics

Requests under /v1 are rate limited per client address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			rate, _ := cmd.Flags().GetFloat64("rate")
			burst, _ := cmd.Flags().GetInt("burst")
			noSample, _ := cmd.Flags().GetBool("no-sample")

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			var sampler *sampling.Sampler
			if !noSample {
				sampler, err = sampling.New(eng.cfg, eng.logger)
				if err != nil {
					return err
				}
			}

			opts := api.DefaultOptions()
			opts.RatePerSecond = rate
			opts.Burst = burst
			srv := api.New(eng.analyzer, sampler, eng.logger, opts)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	defaults := api.DefaultOptions()
	cmd.Flags().String("addr", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().Float64("rate", defaults.RatePerSecond, "Requests per second allowed per client")
	cmd.Flags().Int("burst", defaults.Burst, "Burst size per client")
	cmd.Flags().Bool("no-sample", false, "Disable the /v1/sample endpoint")

	return cmd
}
