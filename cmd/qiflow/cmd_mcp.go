package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/mcp"
	"github.com/nvandessel/qiflow/internal/store"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as an MCP server over stdio",
		Long: `Run qiflow as a Model Context Protocol server on stdin/stdout.

Tools: qiflow_analyze, qiflow_wealth, qiflow_graph, qiflow_sample.
Resource: qiflow://config, the active configuration.

Every tool call is recorded without its chart in ~/.qiflow/audit.jsonl.
Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

			dir, err := decisionDir(cfg)
			if err != nil {
				return err
			}
			decisions := logging.NewDecisionLogger(dir, cfg.Logging.Level)
			defer decisions.Close()

			auditDir := ""
			if !noAudit {
				if auditDir, err = store.GlobalDir(); err != nil {
					return err
				}
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "qiflow",
				Version:   version,
				Engine:    cfg,
				Logger:    logger,
				Decisions: decisions,
				AuditDir:  auditDir,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "version", version)
			return server.Run(context.Background())
		},
	}

	cmd.Flags().Bool("no-audit", false, "Do not write the tool audit log")

	return cmd
}
