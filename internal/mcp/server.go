// Package mcp provides an MCP (Model Context Protocol) server for qiflow.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/ratelimit"
	"github.com/nvandessel/qiflow/internal/sampling"
)

// Server wraps the MCP SDK server and exposes the analysis engine as tools.
type Server struct {
	server       *sdk.Server
	analyzer     *analysis.Analyzer
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "qiflow")
	Version string // Server version

	// Engine is the analysis configuration; nil uses config.Default().
	Engine *config.Config

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string
}

// NewServer creates a new MCP server with the qiflow tools registered.
func NewServer(cfg *Config) (*Server, error) {
	engine := cfg.Engine
	if engine == nil {
		engine = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	a, err := analysis.New(engine, logger, cfg.Decisions)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		analyzer:     a,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}

// newSampler builds a sampler for one call, applying per-call overrides.
func (s *Server) newSampler(samples int, seed uint64) (*sampling.Sampler, error) {
	overrides := map[string]any{}
	if samples > 0 {
		overrides["samples"] = samples
	}
	if seed != 0 {
		overrides["seed"] = seed
	}
	cfg := s.analyzer.Config()
	if len(overrides) > 0 {
		var err error
		cfg, err = config.Merge(cfg, map[string]any{"sampling": overrides})
		if err != nil {
			return nil, err
		}
	}
	return sampling.New(cfg, s.logger)
}
