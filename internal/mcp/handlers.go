package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/ratelimit"
	"github.com/nvandessel/qiflow/internal/visualization"
)

// configResourceURI serves the active engine configuration.
const configResourceURI = "qiflow://config"

// registerTools registers all qiflow MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        constants.ToolAnalyze,
		Description: "Analyse a four-pillar chart: elemental energies, day master strength score and label, career/wealth/relationship scores",
	}, s.handleAnalyze)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        constants.ToolWealth,
		Description: "Compute the wealth index (0-100) of a chart with its opportunity band and vault, capacity and spouse-star details",
	}, s.handleWealth)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        constants.ToolGraph,
		Description: "Render the energy graph and transfer matrix of a chart in DOT (Graphviz) or JSON format",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        constants.ToolSample,
		Description: "Run the analysis on randomly perturbed configurations and report the mean and variance of every score",
	}, s.handleSample)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         configResourceURI,
		Name:        "qiflow-config",
		Description: "The engine configuration every qiflow tool call runs with.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)
}

func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := s.analyzer.Config().Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      configResourceURI,
				MIMEType: "application/yaml",
				Text:     string(data),
			},
		},
	}, nil
}

// handleAnalyze implements the qiflow_analyze tool.
func (s *Server) handleAnalyze(ctx context.Context, req *sdk.CallToolRequest, args AnalyzeInput) (_ *sdk.CallToolResult, _ AnalyzeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(constants.ToolAnalyze, start, retErr, sanitizeToolParams(args.params()))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, constants.ToolAnalyze); err != nil {
		return nil, AnalyzeOutput{}, err
	}

	report, err := s.analyzer.Analyze(args.request())
	if err != nil {
		return nil, AnalyzeOutput{}, fmt.Errorf("analyze: %w", err)
	}
	return nil, AnalyzeOutput{Report: report}, nil
}

// handleWealth implements the qiflow_wealth tool.
func (s *Server) handleWealth(ctx context.Context, req *sdk.CallToolRequest, args WealthInput) (_ *sdk.CallToolResult, _ WealthOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := args.params()
		params["gender"] = string(args.Gender)
		s.auditTool(constants.ToolWealth, start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, constants.ToolWealth); err != nil {
		return nil, WealthOutput{}, err
	}

	report, err := s.analyzer.CalculateWealthIndex(analysis.WealthRequest{
		Request: args.request(),
		Gender:  args.Gender,
	})
	if err != nil {
		return nil, WealthOutput{}, fmt.Errorf("wealth index: %w", err)
	}
	return nil, WealthOutput{Report: report}, nil
}

// handleGraph implements the qiflow_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := args.params()
		params["format"] = args.Format
		params["min_weight"] = args.MinWeight
		s.auditTool(constants.ToolGraph, start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, constants.ToolGraph); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}
	minWeight := args.MinWeight
	if minWeight <= 0 {
		minWeight = visualization.DefaultMinWeight
	}

	trace, err := s.analyzer.Trace(args.request())
	if err != nil {
		return nil, GraphOutput{}, fmt.Errorf("analyze: %w", err)
	}

	switch visualization.Format(format) {
	case visualization.FormatDOT:
		dot, err := visualization.RenderDOT(trace, minWeight)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render DOT: %w", err)
		}
		return nil, GraphOutput{
			Format:    "dot",
			Graph:     dot,
			NodeCount: trace.Graph.Len(),
			EdgeCount: len(visualization.CollectEdges(trace, minWeight)),
		}, nil

	case visualization.FormatJSON:
		g, err := visualization.RenderJSON(trace, minWeight)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render JSON: %w", err)
		}
		return nil, GraphOutput{
			Format:    "json",
			Graph:     g,
			NodeCount: g.NodeCount,
			EdgeCount: g.EdgeCount,
		}, nil

	default:
		return nil, GraphOutput{}, fmt.Errorf("unsupported format %q (use 'dot' or 'json')", format)
	}
}

// handleSample implements the qiflow_sample tool.
func (s *Server) handleSample(ctx context.Context, req *sdk.CallToolRequest, args SampleInput) (_ *sdk.CallToolResult, _ SampleOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := args.params()
		params["samples"] = args.Samples
		params["seed"] = args.Seed
		s.auditTool(constants.ToolSample, start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, constants.ToolSample); err != nil {
		return nil, SampleOutput{}, err
	}

	sampler, err := s.newSampler(args.Samples, args.Seed)
	if err != nil {
		return nil, SampleOutput{}, fmt.Errorf("sampling config: %w", err)
	}
	res, err := sampler.Run(ctx, args.request())
	if err != nil {
		return nil, SampleOutput{}, fmt.Errorf("sample: %w", err)
	}
	return nil, SampleOutput{Result: res}, nil
}
