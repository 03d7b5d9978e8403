// Package mcp provides an MCP (Model Context Protocol) server for qiflow.
package mcp

import (
	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/sampling"
)

// ChartInput is the chart shared by every tool.
type ChartInput struct {
	Pillars   []string           `json:"pillars" jsonschema:"Year, month, day and hour pillars as stem+branch pairs, e.g. [\"庚子\",\"乙丑\",\"丙寅\",\"戊寅\"]"`
	DayMaster string             `json:"day_master,omitempty" jsonschema:"Optional day stem; must match the day pillar"`
	Luck      string             `json:"luck,omitempty" jsonschema:"Optional luck pillar"`
	Annual    string             `json:"annual,omitempty" jsonschema:"Optional annual pillar"`
	Geo       map[string]float64 `json:"geo,omitempty" jsonschema:"Optional initial-energy multipliers keyed by element (Wood, Fire, Earth, Metal, Water)"`
}

func (c ChartInput) request() analysis.Request {
	return analysis.Request{
		Pillars:   c.Pillars,
		DayMaster: c.DayMaster,
		Luck:      c.Luck,
		Annual:    c.Annual,
		Geo:       c.Geo,
	}
}

func (c ChartInput) params() map[string]any {
	return map[string]any{
		"pillars":    c.Pillars,
		"day_master": c.DayMaster,
		"luck":       c.Luck,
		"annual":     c.Annual,
		"geo":        c.Geo,
	}
}

// AnalyzeInput defines the input for the qiflow_analyze tool.
type AnalyzeInput struct {
	ChartInput
}

// AnalyzeOutput defines the output for the qiflow_analyze tool.
type AnalyzeOutput struct {
	Report *analysis.Report `json:"report" jsonschema:"Strength score, label, domain scores and triggers"`
}

// WealthInput defines the input for the qiflow_wealth tool.
type WealthInput struct {
	ChartInput
	Gender constants.Gender `json:"gender,omitempty" jsonschema:"Optional 'male' or 'female'; selects the spouse star reading"`
}

// WealthOutput defines the output for the qiflow_wealth tool.
type WealthOutput struct {
	Report *analysis.WealthReport `json:"report" jsonschema:"Wealth index, opportunity band and detail lines"`
}

// GraphInput defines the input for the qiflow_graph tool.
type GraphInput struct {
	ChartInput
	Format    string  `json:"format,omitempty" jsonschema:"Output format: 'json' (default) or 'dot'"`
	MinWeight float64 `json:"min_weight,omitempty" jsonschema:"Hide transfer edges with smaller absolute weight (default 0.01)"`
}

// GraphOutput defines the output for the qiflow_graph tool.
type GraphOutput struct {
	Format    string `json:"format" jsonschema:"Format of the rendered graph"`
	Graph     any    `json:"graph" jsonschema:"DOT source or JSON graph"`
	NodeCount int    `json:"node_count" jsonschema:"Number of nodes"`
	EdgeCount int    `json:"edge_count" jsonschema:"Number of rendered edges"`
}

// SampleInput defines the input for the qiflow_sample tool.
type SampleInput struct {
	ChartInput
	Samples int    `json:"samples,omitempty" jsonschema:"Number of perturbed runs; capped by sampling.max_samples"`
	Seed    uint64 `json:"seed,omitempty" jsonschema:"Seed overriding sampling.seed"`
}

// SampleOutput defines the output for the qiflow_sample tool.
type SampleOutput struct {
	Result *sampling.Result `json:"result" jsonschema:"Baseline plus mean and variance of every score"`
}
