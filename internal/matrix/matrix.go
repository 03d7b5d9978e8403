// Package matrix builds the signed transfer matrix between graph nodes.
// Positive weights carry generation, negative weights carry control. The
// construction is a strategy: a static physics prior, an attention matrix
// derived from node energies, or a blend of the two.
package matrix

import (
	"fmt"
	"math"

	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/graph"
)

// Matrix is a dense N×N weight matrix. W[i][j] is the weight of the edge
// from node i to node j.
type Matrix struct {
	W [][]float64
}

// New returns an n×n zero matrix.
func New(n int) *Matrix {
	w := make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
	}
	return &Matrix{W: w}
}

// Len returns the dimension.
func (m *Matrix) Len() int { return len(m.W) }

// At returns W[i][j].
func (m *Matrix) At(i, j int) float64 { return m.W[i][j] }

// RowMagnitude returns Σ_j |W[i][j]|.
func (m *Matrix) RowMagnitude(i int) float64 {
	var s float64
	for _, w := range m.W[i] {
		s += math.Abs(w)
	}
	return s
}

// Strategy computes a transfer matrix for a graph.
type Strategy interface {
	Name() string
	Compute(g *graph.Graph, cfg *config.Config) *Matrix
}

// ForConfig returns the strategy selected by configuration: the static prior,
// or a blend of the prior with attention when gat.enabled is set.
func ForConfig(cfg *config.Config) Strategy {
	if !cfg.GAT.Enabled {
		return StaticPrior{}
	}
	return Blend{A: StaticPrior{}, B: Attention{}, Ratio: cfg.GAT.MixRatio}
}

// Blend mixes two strategies: (1-Ratio)·A + Ratio·B.
type Blend struct {
	A, B  Strategy
	Ratio float64
}

// Name implements Strategy.
func (b Blend) Name() string {
	return fmt.Sprintf("blend(%s,%s,%.2f)", b.A.Name(), b.B.Name(), b.Ratio)
}

// Compute implements Strategy.
func (b Blend) Compute(g *graph.Graph, cfg *config.Config) *Matrix {
	r := b.Ratio
	if r <= 0 {
		return b.A.Compute(g, cfg)
	}
	if r >= 1 {
		return b.B.Compute(g, cfg)
	}
	ma, mb := b.A.Compute(g, cfg), b.B.Compute(g, cfg)
	out := New(ma.Len())
	for i := range out.W {
		for j := range out.W[i] {
			out.W[i][j] = (1-r)*ma.W[i][j] + r*mb.W[i][j]
		}
	}
	return out
}
