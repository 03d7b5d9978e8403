package matrix

import (
	"math"

	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/vecmath"
)

// Attention re-weights the static prior's edges with multi-head attention
// over node energies. Each head scores edge i->j as
// LeakyReLU(a·ẽ_i + b·ẽ_j + c·p̃_ij) with ẽ the energies scaled to their
// maximum and p̃ the prior magnitudes scaled to theirs; scores are
// softmax-normalised per source row and averaged across heads. The result
// keeps the prior's sign pattern and each row's total magnitude, so only the
// distribution of a node's outflow across its edges changes.
type Attention struct{}

// Name implements Strategy.
func (Attention) Name() string { return "attention" }

// Compute implements Strategy.
func (Attention) Compute(g *graph.Graph, cfg *config.Config) *Matrix {
	prior := StaticPrior{}.Compute(g, cfg)
	n := prior.Len()
	out := New(n)

	heads := cfg.GAT.Heads
	if len(heads) == 0 {
		return prior
	}

	energy := vecmath.ScaleToMax(g.Initial())
	var peak float64
	for i := range prior.W {
		for _, w := range prior.W[i] {
			peak = math.Max(peak, math.Abs(w))
		}
	}
	if peak == 0 {
		return out
	}

	scores := make([]float64, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		magnitude := prior.RowMagnitude(i)
		if magnitude == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			mask[j] = prior.W[i][j] != 0
		}

		avg := make([]float64, n)
		for _, h := range heads {
			if len(h) < 3 {
				continue
			}
			for j := 0; j < n; j++ {
				p := math.Abs(prior.W[i][j]) / peak
				scores[j] = vecmath.LeakyReLU(h[0]*energy[i]+h[1]*energy[j]+h[2]*p, cfg.GAT.LeakySlope)
			}
			alpha := vecmath.Softmax(scores, cfg.GAT.Temperature, mask)
			for j := range avg {
				avg[j] += alpha[j] / float64(len(heads))
			}
		}

		for j := 0; j < n; j++ {
			if !mask[j] {
				continue
			}
			out.W[i][j] = math.Copysign(avg[j]*magnitude, prior.W[i][j])
		}
	}
	return out
}
