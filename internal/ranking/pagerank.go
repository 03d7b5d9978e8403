// Package ranking scores how much transfer flow reaches each node of an
// energy graph.
package ranking

import (
	"math"

	"github.com/nvandessel/qiflow/internal/matrix"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// PageRank calculates weighted PageRank over a transfer matrix and returns
// one score per node, normalized so the highest scores 1.
//
// Algorithm: power iteration on the directed graph with edge i->j weighted
// by |W[i][j]|. Generation and control both count as influence, so signs
// are ignored; self loops are skipped.
//
//	PR(j) = (1-d)/N + d * (dangling/N + sum_i PR(i) * |W[i][j]| / out(i))
//
// where out(i) is the row magnitude of i and dangling is the rank held by
// nodes with no outgoing edges, spread evenly.
func PageRank(m *matrix.Matrix, config PageRankConfig) []float64 {
	n := m.Len()
	if n == 0 {
		return nil
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				out[i] += math.Abs(m.At(i, j))
			}
		}
	}

	d := config.DampingFactor
	nf := float64(n)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / nf
	}

	next := make([]float64, n)
	for iter := 0; iter < config.MaxIterations; iter++ {
		dangling := 0.0
		for i, s := range scores {
			if out[i] == 0 {
				dangling += s
			}
		}

		base := (1.0-d)/nf + d*dangling/nf
		for j := range next {
			next[j] = base
		}
		for i := 0; i < n; i++ {
			if out[i] == 0 {
				continue
			}
			share := d * scores[i] / out[i]
			for j := 0; j < n; j++ {
				if i != j {
					next[j] += share * math.Abs(m.At(i, j))
				}
			}
		}

		maxDelta := 0.0
		for j := range next {
			maxDelta = max(maxDelta, math.Abs(next[j]-scores[j]))
		}
		scores, next = next, scores

		if maxDelta < config.Tolerance {
			break
		}
	}

	// Normalize to [0, 1] by dividing by max score.
	maxScore := 0.0
	for _, s := range scores {
		maxScore = max(maxScore, s)
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores
}
