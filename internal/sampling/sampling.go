// Package sampling implements the probabilistic scoring mode. It perturbs
// the model parameters of a configuration with a seeded generator, runs the
// deterministic analysis on every perturbed snapshot and reports the mean and
// variance of the outputs. The deterministic core never sees the generator.
package sampling

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/qiflow/internal/analysis"
	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/logging"
	"github.com/nvandessel/qiflow/internal/vecmath"
)

// perturbedGroups are the configuration groups holding model parameters.
var perturbedGroups = []string{"physics", "structure", "interactions", "flow", "spacetime"}

// fixedKeys are never perturbed: they are counts or switches, not weights.
var fixedKeys = map[string]bool{
	"iterations": true,
	"epsilon":    true,
}

// Stat is the mean and variance of one output across samples.
type Stat struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stddev"`
}

func newStat(xs []float64) Stat {
	m, v := vecmath.MeanVariance(xs)
	return Stat{Mean: m, Variance: v, StdDev: math.Sqrt(v)}
}

// Result aggregates one sampling run.
type Result struct {
	Chart        string  `json:"chart"`
	Samples      int     `json:"samples"`
	Seed         uint64  `json:"seed"`
	Perturbation float64 `json:"perturbation"`

	// Baseline is the unperturbed analysis.
	Baseline *analysis.Report `json:"baseline"`

	StrengthScore Stat            `json:"strength_score"`
	Domains       map[string]Stat `json:"domains"`
	Elements      map[string]Stat `json:"elements"`

	// Labels counts how often each strength label was assigned.
	Labels     map[constants.Label]int `json:"labels"`
	ModalLabel constants.Label         `json:"modal_label"`

	// Stability is the mean cosine similarity between each sample's
	// elemental distribution and the baseline's.
	Stability float64 `json:"stability"`
}

// Sampler runs probabilistic analyses against one base configuration.
type Sampler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New returns a Sampler for cfg, which must be valid.
func New(cfg *config.Config, logger *slog.Logger) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sampler{cfg: cfg, logger: logger}, nil
}

// SampleCount returns the number of samples a run on cfg performs.
func SampleCount(cfg *config.Config) int {
	n := cfg.Sampling.Samples
	n = min(n, cfg.Sampling.MaxSamples, constants.HardMaxSamples)
	return max(n, 1)
}

// Run analyses req once on the base configuration and SampleCount times on
// perturbed snapshots. Snapshots are drawn sequentially from one seeded
// generator and evaluated in parallel; aggregation follows sample order, so
// the result depends only on the configuration and req.
func (s *Sampler) Run(ctx context.Context, req analysis.Request) (*Result, error) {
	baseline, err := analysis.Evaluate(s.cfg, req)
	if err != nil {
		return nil, err
	}

	n := SampleCount(s.cfg)
	sc := s.cfg.Sampling
	rng := rand.New(rand.NewPCG(sc.Seed, sc.Seed^0x9e3779b97f4a7c15))

	snapshots := make([]*config.Config, n)
	for i := range snapshots {
		snapshots[i], err = Perturb(s.cfg, rng, sc.Perturbation)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	reports := make([]*analysis.Report, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(sc.Workers, 1))
	for i, cfg := range snapshots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := analysis.Evaluate(cfg, req)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := aggregate(baseline, reports)
	res.Seed = sc.Seed
	res.Perturbation = sc.Perturbation

	s.logger.Debug("sampling complete",
		"chart", res.Chart,
		"samples", res.Samples,
		"strength_mean", res.StrengthScore.Mean,
		"strength_stddev", res.StrengthScore.StdDev,
		"stability", res.Stability)
	return res, nil
}

func aggregate(baseline *analysis.Report, reports []*analysis.Report) *Result {
	res := &Result{
		Chart:    baseline.Chart,
		Samples:  len(reports),
		Baseline: baseline,
		Domains:  make(map[string]Stat, 3),
		Elements: make(map[string]Stat, chart.NumElements),
		Labels:   make(map[constants.Label]int),
	}

	scores := make([]float64, len(reports))
	for i, r := range reports {
		scores[i] = r.StrengthScore
		res.Labels[r.StrengthLabel]++
	}
	res.StrengthScore = newStat(scores)

	for _, d := range constants.Domains() {
		xs := make([]float64, len(reports))
		for i, r := range reports {
			xs[i] = r.Domains[d]
		}
		res.Domains[d] = newStat(xs)
	}

	base := elementVector(baseline)
	var similarity float64
	for _, e := range chart.Elements() {
		xs := make([]float64, len(reports))
		for i, r := range reports {
			xs[i] = r.Elements[e.String()]
		}
		res.Elements[e.String()] = newStat(xs)
	}
	for _, r := range reports {
		similarity += vecmath.CosineSimilarity(base, elementVector(r))
	}
	res.Stability = similarity / float64(len(reports))

	// Ties resolve to the label that sorts first.
	for _, l := range slices.Sorted(maps.Keys(res.Labels)) {
		if res.ModalLabel == "" || res.Labels[l] > res.Labels[res.ModalLabel] {
			res.ModalLabel = l
		}
	}
	return res
}

func elementVector(r *analysis.Report) []float64 {
	v := make([]float64, 0, chart.NumElements)
	for _, e := range chart.Elements() {
		v = append(v, r.Elements[e.String()])
	}
	return v
}

// Perturb returns a copy of cfg whose model parameters are each scaled by an
// independent factor drawn uniformly from [1-band, 1+band]. Parameters whose
// base value lies in [0,1] stay in [0,1]. Keys are visited in sorted order so
// a given generator state always yields the same snapshot. cfg is not
// modified.
func Perturb(cfg *config.Config, rng *rand.Rand, band float64) (*config.Config, error) {
	m, err := cfg.ToMap()
	if err != nil {
		return nil, err
	}
	for _, group := range perturbedGroups {
		if sub, ok := m[group].(map[string]any); ok {
			perturbMap(sub, rng, band)
		}
	}
	return config.FromMap(m)
}

func perturbMap(m map[string]any, rng *rand.Rand, band float64) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if fixedKeys[k] {
			continue
		}
		switch v := m[k].(type) {
		case float64:
			m[k] = perturbValue(v, rng, band)
		case map[string]any:
			perturbMap(v, rng, band)
		}
	}
}

func perturbValue(v float64, rng *rand.Rand, band float64) float64 {
	f := 1 + band*(2*rng.Float64()-1)
	out := v * f
	if v >= 0 && v <= 1 {
		out = vecmath.Clamp(out, 0, 1)
	}
	return out
}
