package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/constants"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Physics.BaseEnergy != 10 {
		t.Errorf("expected BaseEnergy 10, got %v", config.Physics.BaseEnergy)
	}
	if got := config.Physics.HiddenStemRatios; len(got) != 3 || got[0] != 0.6 || got[1] != 0.3 || got[2] != 0.1 {
		t.Errorf("expected hidden stem ratios [0.6 0.3 0.1], got %v", got)
	}
	if config.Flow.Iterations != 4 {
		t.Errorf("expected Iterations 4, got %d", config.Flow.Iterations)
	}
	if config.GAT.Enabled {
		t.Error("expected GAT.Enabled to be false by default")
	}
	if !config.Interactions.Transmutation {
		t.Error("expected Transmutation to be true by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestDefault_ReturnsFreshMaps(t *testing.T) {
	a := Default()
	a.Physics.SeasonalWeights[string(chart.Prosperous)] = 99
	b := Default()
	if b.Physics.SeasonalWeights[string(chart.Prosperous)] == 99 {
		t.Error("Default() shares map state between calls")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
physics:
  seasonal_weights:
    prosperous: 2.0
flow:
  iterations: 6
  phase_change:
    hot_branches: ["午", "巳"]
gat:
  enabled: true
  mix_ratio: 0.5
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if got := config.Physics.SeasonalWeights["prosperous"]; got != 2.0 {
		t.Errorf("expected prosperous 2.0, got %v", got)
	}
	// Sibling keys of a partially overridden map keep their defaults.
	if got := config.Physics.SeasonalWeights["dead"]; got != 0.65 {
		t.Errorf("expected dead 0.65, got %v", got)
	}
	if config.Flow.Iterations != 6 {
		t.Errorf("expected Iterations 6, got %d", config.Flow.Iterations)
	}
	if config.Flow.Damping != 0.85 {
		t.Errorf("expected Damping default 0.85, got %v", config.Flow.Damping)
	}
	if diff := cmp.Diff([]string{"午", "巳"}, config.Flow.PhaseChange.HotBranches); diff != "" {
		t.Errorf("hot branches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"子"}, config.Flow.PhaseChange.ColdBranches); diff != "" {
		t.Errorf("cold branches mismatch (-want +got):\n%s", diff)
	}
	if !config.GAT.Enabled || config.GAT.MixRatio != 0.5 {
		t.Errorf("expected gat enabled with mix 0.5, got %+v", config.GAT)
	}
	if len(config.GAT.Heads) != 4 {
		t.Errorf("expected default heads to survive, got %d", len(config.GAT.Heads))
	}
}

func TestLoadFromBytes_UnknownKeysIgnored(t *testing.T) {
	config, err := LoadFromBytes([]byte(`
not_a_group:
  foo: 1
flow:
  not_a_key: 3
  damping: 0.7
`))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if config.Flow.Damping != 0.7 {
		t.Errorf("expected Damping 0.7, got %v", config.Flow.Damping)
	}
}

func TestLoadFromBytes_ListReplaces(t *testing.T) {
	config, err := LoadFromBytes([]byte("interactions:\n  proximity: [1, 0.5]\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 0.5}, config.Interactions.Proximity); diff != "" {
		t.Errorf("proximity mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("flow: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestMerge_DoesNotMutateBase(t *testing.T) {
	base := Default()
	merged, err := Merge(base, map[string]any{
		"physics": map[string]any{"pillar_weights": map[string]any{"month": 3.0}},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if merged.Physics.PillarWeights["month"] != 3.0 {
		t.Errorf("expected merged month weight 3.0, got %v", merged.Physics.PillarWeights["month"])
	}
	if base.Physics.PillarWeights["month"] != 1.3 {
		t.Errorf("base was mutated: month weight %v", base.Physics.PillarWeights["month"])
	}
}

func TestRoundTrip(t *testing.T) {
	original := Default()
	original.GAT.Enabled = true
	original.Sampling.Seed = 7
	original.Nonlinear.Wealth.Weights[constants.TenGodOfficer] = 0.25

	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	reloaded, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if diff := cmp.Diff(original, reloaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	original := Default()
	clone, err := original.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if diff := cmp.Diff(original, clone); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
	clone.Interactions.Proximity[0] = 0
	if original.Interactions.Proximity[0] != 1.0 {
		t.Error("clone shares slice storage with original")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QIFLOW_LOG_LEVEL", "debug")
	t.Setenv("QIFLOW_GAT_ENABLED", "true")
	t.Setenv("QIFLOW_SAMPLING_SEED", "1234")
	t.Setenv("QIFLOW_FLOW_ITERATIONS", "8")

	config := Default()
	ApplyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", config.Logging.Level)
	}
	if !config.GAT.Enabled {
		t.Error("expected GAT.Enabled from env")
	}
	if config.Sampling.Seed != 1234 {
		t.Errorf("expected seed 1234, got %d", config.Sampling.Seed)
	}
	if config.Flow.Iterations != 8 {
		t.Errorf("expected iterations 8, got %d", config.Flow.Iterations)
	}
}

func TestEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv("QIFLOW_SAMPLING_SEED", "not-a-number")
	t.Setenv("QIFLOW_FLOW_ITERATIONS", "many")

	config := Default()
	ApplyEnvOverrides(config)

	if config.Sampling.Seed != 42 {
		t.Errorf("expected default seed 42, got %d", config.Sampling.Seed)
	}
	if config.Flow.Iterations != 4 {
		t.Errorf("expected default iterations 4, got %d", config.Flow.Iterations)
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantKey string
	}{
		{
			name:    "missing seasonal state",
			mutate:  func(c *Config) { delete(c.Physics.SeasonalWeights, "dead") },
			wantKey: "physics.seasonal_weights.dead",
		},
		{
			name:    "missing pillar weight",
			mutate:  func(c *Config) { delete(c.Physics.PillarWeights, "annual") },
			wantKey: "physics.pillar_weights.annual",
		},
		{
			name:    "two hidden stem ratios",
			mutate:  func(c *Config) { c.Physics.HiddenStemRatios = []float64{0.7, 0.3} },
			wantKey: "physics.hidden_stem_ratios",
		},
		{
			name:    "zero iterations",
			mutate:  func(c *Config) { c.Flow.Iterations = 0 },
			wantKey: "flow.iterations",
		},
		{
			name:    "too many iterations",
			mutate:  func(c *Config) { c.Flow.Iterations = constants.MaxIterations + 1 },
			wantKey: "flow.iterations",
		},
		{
			name:    "damping above one",
			mutate:  func(c *Config) { c.Flow.Damping = 1.5 },
			wantKey: "flow.damping",
		},
		{
			name:    "inverse ratio not above one",
			mutate:  func(c *Config) { c.Flow.InverseControlRatio = 1 },
			wantKey: "flow.inverse_control_ratio",
		},
		{
			name:    "unknown phase branch",
			mutate:  func(c *Config) { c.Flow.PhaseChange.HotBranches = []string{"X"} },
			wantKey: "flow.phase_change",
		},
		{
			name:    "grading out of order",
			mutate:  func(c *Config) { c.Grading.WeakThreshold = 70 },
			wantKey: "grading",
		},
		{
			name: "gat head with two weights",
			mutate: func(c *Config) {
				c.GAT.Enabled = true
				c.GAT.Heads = [][]float64{{1, 1}}
			},
			wantKey: "gat.heads[0]",
		},
		{
			name:    "unknown ten-god weight",
			mutate:  func(c *Config) { c.Nonlinear.Career.Weights["boss"] = 1 },
			wantKey: "nonlinear.career.weights",
		},
		{
			name:    "empty domain weights",
			mutate:  func(c *Config) { c.Nonlinear.Relationship.Weights = nil },
			wantKey: "nonlinear.relationship.weights",
		},
		{
			name:    "zero sample cap",
			mutate:  func(c *Config) { c.Sampling.MaxSamples = 0 },
			wantKey: "sampling.max_samples",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantKey: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Key != tt.wantKey {
				t.Errorf("expected key %q, got %q (%v)", tt.wantKey, verr.Key, err)
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"", "info", "debug", "trace"} {
		config := Default()
		config.Logging.Level = level
		if err := config.Validate(); err != nil {
			t.Errorf("level %q: unexpected error: %v", level, err)
		}
	}
}

func TestProximityAt(t *testing.T) {
	ix := Default().Interactions
	tests := []struct {
		distance int
		want     float64
	}{
		{0, 1.0},
		{1, 0.85},
		{3, 0.55},
		{9, 0.55},
		{-1, 1.0},
	}
	for _, tt := range tests {
		if got := ix.ProximityAt(tt.distance); got != tt.want {
			t.Errorf("ProximityAt(%d) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}
