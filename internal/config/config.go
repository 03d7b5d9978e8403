// Package config provides the tunable parameters of the energy graph engine.
// Configuration is loaded once per process from documented defaults, an
// optional YAML file and environment variables, and is never mutated
// afterwards: every derived variant is a new *Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains every engine setting, grouped the way the YAML file is.
type Config struct {
	// Physics holds seasonal and positional weights and the hidden-stem split.
	Physics PhysicsConfig `json:"physics" yaml:"physics"`

	// Structure holds node-level bonuses and penalties (rooting, exposure, void).
	Structure StructureConfig `json:"structure" yaml:"structure"`

	// Interactions holds edge coefficients and combination/clash/vault parameters.
	Interactions InteractionsConfig `json:"interactions" yaml:"interactions"`

	// Flow holds propagation parameters.
	Flow FlowConfig `json:"flow" yaml:"flow"`

	// Spacetime holds the dynamic-context (luck/annual) correction weights.
	Spacetime SpacetimeConfig `json:"spacetime" yaml:"spacetime"`

	// Grading holds strength label thresholds.
	Grading GradingConfig `json:"grading" yaml:"grading"`

	// GAT holds the optional attention matrix parameters.
	GAT GATConfig `json:"gat" yaml:"gat"`

	// Nonlinear holds per-domain correction chains.
	Nonlinear NonlinearConfig `json:"nonlinear" yaml:"nonlinear"`

	// Sampling holds probabilistic mode parameters.
	Sampling SamplingConfig `json:"sampling" yaml:"sampling"`

	// Logging configures operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// PhysicsConfig holds the base energy model.
type PhysicsConfig struct {
	// BaseEnergy is the raw energy of every node before any weighting.
	BaseEnergy float64 `json:"base_energy" yaml:"base_energy"`

	// RoleWeights scales stem and branch nodes ("stem", "branch").
	RoleWeights map[string]float64 `json:"role_weights" yaml:"role_weights"`

	// SeasonalWeights maps a seasonal state (prosperous, strengthening,
	// resting, trapped, dead) to a multiplier.
	SeasonalWeights map[string]float64 `json:"seasonal_weights" yaml:"seasonal_weights"`

	// PillarWeights maps a position (year, month, day, hour, luck, annual) to a multiplier.
	PillarWeights map[string]float64 `json:"pillar_weights" yaml:"pillar_weights"`

	// HiddenStemRatios is the primary/secondary/residual split of a branch.
	HiddenStemRatios []float64 `json:"hidden_stem_ratios" yaml:"hidden_stem_ratios"`

	// EnergyCeiling is the hard per-node ceiling enforced after every iteration.
	EnergyCeiling float64 `json:"energy_ceiling" yaml:"energy_ceiling"`
}

// StructureConfig holds node-level structural modifiers.
type StructureConfig struct {
	RootingBonus     float64 `json:"rooting_bonus" yaml:"rooting_bonus"`
	RootCap          float64 `json:"root_cap" yaml:"root_cap"`
	SelfSittingBonus float64 `json:"self_sitting_bonus" yaml:"self_sitting_bonus"`
	ExposedBonus     float64 `json:"exposed_bonus" yaml:"exposed_bonus"`
	VoidPenalty      float64 `json:"void_penalty" yaml:"void_penalty"`
}

// InteractionsConfig holds the static prior coefficients and their modulators.
type InteractionsConfig struct {
	BaseGeneration float64 `json:"base_generation" yaml:"base_generation"`
	BaseControl    float64 `json:"base_control" yaml:"base_control"`
	BaseSame       float64 `json:"base_same" yaml:"base_same"`

	// Proximity scales an edge by pillar distance (index 0 = same pillar).
	Proximity []float64 `json:"proximity" yaml:"proximity"`

	// CrossRoleCoupling scales stem-branch edges between different pillars.
	CrossRoleCoupling float64 `json:"cross_role_coupling" yaml:"cross_role_coupling"`

	StemCombinationBonus   float64 `json:"stem_combination_bonus" yaml:"stem_combination_bonus"`
	BranchCombinationBonus float64 `json:"branch_combination_bonus" yaml:"branch_combination_bonus"`
	TrineBonus             float64 `json:"trine_bonus" yaml:"trine_bonus"`
	JealousyDamping        float64 `json:"jealousy_damping" yaml:"jealousy_damping"`
	Transmutation          bool    `json:"transmutation" yaml:"transmutation"`

	ClashPenalty      float64 `json:"clash_penalty" yaml:"clash_penalty"`
	PunishmentPenalty float64 `json:"punishment_penalty" yaml:"punishment_penalty"`
	HarmPenalty       float64 `json:"harm_penalty" yaml:"harm_penalty"`
	PenaltyDamping    float64 `json:"penalty_damping" yaml:"penalty_damping"`

	VaultAliveThreshold   float64 `json:"vault_alive_threshold" yaml:"vault_alive_threshold"`
	VaultSupportRatio     float64 `json:"vault_support_ratio" yaml:"vault_support_ratio"`
	VaultOpenAmplifier    float64 `json:"vault_open_amplifier" yaml:"vault_open_amplifier"`
	VaultBreakPenalty     float64 `json:"vault_break_penalty" yaml:"vault_break_penalty"`
	VaultReleaseRatio     float64 `json:"vault_release_ratio" yaml:"vault_release_ratio"`
	VaultOpenOnPunishment bool    `json:"vault_open_on_punishment" yaml:"vault_open_on_punishment"`
}

// FlowConfig holds propagation parameters.
type FlowConfig struct {
	// Iterations is the fixed number of propagation rounds.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Damping blends the current round's delta with the previous applied delta.
	Damping float64 `json:"damping" yaml:"damping"`

	MaxDrainRate        float64 `json:"max_drain_rate" yaml:"max_drain_rate"`
	Friction            float64 `json:"friction" yaml:"friction"`
	BaseImpedance       float64 `json:"base_impedance" yaml:"base_impedance"`
	WeakThreshold       float64 `json:"weak_threshold" yaml:"weak_threshold"`
	WeakImpedance       float64 `json:"weak_impedance" yaml:"weak_impedance"`
	ControlCost         float64 `json:"control_cost" yaml:"control_cost"`
	InverseControlRatio float64 `json:"inverse_control_ratio" yaml:"inverse_control_ratio"`
	ReflectionFloor     float64 `json:"reflection_floor" yaml:"reflection_floor"`
	RecoilFactor        float64 `json:"recoil_factor" yaml:"recoil_factor"`
	Entropy             float64 `json:"entropy" yaml:"entropy"`

	// Epsilon enables early exit when no node changes by more than this amount.
	// Zero disables early exit.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	PhaseChange PhaseChangeConfig `json:"phase_change" yaml:"phase_change"`
}

// PhaseChangeConfig gates generation edges in extreme seasons.
type PhaseChangeConfig struct {
	HotBranches          []string `json:"hot_branches" yaml:"hot_branches"`
	ColdBranches         []string `json:"cold_branches" yaml:"cold_branches"`
	ScorchedEarthDamping float64  `json:"scorched_earth_damping" yaml:"scorched_earth_damping"`
	FrozenWaterDamping   float64  `json:"frozen_water_damping" yaml:"frozen_water_damping"`
}

// SpacetimeConfig holds the dynamic-context corrector.
type SpacetimeConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	DynamicWeight      float64 `json:"dynamic_weight" yaml:"dynamic_weight"`
	VaultOpenBoost     float64 `json:"vault_open_boost" yaml:"vault_open_boost"`
	SpouseClashPenalty float64 `json:"spouse_clash_penalty" yaml:"spouse_clash_penalty"`
	MinCorrector       float64 `json:"min_corrector" yaml:"min_corrector"`
	MaxCorrector       float64 `json:"max_corrector" yaml:"max_corrector"`
}

// GradingConfig holds strength label thresholds on the 0-100 score.
type GradingConfig struct {
	StrongThreshold float64 `json:"strong_threshold" yaml:"strong_threshold"`
	WeakThreshold   float64 `json:"weak_threshold" yaml:"weak_threshold"`
	ExtremeLow      float64 `json:"extreme_low" yaml:"extreme_low"`
	ExtremeHigh     float64 `json:"extreme_high" yaml:"extreme_high"`
}

// GATConfig holds the attention-based dynamic matrix parameters.
type GATConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Heads lists per-head (source, target, prior) feature weights.
	Heads [][]float64 `json:"heads" yaml:"heads"`

	LeakySlope  float64 `json:"leaky_slope" yaml:"leaky_slope"`
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MixRatio blends the attention matrix into the static prior (0 = static only).
	MixRatio float64 `json:"mix_ratio" yaml:"mix_ratio"`
}

// BandConfig is one band of the observation-bias curve.
type BandConfig struct {
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	Exponent   float64 `json:"exponent" yaml:"exponent"`
}

// DomainConfig is the correction chain for one domain score.
type DomainConfig struct {
	// Weights maps ten-god names (self, resource, output, wealth, officer) to weights.
	Weights map[string]float64 `json:"weights" yaml:"weights"`

	BandLow  float64    `json:"band_low" yaml:"band_low"`
	BandHigh float64    `json:"band_high" yaml:"band_high"`
	Low      BandConfig `json:"low" yaml:"low"`
	Mid      BandConfig `json:"mid" yaml:"mid"`
	High     BandConfig `json:"high" yaml:"high"`

	Amplifier float64 `json:"amplifier" yaml:"amplifier"`

	// Ceiling clamps the score after every correction step.
	Ceiling float64 `json:"ceiling" yaml:"ceiling"`

	// MaxScore is the final hard cap.
	MaxScore float64 `json:"max_score" yaml:"max_score"`
}

// NonlinearConfig holds the three domain chains.
type NonlinearConfig struct {
	Career       DomainConfig `json:"career" yaml:"career"`
	Wealth       DomainConfig `json:"wealth" yaml:"wealth"`
	Relationship DomainConfig `json:"relationship" yaml:"relationship"`
}

// Domain returns the chain for a domain name.
func (n NonlinearConfig) Domain(name string) (DomainConfig, bool) {
	switch name {
	case constants.DomainCareer:
		return n.Career, true
	case constants.DomainWealth:
		return n.Wealth, true
	case constants.DomainRelationship:
		return n.Relationship, true
	}
	return DomainConfig{}, false
}

// SamplingConfig holds probabilistic mode parameters.
type SamplingConfig struct {
	// Samples is the requested number of perturbed runs.
	Samples int `json:"samples" yaml:"samples"`

	// MaxSamples caps Samples to bound worst-case latency.
	MaxSamples int `json:"max_samples" yaml:"max_samples"`

	// Perturbation is the fractional band applied to model parameters (0.1 = ±10%).
	Perturbation float64 `json:"perturbation" yaml:"perturbation"`

	// Seed makes sampling reproducible.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers bounds parallel sample evaluation.
	Workers int `json:"workers" yaml:"workers"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to decisions.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl is written. Empty means ~/.qiflow.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// PillarWeight returns the configured weight for a position.
func (p PhysicsConfig) PillarWeight(pos chart.Position) float64 {
	return p.PillarWeights[pos.String()]
}

// SeasonalWeight returns the configured multiplier for a seasonal state.
func (p PhysicsConfig) SeasonalWeight(state chart.SeasonState) float64 {
	return p.SeasonalWeights[string(state)]
}

// RoleWeight returns the weight for stem (true) or branch (false) nodes.
func (p PhysicsConfig) RoleWeight(stem bool) float64 {
	if stem {
		return p.RoleWeights["stem"]
	}
	return p.RoleWeights["branch"]
}

// ProximityAt returns the proximity factor for a pillar distance, using the
// last configured entry for distances beyond the table.
func (i InteractionsConfig) ProximityAt(distance int) float64 {
	if len(i.Proximity) == 0 {
		return 1
	}
	if distance < 0 {
		distance = 0
	}
	if distance >= len(i.Proximity) {
		return i.Proximity[len(i.Proximity)-1]
	}
	return i.Proximity[distance]
}

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		Physics: PhysicsConfig{
			BaseEnergy: 10,
			RoleWeights: map[string]float64{
				"stem":   1.0,
				"branch": 1.2,
			},
			SeasonalWeights: map[string]float64{
				string(chart.Prosperous):    1.5,
				string(chart.Strengthening): 1.25,
				string(chart.Resting):       1.0,
				string(chart.Trapped):       0.8,
				string(chart.Dead):          0.65,
			},
			PillarWeights: map[string]float64{
				"year":   0.8,
				"month":  1.3,
				"day":    1.0,
				"hour":   0.9,
				"luck":   0.9,
				"annual": 0.8,
			},
			HiddenStemRatios: []float64{0.6, 0.3, 0.1},
			EnergyCeiling:    100,
		},
		Structure: StructureConfig{
			RootingBonus:     0.25,
			RootCap:          1.5,
			SelfSittingBonus: 0.15,
			ExposedBonus:     0.15,
			VoidPenalty:      0.3,
		},
		Interactions: InteractionsConfig{
			BaseGeneration:         0.12,
			BaseControl:            0.08,
			BaseSame:               0.03,
			Proximity:              []float64{1.0, 0.85, 0.7, 0.55},
			CrossRoleCoupling:      0.5,
			StemCombinationBonus:   0.4,
			BranchCombinationBonus: 0.3,
			TrineBonus:             0.35,
			JealousyDamping:        0.5,
			Transmutation:          true,
			ClashPenalty:           0.5,
			PunishmentPenalty:      0.3,
			HarmPenalty:            0.2,
			PenaltyDamping:         0.6,
			VaultAliveThreshold:    6.0,
			VaultSupportRatio:      0.5,
			VaultOpenAmplifier:     1.8,
			VaultBreakPenalty:      0.3,
			VaultReleaseRatio:      0.6,
			VaultOpenOnPunishment:  true,
		},
		Flow: FlowConfig{
			Iterations:          4,
			Damping:             0.85,
			MaxDrainRate:        0.15,
			Friction:            0.05,
			BaseImpedance:       0.1,
			WeakThreshold:       2.0,
			WeakImpedance:       0.4,
			ControlCost:         0.3,
			InverseControlRatio: 3.0,
			ReflectionFloor:     0.1,
			RecoilFactor:        1.5,
			Entropy:             0.02,
			Epsilon:             1e-9,
			PhaseChange: PhaseChangeConfig{
				HotBranches:          []string{"午"},
				ColdBranches:         []string{"子"},
				ScorchedEarthDamping: 0.2,
				FrozenWaterDamping:   0.2,
			},
		},
		Spacetime: SpacetimeConfig{
			Enabled:            true,
			DynamicWeight:      0.5,
			VaultOpenBoost:     0.6,
			SpouseClashPenalty: 0.25,
			MinCorrector:       0.5,
			MaxCorrector:       2.0,
		},
		Grading: GradingConfig{
			StrongThreshold: 55,
			WeakThreshold:   40,
			ExtremeLow:      8,
			ExtremeHigh:     92,
		},
		GAT: GATConfig{
			Enabled: false,
			Heads: [][]float64{
				{1.0, 0.5, 1.0},
				{0.5, 1.0, 1.0},
				{1.0, 1.0, 0.5},
				{0.2, 0.2, 2.0},
			},
			LeakySlope:  0.2,
			Temperature: 1.0,
			MixRatio:    0.3,
		},
		Nonlinear: NonlinearConfig{
			Career: DomainConfig{
				Weights:   map[string]float64{constants.TenGodOfficer: 1.0, constants.TenGodResource: 0.5, constants.TenGodOutput: 0.3},
				BandLow:   20,
				BandHigh:  45,
				Low:       BandConfig{Multiplier: 1.2, Exponent: 0.95},
				Mid:       BandConfig{Multiplier: 1.4, Exponent: 0.9},
				High:      BandConfig{Multiplier: 1.3, Exponent: 0.85},
				Amplifier: 1.0,
				Ceiling:   100,
				MaxScore:  100,
			},
			Wealth: DomainConfig{
				Weights:   map[string]float64{constants.TenGodWealth: 1.0, constants.TenGodOutput: 0.5},
				BandLow:   20,
				BandHigh:  45,
				Low:       BandConfig{Multiplier: 1.2, Exponent: 0.95},
				Mid:       BandConfig{Multiplier: 1.4, Exponent: 0.9},
				High:      BandConfig{Multiplier: 1.3, Exponent: 0.85},
				Amplifier: 1.1,
				Ceiling:   100,
				MaxScore:  100,
			},
			Relationship: DomainConfig{
				Weights:   map[string]float64{constants.TenGodWealth: 0.7, constants.TenGodSelf: 0.3, constants.TenGodOutput: 0.3},
				BandLow:   20,
				BandHigh:  45,
				Low:       BandConfig{Multiplier: 1.2, Exponent: 0.95},
				Mid:       BandConfig{Multiplier: 1.4, Exponent: 0.9},
				High:      BandConfig{Multiplier: 1.3, Exponent: 0.85},
				Amplifier: 1.0,
				Ceiling:   100,
				MaxScore:  100,
			},
		},
		Sampling: SamplingConfig{
			Samples:      32,
			MaxSamples:   256,
			Perturbation: 0.1,
			Seed:         42,
			Workers:      4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.qiflow/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, constants.ConfigDirName, constants.ConfigFileName)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	ApplyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys that the
// file omits keep their documented defaults; unknown keys are ignored.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML and merges it over the defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	var overrides map[string]any
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return Merge(Default(), overrides)
}

// Marshal serializes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// ApplyEnvOverrides applies the QIFLOW_* environment variable overrides to
// config.
func ApplyEnvOverrides(config *Config) {
	if v := os.Getenv("QIFLOW_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("QIFLOW_GAT_ENABLED"); v != "" {
		config.GAT.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("QIFLOW_SAMPLING_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Sampling.Seed = n
		}
	}

	if v := os.Getenv("QIFLOW_FLOW_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Flow.Iterations = n
		}
	}
}
