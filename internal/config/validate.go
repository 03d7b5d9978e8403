package config

import (
	"fmt"
	"math"

	"github.com/nvandessel/qiflow/internal/chart"
	"github.com/nvandessel/qiflow/internal/constants"
)

// ValidationError reports a configuration key that is missing or out of range.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func invalid(key, format string, args ...any) error {
	return &ValidationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that every required key is present and every value is in range.
func (c *Config) Validate() error {
	p := c.Physics
	if !(p.BaseEnergy > 0) {
		return invalid("physics.base_energy", "must be positive, got %v", p.BaseEnergy)
	}
	for _, role := range []string{"stem", "branch"} {
		if err := requireNonNegative(p.RoleWeights, "physics.role_weights", role); err != nil {
			return err
		}
	}
	for _, state := range chart.SeasonStates() {
		if err := requireNonNegative(p.SeasonalWeights, "physics.seasonal_weights", string(state)); err != nil {
			return err
		}
	}
	for _, pos := range chart.Positions() {
		if err := requireNonNegative(p.PillarWeights, "physics.pillar_weights", pos.String()); err != nil {
			return err
		}
	}
	if len(p.HiddenStemRatios) != 3 {
		return invalid("physics.hidden_stem_ratios", "must have 3 entries, got %d", len(p.HiddenStemRatios))
	}
	for i, r := range p.HiddenStemRatios {
		if !inUnit(r) {
			return invalid(fmt.Sprintf("physics.hidden_stem_ratios[%d]", i), "must be in [0,1], got %v", r)
		}
	}
	if !(p.EnergyCeiling > 0) {
		return invalid("physics.energy_ceiling", "must be positive, got %v", p.EnergyCeiling)
	}

	s := c.Structure
	if !inUnit(s.VoidPenalty) {
		return invalid("structure.void_penalty", "must be in [0,1], got %v", s.VoidPenalty)
	}
	if s.RootingBonus < 0 || s.SelfSittingBonus < 0 || s.ExposedBonus < 0 || s.RootCap < 0 {
		return invalid("structure", "bonuses must be non-negative")
	}

	ix := c.Interactions
	if len(ix.Proximity) == 0 {
		return invalid("interactions.proximity", "is required")
	}
	for _, c := range []unitCheck{
		{"interactions.cross_role_coupling", ix.CrossRoleCoupling},
		{"interactions.jealousy_damping", ix.JealousyDamping},
		{"interactions.penalty_damping", ix.PenaltyDamping},
		{"interactions.vault_break_penalty", ix.VaultBreakPenalty},
		{"interactions.vault_release_ratio", ix.VaultReleaseRatio},
		{"interactions.clash_penalty", ix.ClashPenalty},
		{"interactions.punishment_penalty", ix.PunishmentPenalty},
		{"interactions.harm_penalty", ix.HarmPenalty},
	} {
		if !inUnit(c.v) {
			return invalid(c.key, "must be in [0,1], got %v", c.v)
		}
	}
	if ix.VaultOpenAmplifier < 1 {
		return invalid("interactions.vault_open_amplifier", "must be >= 1, got %v", ix.VaultOpenAmplifier)
	}

	f := c.Flow
	if f.Iterations < 1 || f.Iterations > constants.MaxIterations {
		return invalid("flow.iterations", "must be in [1,%d], got %d", constants.MaxIterations, f.Iterations)
	}
	for _, c := range []unitCheck{
		{"flow.damping", f.Damping},
		{"flow.max_drain_rate", f.MaxDrainRate},
		{"flow.friction", f.Friction},
		{"flow.base_impedance", f.BaseImpedance},
		{"flow.weak_impedance", f.WeakImpedance},
		{"flow.reflection_floor", f.ReflectionFloor},
		{"flow.entropy", f.Entropy},
		{"flow.phase_change.scorched_earth_damping", f.PhaseChange.ScorchedEarthDamping},
		{"flow.phase_change.frozen_water_damping", f.PhaseChange.FrozenWaterDamping},
	} {
		if !inUnit(c.v) {
			return invalid(c.key, "must be in [0,1], got %v", c.v)
		}
	}
	if f.InverseControlRatio <= 1 {
		return invalid("flow.inverse_control_ratio", "must be > 1, got %v", f.InverseControlRatio)
	}
	for _, list := range [][]string{f.PhaseChange.HotBranches, f.PhaseChange.ColdBranches} {
		for _, b := range list {
			if _, err := chart.ParseBranch(b); err != nil {
				return invalid("flow.phase_change", "%v", err)
			}
		}
	}

	st := c.Spacetime
	if st.MinCorrector < 0 || st.MaxCorrector < st.MinCorrector {
		return invalid("spacetime", "correctors must satisfy 0 <= min <= max, got [%v, %v]", st.MinCorrector, st.MaxCorrector)
	}

	g := c.Grading
	if !(0 <= g.ExtremeLow && g.ExtremeLow <= g.WeakThreshold && g.WeakThreshold <= g.StrongThreshold &&
		g.StrongThreshold <= g.ExtremeHigh && g.ExtremeHigh <= 100) {
		return invalid("grading", "thresholds must satisfy 0 <= extreme_low <= weak <= strong <= extreme_high <= 100")
	}

	if c.GAT.Enabled {
		if len(c.GAT.Heads) == 0 {
			return invalid("gat.heads", "at least one head is required when gat is enabled")
		}
		for i, h := range c.GAT.Heads {
			if len(h) != 3 {
				return invalid(fmt.Sprintf("gat.heads[%d]", i), "must have 3 weights, got %d", len(h))
			}
		}
		if !(c.GAT.Temperature > 0) {
			return invalid("gat.temperature", "must be positive, got %v", c.GAT.Temperature)
		}
	}
	if !inUnit(c.GAT.MixRatio) {
		return invalid("gat.mix_ratio", "must be in [0,1], got %v", c.GAT.MixRatio)
	}

	for _, name := range constants.Domains() {
		d, _ := c.Nonlinear.Domain(name)
		key := "nonlinear." + name
		if len(d.Weights) == 0 {
			return invalid(key+".weights", "is required")
		}
		for god := range d.Weights {
			if !constants.IsTenGod(god) {
				return invalid(key+".weights", "unknown ten-god %q", god)
			}
		}
		if d.BandLow > d.BandHigh {
			return invalid(key, "band_low must not exceed band_high")
		}
		if !(d.Ceiling > 0) || !(d.MaxScore > 0) {
			return invalid(key, "ceiling and max_score must be positive")
		}
	}

	sm := c.Sampling
	if sm.MaxSamples < 1 {
		return invalid("sampling.max_samples", "must be >= 1, got %d", sm.MaxSamples)
	}
	if sm.Perturbation < 0 || sm.Perturbation >= 1 {
		return invalid("sampling.perturbation", "must be in [0,1), got %v", sm.Perturbation)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return invalid("logging.level", "invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

func requireNonNegative(m map[string]float64, group, key string) error {
	v, ok := m[key]
	if !ok {
		return invalid(group+"."+key, "is required")
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(group+"."+key, "must be a finite non-negative number, got %v", v)
	}
	return nil
}

type unitCheck struct {
	key string
	v   float64
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
