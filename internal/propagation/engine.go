// Package propagation implements the energy propagation engine. Energy flows
// along the signed edges of a transfer matrix for a fixed number of rounds:
// generation edges move energy from source to target, control edges destroy
// energy at the target at a cost to the source, and a set of nonlinear rules
// (viscosity, friction, impedance, inverse control, damping, entropy) shape
// each round.
package propagation

import (
	"math"

	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/graph"
	"github.com/nvandessel/qiflow/internal/matrix"
	"github.com/nvandessel/qiflow/internal/vecmath"
)

// Event records an inverse-control reflection on one edge.
type Event struct {
	// Round is the first round (1-based) in which the edge reflected.
	Round    int
	Attacker int
	Defender int

	// Damage is the nominal control damage that was reflected.
	Damage float64

	// Count is the number of rounds in which the edge reflected.
	Count int
}

// Step is a snapshot of node energies after one round.
type Step struct {
	Round  int
	Energy []float64
}

// Result is the outcome of a propagation run.
type Result struct {
	Initial []float64
	Final   []float64

	// Rounds is the number of rounds executed, which is less than the
	// configured iterations when the epsilon early exit fires.
	Rounds int

	Events []Event

	// Steps is only populated by PropagateWithSteps.
	Steps []Step
}

// Engine runs propagation with a fixed flow configuration.
// The engine is stateless: all mutable state lives in the vectors created
// during each call to Run.
type Engine struct {
	flow    config.FlowConfig
	ceiling float64
}

// NewEngine creates an engine from the flow and physics settings of cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		flow:    cfg.Flow,
		ceiling: cfg.Physics.EnergyCeiling,
	}
}

// Propagate runs the engine on the graph's initial energies.
func (e *Engine) Propagate(g *graph.Graph, m *matrix.Matrix) Result {
	return e.Run(g.Initial(), m, false)
}

// PropagateWithSteps is Propagate with a per-round energy snapshot.
func (e *Engine) PropagateWithSteps(g *graph.Graph, m *matrix.Matrix) Result {
	return e.Run(g.Initial(), m, true)
}

// Run propagates initial through m. initial is not modified. Every returned
// energy is finite and within [0, energy_ceiling].
func (e *Engine) Run(initial []float64, m *matrix.Matrix, record bool) Result {
	n := len(initial)
	f := e.flow

	energy := make([]float64, n)
	for i, v := range initial {
		energy[i] = e.clamp(v)
	}
	res := Result{Initial: append([]float64(nil), energy...)}

	applied := make([]float64, n)
	eventIndex := make(map[[2]int]int)

	for round := 1; round <= f.Iterations; round++ {
		// Deltas are computed from the snapshot in energy and written into
		// delta so that updates within a round do not affect each other
		// (synchronous update).
		delta := make([]float64, n)

		for i := 0; i < n; i++ {
			src := energy[i]
			if src <= 0 || i >= m.Len() {
				continue
			}

			// Output viscosity: cap total outgoing transfer at the drain rate.
			var out float64
			for j, w := range m.W[i] {
				if j != i && w != 0 {
					out += src * math.Abs(w)
				}
			}
			if out == 0 {
				continue
			}
			scale := 1.0
			if limit := f.MaxDrainRate * src; out > limit {
				scale = limit / out
			}

			for j, w := range m.W[i] {
				if j == i || w == 0 || j >= n {
					continue
				}
				amount := src * math.Abs(w) * scale

				if w > 0 {
					received := amount * (1 - f.Friction) * (1 - f.BaseImpedance)
					if energy[j] < f.WeakThreshold {
						received *= 1 - f.WeakImpedance
					}
					delta[i] -= amount
					delta[j] += received
					continue
				}

				// Inverse control: a defender far stronger than its attacker
				// reflects the attack.
				if energy[j] > f.InverseControlRatio*src {
					delta[j] -= f.ReflectionFloor * amount
					delta[i] -= f.RecoilFactor * amount
					key := [2]int{i, j}
					if k, ok := eventIndex[key]; ok {
						res.Events[k].Count++
					} else {
						eventIndex[key] = len(res.Events)
						res.Events = append(res.Events, Event{Round: round, Attacker: i, Defender: j, Damage: amount, Count: 1})
					}
					continue
				}
				delta[j] -= amount
				delta[i] -= f.ControlCost * amount
			}
		}

		var maxChange float64
		for i := range energy {
			applied[i] = f.Damping*delta[i] + (1-f.Damping)*applied[i]
			next := e.clamp((energy[i] + applied[i]) * (1 - f.Entropy))
			maxChange = math.Max(maxChange, math.Abs(next-energy[i]))
			energy[i] = next
		}
		res.Rounds = round

		if record {
			res.Steps = append(res.Steps, Step{Round: round, Energy: append([]float64(nil), energy...)})
		}
		if f.Epsilon > 0 && maxChange < f.Epsilon {
			break
		}
	}

	res.Final = energy
	return res
}

// clamp maps v into [0, ceiling], treating non-finite values as 0.
func (e *Engine) clamp(v float64) float64 {
	v = vecmath.Finite(v)
	if e.ceiling > 0 {
		return vecmath.Clamp(v, 0, e.ceiling)
	}
	return math.Max(v, 0)
}
