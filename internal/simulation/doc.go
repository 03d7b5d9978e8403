// Package simulation provides a scenario test harness for validating the
// emergent behaviour of the analysis pipeline on real charts.
//
// The simulation exercises the real Analyzer (node builder, matrix,
// propagation engine and scorer) with no mocks. Scenarios are Go builders
// listing the charts to analyse, optionally on top of a calibration file
// from testdata/calibration. Calibration files hold per-example overrides
// that are never part of the production defaults; only tests load them.
//
// Each run gets a sandboxed HOME so nothing touches user data.
//
// Usage:
//
//	func TestVaultYear(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:  "vault-year",
//	        Cases: []simulation.Case{simulation.Annual("open", "丁未", "male", natal...)},
//	    })
//	    simulation.AssertWealthAbove(t, result, "open", 80)
//	}
package simulation
