package chart

import "fmt"

// InvalidChartError reports a chart with the wrong pillar count or a
// malformed pillar string.
type InvalidChartError struct {
	Input  string
	Reason string
}

func (e *InvalidChartError) Error() string {
	return fmt.Sprintf("invalid chart %q: %s", e.Input, e.Reason)
}

// UnknownSymbolError reports a character outside the stem or branch alphabet.
type UnknownSymbolError struct {
	Symbol string
	Kind   string // "stem" or "branch"
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown %s symbol %q", e.Kind, e.Symbol)
}
