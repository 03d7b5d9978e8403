package chart

import (
	"fmt"
	"strings"
)

// Position identifies where a pillar sits in the chart.
type Position int

const (
	Year Position = iota
	Month
	Day
	Hour
	Luck
	Annual
)

var positionNames = [...]string{"year", "month", "day", "hour", "luck", "annual"}

// String returns the lower-case position name used in node IDs and config keys.
func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return fmt.Sprintf("position(%d)", int(p))
	}
	return positionNames[p]
}

// Dynamic reports whether the position is a time marker (luck or annual)
// rather than one of the four natal pillars.
func (p Position) Dynamic() bool { return p == Luck || p == Annual }

// Positions returns every position in documented order.
func Positions() []Position {
	return []Position{Year, Month, Day, Hour, Luck, Annual}
}

// Pillar is a stem/branch pair.
type Pillar struct {
	Stem   Stem
	Branch Branch
}

// String returns the two-character form of the pillar.
func (p Pillar) String() string {
	return p.Stem.String() + p.Branch.String()
}

// ParsePillar parses a two-character pillar such as "甲子". Surrounding
// whitespace is ignored.
func ParsePillar(s string) (Pillar, error) {
	trimmed := strings.TrimSpace(s)
	runes := []rune(trimmed)
	if len(runes) != 2 {
		return Pillar{}, &InvalidChartError{Input: s, Reason: fmt.Sprintf("pillar must have exactly 2 symbols, got %d", len(runes))}
	}

	stem, ok := StemFromRune(runes[0])
	if !ok {
		if _, isBranch := BranchFromRune(runes[0]); isBranch {
			return Pillar{}, &InvalidChartError{Input: s, Reason: "pillar must start with a stem"}
		}
		return Pillar{}, &UnknownSymbolError{Symbol: string(runes[0]), Kind: "stem"}
	}
	branch, ok := BranchFromRune(runes[1])
	if !ok {
		return Pillar{}, &UnknownSymbolError{Symbol: string(runes[1]), Kind: "branch"}
	}

	p := Pillar{Stem: stem, Branch: branch}
	if _, valid := SexagenaryIndex(stem, branch); !valid {
		return Pillar{}, &InvalidChartError{Input: s, Reason: "stem and branch polarity differ"}
	}
	return p, nil
}

// Chart is a parsed four-pillar chart with optional luck and annual pillars.
type Chart struct {
	Natal  [4]Pillar
	Luck   *Pillar
	Annual *Pillar
}

// Parse builds a Chart from four natal pillar strings and optional luck and
// annual pillar strings (empty string means absent).
func Parse(pillars []string, luck, annual string) (Chart, error) {
	if len(pillars) != 4 {
		return Chart{}, &InvalidChartError{
			Input:  strings.Join(pillars, " "),
			Reason: fmt.Sprintf("expected 4 natal pillars, got %d", len(pillars)),
		}
	}

	var c Chart
	for i, s := range pillars {
		p, err := ParsePillar(s)
		if err != nil {
			return Chart{}, fmt.Errorf("%s pillar: %w", Position(i), err)
		}
		c.Natal[i] = p
	}

	if strings.TrimSpace(luck) != "" {
		p, err := ParsePillar(luck)
		if err != nil {
			return Chart{}, fmt.Errorf("luck pillar: %w", err)
		}
		c.Luck = &p
	}
	if strings.TrimSpace(annual) != "" {
		p, err := ParsePillar(annual)
		if err != nil {
			return Chart{}, fmt.Errorf("annual pillar: %w", err)
		}
		c.Annual = &p
	}

	return c, nil
}

// DayMaster returns the stem of the day pillar.
func (c Chart) DayMaster() Stem { return c.Natal[Day].Stem }

// MonthBranch returns the branch of the month pillar.
func (c Chart) MonthBranch() Branch { return c.Natal[Month].Branch }

// PositionedPillar pairs a pillar with its position.
type PositionedPillar struct {
	Position Position
	Pillar   Pillar
}

// Pillars returns every present pillar in documented order: year, month,
// day, hour, then luck and annual when present.
func (c Chart) Pillars() []PositionedPillar {
	out := make([]PositionedPillar, 0, 6)
	for i, p := range c.Natal {
		out = append(out, PositionedPillar{Position: Position(i), Pillar: p})
	}
	if c.Luck != nil {
		out = append(out, PositionedPillar{Position: Luck, Pillar: *c.Luck})
	}
	if c.Annual != nil {
		out = append(out, PositionedPillar{Position: Annual, Pillar: *c.Annual})
	}
	return out
}

// CheckDayMaster verifies that an explicitly supplied day master matches the
// chart's day stem. An empty string is accepted.
func (c Chart) CheckDayMaster(dayMaster string) error {
	if strings.TrimSpace(dayMaster) == "" {
		return nil
	}
	dm, err := ParseStem(strings.TrimSpace(dayMaster))
	if err != nil {
		return fmt.Errorf("day master: %w", err)
	}
	if dm != c.DayMaster() {
		return &InvalidChartError{
			Input:  dayMaster,
			Reason: fmt.Sprintf("day master %s does not match day pillar %s", dm, c.Natal[Day]),
		}
	}
	return nil
}

// String returns the chart in "year month day hour [| luck annual]" form.
func (c Chart) String() string {
	parts := make([]string, 0, 6)
	for _, p := range c.Natal {
		parts = append(parts, p.String())
	}
	s := strings.Join(parts, " ")
	if c.Luck != nil {
		s += " luck:" + c.Luck.String()
	}
	if c.Annual != nil {
		s += " annual:" + c.Annual.String()
	}
	return s
}
