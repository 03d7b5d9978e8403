// Package chart defines the symbol alphabet of a four-pillar chart: the ten
// heavenly stems, the twelve earthly branches, the five elemental categories
// and the relation tables (combinations, clashes, punishments, harms, vaults)
// that the energy graph is built from.
package chart

import (
	"fmt"
	"strings"
)

// Element is one of the five elemental categories, in generation-cycle order.
type Element int

const (
	Wood Element = iota
	Fire
	Earth
	Metal
	Water
)

// NumElements is the size of the elemental cycle.
const NumElements = 5

var elementNames = [NumElements]string{"Wood", "Fire", "Earth", "Metal", "Water"}

// Elements lists all categories in cycle order.
func Elements() []Element {
	return []Element{Wood, Fire, Earth, Metal, Water}
}

// String returns the English name of the element.
func (e Element) String() string {
	if e < 0 || int(e) >= NumElements {
		return fmt.Sprintf("Element(%d)", int(e))
	}
	return elementNames[e]
}

// ParseElement maps an English element name to an Element. Case and
// surrounding space are ignored.
func ParseElement(s string) (Element, bool) {
	s = strings.TrimSpace(s)
	for i, name := range elementNames {
		if strings.EqualFold(name, s) {
			return Element(i), true
		}
	}
	return 0, false
}

// Generates returns the element this one generates (Wood -> Fire -> Earth -> Metal -> Water -> Wood).
func (e Element) Generates() Element {
	return Element((int(e) + 1) % NumElements)
}

// Controls returns the element this one controls (Wood -> Earth, Fire -> Metal, ...).
func (e Element) Controls() Element {
	return Element((int(e) + 2) % NumElements)
}

// GeneratedBy returns the element that generates this one.
func (e Element) GeneratedBy() Element {
	return Element((int(e) + NumElements - 1) % NumElements)
}

// Offset returns the cyclic distance from ref to e, in [0, 5).
func (e Element) Offset(ref Element) int {
	return ((int(e)-int(ref))%NumElements + NumElements) % NumElements
}

// Stem is a heavenly stem index in [0, 10).
type Stem int

// Branch is an earthly branch index in [0, 12).
type Branch int

const (
	NumStems    = 10
	NumBranches = 12
)

var stemRunes = [NumStems]rune{'甲', '乙', '丙', '丁', '戊', '己', '庚', '辛', '壬', '癸'}

var branchRunes = [NumBranches]rune{'子', '丑', '寅', '卯', '辰', '巳', '午', '未', '申', '酉', '戌', '亥'}

var branchElements = [NumBranches]Element{Water, Earth, Wood, Wood, Earth, Fire, Fire, Earth, Metal, Metal, Earth, Water}

// hiddenStems lists primary, secondary and residual hidden stems per branch.
var hiddenStems = [NumBranches][]Stem{
	{9},       // 子: 癸
	{5, 9, 7}, // 丑: 己 癸 辛
	{0, 2, 4}, // 寅: 甲 丙 戊
	{1},       // 卯: 乙
	{4, 1, 9}, // 辰: 戊 乙 癸
	{2, 4, 6}, // 巳: 丙 戊 庚
	{3, 5},    // 午: 丁 己
	{5, 3, 1}, // 未: 己 丁 乙
	{6, 8, 4}, // 申: 庚 壬 戊
	{7},       // 酉: 辛
	{4, 7, 3}, // 戌: 戊 辛 丁
	{8, 0},    // 亥: 壬 甲
}

// String returns the stem's character.
func (s Stem) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stem(%d)", int(s))
	}
	return string(stemRunes[s])
}

// Valid reports whether s is inside the ten-stem alphabet.
func (s Stem) Valid() bool { return s >= 0 && s < NumStems }

// Element returns the stem's elemental category.
func (s Stem) Element() Element { return Element(int(s) / 2) }

// Yang reports whether the stem has yang polarity.
func (s Stem) Yang() bool { return s%2 == 0 }

// String returns the branch's character.
func (b Branch) String() string {
	if !b.Valid() {
		return fmt.Sprintf("Branch(%d)", int(b))
	}
	return string(branchRunes[b])
}

// Valid reports whether b is inside the twelve-branch alphabet.
func (b Branch) Valid() bool { return b >= 0 && b < NumBranches }

// Element returns the branch's elemental category.
func (b Branch) Element() Element { return branchElements[b] }

// Yang reports whether the branch has yang polarity.
func (b Branch) Yang() bool { return b%2 == 0 }

// HiddenStems returns the branch's hidden stems in primary, secondary,
// residual order. The returned slice must not be modified.
func (b Branch) HiddenStems() []Stem { return hiddenStems[b] }

// StemFromRune looks up a stem by character.
func StemFromRune(r rune) (Stem, bool) {
	for i, c := range stemRunes {
		if c == r {
			return Stem(i), true
		}
	}
	return 0, false
}

// BranchFromRune looks up a branch by character.
func BranchFromRune(r rune) (Branch, bool) {
	for i, c := range branchRunes {
		if c == r {
			return Branch(i), true
		}
	}
	return 0, false
}

// ParseBranch parses a single-character branch symbol.
func ParseBranch(s string) (Branch, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, &InvalidChartError{Input: s, Reason: "branch must be a single character"}
	}
	b, ok := BranchFromRune(runes[0])
	if !ok {
		return 0, &UnknownSymbolError{Symbol: s, Kind: "branch"}
	}
	return b, nil
}

// ParseStem parses a single-character stem symbol.
func ParseStem(s string) (Stem, error) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, &InvalidChartError{Input: s, Reason: "stem must be a single character"}
	}
	st, ok := StemFromRune(runes[0])
	if !ok {
		return 0, &UnknownSymbolError{Symbol: s, Kind: "stem"}
	}
	return st, nil
}
