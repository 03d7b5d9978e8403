package chart

// SeasonState is the strength phase of an element relative to the month branch.
type SeasonState string

const (
	Prosperous    SeasonState = "prosperous"
	Strengthening SeasonState = "strengthening"
	Resting       SeasonState = "resting"
	Trapped       SeasonState = "trapped"
	Dead          SeasonState = "dead"
)

// SeasonStates lists every state, strongest first.
func SeasonStates() []SeasonState {
	return []SeasonState{Prosperous, Strengthening, Resting, Trapped, Dead}
}

// StateIn returns the seasonal state of e in the given month branch.
func StateIn(e Element, month Branch) SeasonState {
	m := month.Element()
	switch {
	case e == m:
		return Prosperous
	case m.Generates() == e:
		return Strengthening
	case e.Generates() == m:
		return Resting
	case e.Controls() == m:
		return Trapped
	default:
		return Dead
	}
}

// StemCombination returns the transformed element when a and b form one of
// the five stem combinations.
func StemCombination(a, b Stem) (Element, bool) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi-lo != 5 {
		return 0, false
	}
	// 甲己 Earth, 乙庚 Metal, 丙辛 Water, 丁壬 Wood, 戊癸 Fire
	return Element((int(lo) + 2) % NumElements), true
}

type branchPair [2]Branch

func pairKey(a, b Branch) branchPair {
	if a > b {
		a, b = b, a
	}
	return branchPair{a, b}
}

var sixCombinations = map[branchPair]Element{
	pairKey(0, 1):  Earth, // 子丑
	pairKey(2, 11): Wood,  // 寅亥
	pairKey(3, 10): Fire,  // 卯戌
	pairKey(4, 9):  Metal, // 辰酉
	pairKey(5, 8):  Water, // 巳申
	pairKey(6, 7):  Fire,  // 午未
}

// BranchCombination reports whether a and b form a six-combination and its element.
func BranchCombination(a, b Branch) (Element, bool) {
	e, ok := sixCombinations[pairKey(a, b)]
	return e, ok
}

// Trine is a three-harmony frame.
type Trine struct {
	Members [3]Branch
	Element Element
}

var trines = []Trine{
	{Members: [3]Branch{8, 0, 4}, Element: Water}, // 申子辰
	{Members: [3]Branch{11, 3, 7}, Element: Wood}, // 亥卯未
	{Members: [3]Branch{2, 6, 10}, Element: Fire}, // 寅午戌
	{Members: [3]Branch{5, 9, 1}, Element: Metal}, // 巳酉丑
}

// Trines returns the four three-harmony frames.
func Trines() []Trine { return trines }

// Contains reports whether b is a member of the trine.
func (t Trine) Contains(b Branch) bool {
	return t.Members[0] == b || t.Members[1] == b || t.Members[2] == b
}

// Clashes reports whether a and b are opposite branches.
func Clashes(a, b Branch) bool {
	return (int(a)+6)%NumBranches == int(b)
}

var harms = map[branchPair]bool{
	pairKey(0, 7):  true, // 子未
	pairKey(1, 6):  true, // 丑午
	pairKey(2, 5):  true, // 寅巳
	pairKey(3, 4):  true, // 卯辰
	pairKey(8, 11): true, // 申亥
	pairKey(9, 10): true, // 酉戌
}

// Harms reports whether a and b form a harm pair.
func Harms(a, b Branch) bool { return harms[pairKey(a, b)] }

var punishments = map[branchPair]bool{
	pairKey(2, 5):   true, // 寅巳
	pairKey(5, 8):   true, // 巳申
	pairKey(8, 2):   true, // 申寅
	pairKey(1, 10):  true, // 丑戌
	pairKey(10, 7):  true, // 戌未
	pairKey(7, 1):   true, // 未丑
	pairKey(0, 3):   true, // 子卯
	pairKey(4, 4):   true, // 辰辰
	pairKey(6, 6):   true, // 午午
	pairKey(9, 9):   true, // 酉酉
	pairKey(11, 11): true, // 亥亥
}

// Punishes reports whether a and b form a punishment (including self-punishment).
func Punishes(a, b Branch) bool { return punishments[pairKey(a, b)] }

var vaults = map[Branch]Element{
	4:  Water, // 辰
	10: Fire,  // 戌
	1:  Metal, // 丑
	7:  Wood,  // 未
}

// VaultElement returns the element stored by a vault branch.
func VaultElement(b Branch) (Element, bool) {
	e, ok := vaults[b]
	return e, ok
}

// SexagenaryIndex returns the position of a stem/branch pair in the
// sixty-pair cycle. Pairs with mismatched polarity do not exist.
func SexagenaryIndex(s Stem, b Branch) (int, bool) {
	if s.Yang() != b.Yang() {
		return 0, false
	}
	for n := int(s); n < 60; n += NumStems {
		if n%NumBranches == int(b) {
			return n, true
		}
	}
	return 0, false
}

// VoidBranches returns the two branches left empty by the decade of the
// given pillar.
func VoidBranches(p Pillar) [2]Branch {
	start := (int(p.Branch) - int(p.Stem) + NumBranches) % NumBranches
	return [2]Branch{
		Branch((start + 10) % NumBranches),
		Branch((start + 11) % NumBranches),
	}
}
