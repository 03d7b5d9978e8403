package constants

// Label is a strength classification of the day master.
type Label string

const (
	// LabelStrong means self and resource energy dominate the chart.
	LabelStrong Label = "Strong"

	// LabelBalanced sits between the weak and strong thresholds.
	LabelBalanced Label = "Balanced"

	// LabelWeak means self and resource energy are below the weak threshold.
	LabelWeak Label = "Weak"

	// LabelSpecialStrong is the extreme high end where ordinary grading breaks down.
	LabelSpecialStrong Label = "Special_Strong"

	// LabelFollower is the extreme low end, or a rootless day master below the weak threshold.
	LabelFollower Label = "Follower"

	// LabelUnknown is reported when the chart carries no energy at all.
	LabelUnknown Label = "Unknown"
)

// Labels lists the labels from strongest to weakest, then Unknown.
func Labels() []Label {
	return []Label{LabelSpecialStrong, LabelStrong, LabelBalanced, LabelWeak, LabelFollower, LabelUnknown}
}

// Valid returns true if the label is a recognized value.
func (l Label) Valid() bool {
	switch l {
	case LabelStrong, LabelBalanced, LabelWeak, LabelSpecialStrong, LabelFollower, LabelUnknown:
		return true
	}
	return false
}

// String returns the string representation of the label.
func (l Label) String() string {
	return string(l)
}

// Gender selects the spouse star in the wealth narrative.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid returns true if the gender is a recognized value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}
