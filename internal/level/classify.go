package level

// Classification is the reading tier of one performance axis.
type Classification string

const (
	Independent   Classification = "Independent"
	Instructional Classification = "Instructional"
	Frustrational Classification = "Frustrational"
)

// ClassifyOral tiers a passage reading by its error count.
func ClassifyOral(errors int) Classification {
	switch {
	case errors >= 5:
		return Frustrational
	case errors >= 3:
		return Instructional
	default:
		return Independent
	}
}

// ClassifyComprehension tiers a comprehension percentage.
func ClassifyComprehension(pct int) Classification {
	switch {
	case pct < 40:
		return Frustrational
	case pct < 80:
		return Instructional
	default:
		return Independent
	}
}

// Placement returns the final level: the passage level, dropped by one
// (floored) when either axis is Frustrational. The bool reports whether the
// level actually moved, so it is false at the floor.
func Placement(passage Level, oral, comp Classification) (Level, bool) {
	if oral == Frustrational || comp == Frustrational {
		down := passage.Down()
		return down, down != passage
	}
	return passage, false
}
