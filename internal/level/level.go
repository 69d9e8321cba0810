// Package level holds the ordinal reading levels and the pure selection
// rules that map one stage's evidence onto the configuration of the next.
package level

import (
	"fmt"
	"math"
)

// Level is an ordinal reading difficulty, lowest first.
type Level int

const (
	PrePrimer Level = iota
	Primer
	Level1
	Level2
	Level3
	Level4
	Level5
	Level6
)

// Lowest and Highest bound the ordinal range.
const (
	Lowest  = PrePrimer
	Highest = Level6
)

var names = [...]string{
	PrePrimer: "pre_primer",
	Primer:    "primer",
	Level1:    "level_1",
	Level2:    "level_2",
	Level3:    "level_3",
	Level4:    "level_4",
	Level5:    "level_5",
	Level6:    "level_6",
}

// All returns every level in ascending order.
func All() []Level {
	out := make([]Level, 0, len(names))
	for l := Lowest; l <= Highest; l++ {
		out = append(out, l)
	}
	return out
}

// Valid reports whether l is within range.
func (l Level) Valid() bool { return l >= Lowest && l <= Highest }

// String returns the level identifier used in test definitions.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return names[l]
}

// Index returns the ordinal position, 0 for pre_primer.
func (l Level) Index() int { return int(l) }

// Down returns the next lower level, floored at [Lowest].
func (l Level) Down() Level {
	if l <= Lowest {
		return Lowest
	}
	return l - 1
}

// Up returns the next higher level, capped at [Highest].
func (l Level) Up() Level {
	if l >= Highest {
		return Highest
	}
	return l + 1
}

// Parse maps a level identifier such as "level_3" to its Level.
func Parse(s string) (Level, error) {
	for i, n := range names {
		if n == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("level: unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("level: cannot marshal %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = p
	return nil
}

// WordListConfig is the size and pass mark of a word-list draw.
type WordListConfig struct {
	Count int
	Pass  int
}

// WordListConfigFor returns the word-list configuration for l. Unknown
// levels get the pre_primer configuration.
func WordListConfigFor(l Level) WordListConfig {
	switch l {
	case PrePrimer, Primer:
		return WordListConfig{Count: 10, Pass: 8}
	case Level1, Level2, Level3:
		return WordListConfig{Count: 15, Pass: 12}
	case Level4, Level5, Level6:
		return WordListConfig{Count: 20, Pass: 15}
	default:
		return WordListConfig{Count: 10, Pass: 8}
	}
}

// FromSentences maps the 0-based index of the highest fully correct sentence
// (-1 for none) to a word-list level.
func FromSentences(highest int) Level {
	switch {
	case highest < 0:
		return PrePrimer
	case highest >= 4:
		return Level4
	default:
		return Level(highest + 1)
	}
}

// PassageLevel keeps the attempted word-list level when score reaches its
// pass mark and drops one level otherwise.
func PassageLevel(attempted Level, score int) Level {
	if score >= WordListConfigFor(attempted).Pass {
		return attempted
	}
	return attempted.Down()
}

// ComprehensionPercent returns correct/total as a rounded percentage, 0 when
// there were no questions.
func ComprehensionPercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
