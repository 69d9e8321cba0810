package testdef

import (
	"math/rand/v2"
	"slices"
)

// Prepare returns a copy of t ready for one administration: letter and
// sentence items are shuffled with rng, except in stages whose ID is listed
// in ordered. t is not modified.
func (t *Test) Prepare(rng *rand.Rand, ordered []string) *Test {
	out := t.Clone()
	for i := range out.Stages {
		s := &out.Stages[i]
		if slices.Contains(ordered, s.ID) {
			continue
		}
		switch c := s.Content.(type) {
		case Letters:
			rng.Shuffle(len(c.Items), func(a, b int) { c.Items[a], c.Items[b] = c.Items[b], c.Items[a] })
		case Sentences:
			rng.Shuffle(len(c.Items), func(a, b int) { c.Items[a], c.Items[b] = c.Items[b], c.Items[a] })
		}
	}
	return out
}

// Draw shuffles a copy of words with rng and keeps the first n.
func Draw(rng *rand.Rand, words []string, n int) []string {
	out := append([]string(nil), words...)
	rng.Shuffle(len(out), func(a, b int) { out[a], out[b] = out[b], out[a] })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
