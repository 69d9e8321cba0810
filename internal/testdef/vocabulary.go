package testdef

import (
	"strings"
	"unicode"
)

// Vocabulary returns up to limit distinct lowercase words a student may be
// asked to read in t: word-list words first, then sentence words, then
// passage words. Letters are not included. A limit <= 0 means no limit.
func (t *Test) Vocabulary(limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(text string) bool {
		for _, f := range strings.Fields(text) {
			w := strings.ToLower(strings.TrimFunc(f, func(r rune) bool {
				return unicode.IsPunct(r) || unicode.IsSymbol(r)
			}))
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		return true
	}

	for _, s := range t.Stages {
		if wl, ok := s.Content.(WordList); ok {
			for _, l := range wl.LevelKeys() {
				for _, w := range wl.Levels[l] {
					if !add(w) {
						return out
					}
				}
			}
		}
	}
	for _, s := range t.Stages {
		if sc, ok := s.Content.(Sentences); ok {
			for _, it := range sc.Items {
				if !add(it.Text) {
					return out
				}
			}
		}
	}
	for _, s := range t.Stages {
		if p, ok := s.Content.(Passage); ok {
			for _, pl := range p.Levels {
				if !add(pl.Text) {
					return out
				}
			}
		}
	}
	return out
}
