package testdef

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks t for definition errors that would abort a session part
// way through. All problems are reported together.
func Validate(t *Test) error {
	if t == nil {
		return errors.New("testdef: nil test")
	}
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if len(t.Stages) == 0 {
		errs = append(errs, errors.New("at least one stage is required"))
	}

	seen := make(map[string]int, len(t.Stages))
	for i, s := range t.Stages {
		prefix := fmt.Sprintf("stages[%d]", i)
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", prefix))
		} else if prev, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q (also stages[%d])", prefix, s.ID, prev))
		} else {
			seen[s.ID] = i
		}
		errs = append(errs, validateContent(prefix, s.Content)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("testdef: validate %q: %w", t.ID, err)
	}
	return nil
}

func validateContent(prefix string, c Content) []error {
	var errs []error
	switch c := c.(type) {
	case Letters:
		if len(c.Items) == 0 {
			errs = append(errs, fmt.Errorf("%s: letter stage has no items", prefix))
		}
		for j, it := range c.Items {
			if strings.TrimSpace(it) == "" {
				errs = append(errs, fmt.Errorf("%s.items[%d]: empty letter", prefix, j))
			}
		}
	case Sentences:
		if len(c.Items) == 0 {
			errs = append(errs, fmt.Errorf("%s: sentence stage has no items", prefix))
		}
		for j, it := range c.Items {
			if strings.TrimSpace(it.Text) == "" {
				errs = append(errs, fmt.Errorf("%s.items[%d]: empty sentence text", prefix, j))
			}
		}
	case WordList:
		if len(c.Levels) == 0 {
			errs = append(errs, fmt.Errorf("%s: word list has no levels", prefix))
		}
		for _, l := range c.LevelKeys() {
			if !l.Valid() {
				errs = append(errs, fmt.Errorf("%s.levels: unknown level %v", prefix, l))
			}
			if len(c.Levels[l]) == 0 {
				errs = append(errs, fmt.Errorf("%s.levels.%s: no words", prefix, l))
			}
		}
	case Passage:
		if len(c.Levels) == 0 {
			errs = append(errs, fmt.Errorf("%s: passage stage has no levels", prefix))
		}
		for j, pl := range c.Levels {
			p := fmt.Sprintf("%s.levels[%d]", prefix, j)
			if !pl.Level.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown level %v", p, pl.Level))
			}
			if strings.TrimSpace(pl.Text) == "" {
				errs = append(errs, fmt.Errorf("%s (%s): passage has no text", p, pl.Level))
			}
			for k, q := range pl.Questions {
				if strings.TrimSpace(q.Question) == "" {
					errs = append(errs, fmt.Errorf("%s.questions[%d]: empty question", p, k))
				}
				if len(q.Answers()) == 0 {
					errs = append(errs, fmt.Errorf("%s.questions[%d]: no accepted answer", p, k))
				}
			}
		}
	case nil:
		errs = append(errs, fmt.Errorf("%s: stage has no content", prefix))
	}
	return errs
}
