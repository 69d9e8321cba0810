package testdef

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/oralread/internal/level"
)

// The wire shape mirrors the documents authored in the admin tool:
//
//	{id, title, stages: [{id, type, items, levels}]}
//
// items are plain strings (letters) or {text} objects (sentences). levels is
// a level→words mapping for word lists and a list of {levelId, title, text,
// questions} for passages.

type wireTest struct {
	ID     string      `json:"id" yaml:"id"`
	Title  string      `json:"title,omitempty" yaml:"title,omitempty"`
	Stages []wireStage `json:"stages" yaml:"stages"`
}

type wireStage struct {
	ID     string      `json:"id" yaml:"id"`
	Type   string      `json:"type" yaml:"type"`
	Items  []wireItem  `json:"items,omitempty" yaml:"items,omitempty"`
	Levels *wireLevels `json:"levels,omitempty" yaml:"levels,omitempty"`
}

type wireItem struct {
	text   string
	object bool
}

type wireLevels struct {
	words    map[string][]string
	passages []wirePassage
}

type wirePassage struct {
	LevelID   string         `json:"levelId" yaml:"levelId"`
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	Text      string         `json:"text" yaml:"text"`
	Questions []wireQuestion `json:"questions,omitempty" yaml:"questions,omitempty"`
}

type wireQuestion struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

type textObject struct {
	Text string `json:"text" yaml:"text"`
}

func (i *wireItem) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &i.text)
	}
	var o textObject
	if err := json.Unmarshal(b, &o); err != nil {
		return err
	}
	i.text, i.object = o.Text, true
	return nil
}

func (i wireItem) MarshalJSON() ([]byte, error) {
	if i.object {
		return json.Marshal(textObject{Text: i.text})
	}
	return json.Marshal(i.text)
}

func (i *wireItem) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		i.text = n.Value
		return nil
	}
	var o textObject
	if err := n.Decode(&o); err != nil {
		return err
	}
	i.text, i.object = o.Text, true
	return nil
}

func (i wireItem) MarshalYAML() (any, error) {
	if i.object {
		return textObject{Text: i.text}, nil
	}
	return i.text, nil
}

func (l *wireLevels) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.passages)
	}
	return json.Unmarshal(b, &l.words)
}

func (l wireLevels) MarshalJSON() ([]byte, error) {
	if l.passages != nil {
		return json.Marshal(l.passages)
	}
	return json.Marshal(l.words)
}

func (l *wireLevels) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		return n.Decode(&l.passages)
	}
	return n.Decode(&l.words)
}

func (l wireLevels) MarshalYAML() (any, error) {
	if l.passages != nil {
		return l.passages, nil
	}
	return l.words, nil
}

// UnmarshalJSON decodes the wire shape. Unknown stage types and level keys
// are reported as errors.
func (t *Test) UnmarshalJSON(b []byte) error {
	var w wireTest
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return t.fromWire(w)
}

// MarshalJSON encodes t in the wire shape.
func (t Test) MarshalJSON() ([]byte, error) {
	w, err := t.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalYAML decodes the wire shape from YAML.
func (t *Test) UnmarshalYAML(n *yaml.Node) error {
	var w wireTest
	if err := n.Decode(&w); err != nil {
		return err
	}
	return t.fromWire(w)
}

// MarshalYAML encodes t in the wire shape.
func (t Test) MarshalYAML() (any, error) {
	return t.toWire()
}

func (t *Test) fromWire(w wireTest) error {
	out := Test{ID: w.ID, Title: w.Title, Stages: make([]Stage, 0, len(w.Stages))}
	var errs []error
	for i, ws := range w.Stages {
		c, err := contentFromWire(ws)
		if err != nil {
			errs = append(errs, fmt.Errorf("stages[%d] (%s): %w", i, ws.ID, err))
			continue
		}
		out.Stages = append(out.Stages, Stage{ID: ws.ID, Content: c})
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("testdef: decode %q: %w", w.ID, err)
	}
	*t = out
	return nil
}

func contentFromWire(ws wireStage) (Content, error) {
	switch Kind(ws.Type) {
	case KindLetters:
		items := make([]string, len(ws.Items))
		for i, it := range ws.Items {
			items[i] = it.text
		}
		return Letters{Items: items}, nil

	case KindSentences:
		items := make([]Sentence, len(ws.Items))
		for i, it := range ws.Items {
			items[i] = Sentence{Text: it.text}
		}
		return Sentences{Items: items}, nil

	case KindWordList:
		if ws.Levels == nil || ws.Levels.passages != nil {
			return nil, errors.New("word_list levels must be a mapping of level to words")
		}
		levels := make(map[level.Level][]string, len(ws.Levels.words))
		var errs []error
		for key, words := range ws.Levels.words {
			l, err := level.Parse(key)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			levels[l] = words
		}
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
		return WordList{Levels: levels}, nil

	case KindPassage:
		if ws.Levels == nil || ws.Levels.words != nil {
			return nil, errors.New("oral_reading levels must be a list of passages")
		}
		levels := make([]PassageLevel, 0, len(ws.Levels.passages))
		var errs []error
		for _, wp := range ws.Levels.passages {
			l, err := level.Parse(wp.LevelID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			pl := PassageLevel{Level: l, Title: wp.Title, Text: wp.Text}
			for _, q := range wp.Questions {
				pl.Questions = append(pl.Questions, Question(q))
			}
			levels = append(levels, pl)
		}
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
		return Passage{Levels: levels}, nil

	default:
		return nil, fmt.Errorf("unknown stage type %q", ws.Type)
	}
}

func (t Test) toWire() (wireTest, error) {
	w := wireTest{ID: t.ID, Title: t.Title, Stages: make([]wireStage, 0, len(t.Stages))}
	for _, s := range t.Stages {
		ws := wireStage{ID: s.ID, Type: string(s.Kind())}
		switch c := s.Content.(type) {
		case Letters:
			for _, it := range c.Items {
				ws.Items = append(ws.Items, wireItem{text: it})
			}
		case Sentences:
			for _, it := range c.Items {
				ws.Items = append(ws.Items, wireItem{text: it.Text, object: true})
			}
		case WordList:
			words := make(map[string][]string, len(c.Levels))
			for l, pool := range c.Levels {
				words[l.String()] = pool
			}
			ws.Levels = &wireLevels{words: words}
		case Passage:
			passages := make([]wirePassage, 0, len(c.Levels))
			for _, pl := range c.Levels {
				wp := wirePassage{LevelID: pl.Level.String(), Title: pl.Title, Text: pl.Text}
				for _, q := range pl.Questions {
					wp.Questions = append(wp.Questions, wireQuestion(q))
				}
				passages = append(passages, wp)
			}
			ws.Levels = &wireLevels{passages: passages}
		default:
			return wireTest{}, fmt.Errorf("testdef: stage %q has no content", s.ID)
		}
		w.Stages = append(w.Stages, ws)
	}
	return w, nil
}

// ParseJSON decodes and validates a JSON test definition.
func ParseJSON(b []byte) (*Test, error) {
	var t Test
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseYAML decodes and validates a YAML test definition. Since YAML is a
// superset of JSON this also accepts JSON documents.
func ParseYAML(b []byte) (*Test, error) {
	var t Test
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// LevelKeys returns the level identifiers of a word list in ascending order.
func (c WordList) LevelKeys() []level.Level {
	keys := make([]level.Level, 0, len(c.Levels))
	for l := range c.Levels {
		keys = append(keys, l)
	}
	slices.Sort(keys)
	return keys
}
