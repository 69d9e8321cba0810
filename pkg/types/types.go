// Package types defines the values shared between speech providers, the
// transport layer and the assessment engine.
//
// They live here so that pkg/provider/stt and internal/assessment can agree on
// a transcript shape without importing each other.
package types

import (
	"strings"
	"time"
)

// Transcript is one speech recognition hypothesis for the current utterance.
// Interim and final hypotheses share this type.
type Transcript struct {
	// Text is the best hypothesis text as delivered by the recognizer.
	Text string `json:"text"`

	// IsFinal reports whether the recognizer has settled on this hypothesis.
	// Interim hypotheses may be revised by later results.
	IsFinal bool `json:"final"`

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// recognizer does not report one (the browser Web Speech API often
	// doesn't for interim results).
	Confidence float64 `json:"confidence,omitempty"`

	// Words carries per-word timing when the recognizer supports it.
	Words []WordDetail `json:"words,omitempty"`

	// Timestamp marks when the utterance started, relative to stream start.
	Timestamp time.Duration `json:"-"`
}

// WordDetail holds per-word metadata from recognizers that report it.
type WordDetail struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"`
}

// Empty reports whether the transcript carries no usable text.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}
