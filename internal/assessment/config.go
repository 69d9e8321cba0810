package assessment

import (
	"slices"
	"time"
)

// Config holds the timing and stage policies of an assessment.
type Config struct {
	// ListenTimeout bounds letter and word-list windows.
	ListenTimeout time.Duration
	// QuestionTimeout bounds comprehension question windows.
	QuestionTimeout time.Duration
	// SentenceTimeout bounds a sentence reading attempt.
	SentenceTimeout time.Duration
	// GracePeriod is how long a word-list word stays open for a late final
	// transcript after its window elapsed.
	GracePeriod time.Duration
	// FeedbackDelay is the pause between resolving an item and presenting
	// the next.
	FeedbackDelay time.Duration

	// NameOnlyStages lists letter stage IDs that skip the sound step.
	NameOnlyStages []string
	// OrderedStages lists stage IDs whose items are never shuffled.
	OrderedStages []string
	// ConfirmStages makes the controller wait for [Continue] after each
	// stage summary.
	ConfirmStages bool
	// AutoRestart restarts the recognizer when it ends a cycle on its own
	// while a window is open.
	AutoRestart bool
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		ListenTimeout:   4 * time.Second,
		QuestionTimeout: 15 * time.Second,
		SentenceTimeout: 15 * time.Second,
		GracePeriod:     500 * time.Millisecond,
		FeedbackDelay:   time.Second,
		NameOnlyStages:  []string{"letters_common"},
		OrderedStages:   []string{"sentence_filter"},
		AutoRestart:     true,
	}
}

func (c Config) nameOnly(stageID string) bool {
	return slices.Contains(c.NameOnlyStages, stageID)
}
