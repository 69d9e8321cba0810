package align_test

import (
	"testing"

	"github.com/MrWong99/oralread/internal/align"
)

func statuses(a *align.Attempt) []align.Status {
	words := a.Words()
	out := make([]align.Status, len(words))
	for i, w := range words {
		out[i] = w.Status
	}
	return out
}

func assertStatuses(t *testing.T, a *align.Attempt, want ...align.Status) {
	t.Helper()
	got := statuses(a)
	if len(got) != len(want) {
		t.Fatalf("len(words) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word[%d] status = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConsume_SkippedFirstWord(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("the cat sat")
	if !a.Consume([]string{"cat", "sat"}) {
		t.Fatal("Consume returned false, want true")
	}
	assertStatuses(t, a, align.Incorrect, align.Correct, align.Correct)
	if a.Cursor() != 2 {
		t.Errorf("Cursor = %d, want 2", a.Cursor())
	}
	if !a.Complete() {
		t.Error("Complete = false, want true")
	}
}

func TestConsume_NoiseDiscarded(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("run fast now")
	a.Consume([]string{"run", "really", "fast", "now"})
	assertStatuses(t, a, align.Correct, align.Correct, align.Correct)
	if !a.AllCorrect() {
		t.Error("AllCorrect = false, want true")
	}
}

func TestConsume_OutsideLookahead(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("one two three four five")
	if a.Consume([]string{"four"}) {
		t.Fatal("Consume returned true for a token beyond the window")
	}
	if a.Cursor() != -1 {
		t.Errorf("Cursor = %d, want -1", a.Cursor())
	}
	assertStatuses(t, a, align.Pending, align.Pending, align.Pending, align.Pending, align.Pending)
}

func TestConsume_IncrementalChunks(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("The big dog ran home.")
	a.Consume([]string{"the", "big"})
	a.Consume([]string{"the", "big", "dog"})
	if a.Cursor() != 2 {
		t.Fatalf("Cursor = %d, want 2", a.Cursor())
	}
	a.Consume([]string{"ran", "home"})
	assertStatuses(t, a, align.Correct, align.Correct, align.Correct, align.Correct, align.Correct)
}

func TestConsume_CursorNeverDecreases(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("a b c d e f")
	prev := a.Cursor()
	for _, tok := range []string{"c", "a", "b", "f", "e", "d", "zzz"} {
		a.Consume([]string{tok})
		if a.Cursor() < prev {
			t.Fatalf("cursor went from %d to %d on %q", prev, a.Cursor(), tok)
		}
		if a.Cursor() > a.Len()-1 {
			t.Fatalf("cursor %d exceeds last index %d", a.Cursor(), a.Len()-1)
		}
		prev = a.Cursor()
	}
}

func TestNewAttempt_DropsPunctuationTokens(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("Stop -- now !")
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	words := a.Words()
	if words[0].Normalized != "stop" || words[1].Normalized != "now" {
		t.Errorf("words = %+v", words)
	}
	if words[0].Original != "Stop" {
		t.Errorf("Original = %q, want Stop", words[0].Original)
	}
}

func TestExpirePending(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("the cat sat")
	a.Consume([]string{"the"})
	if n := a.ExpirePending(); n != 2 {
		t.Errorf("ExpirePending = %d, want 2", n)
	}
	total, correct, incorrect, pending := a.Tally()
	if total != 3 || correct != 1 || incorrect != 2 || pending != 0 {
		t.Errorf("Tally = %d/%d/%d/%d, want 3/1/2/0", total, correct, incorrect, pending)
	}
	if a.Errors() != 2 {
		t.Errorf("Errors = %d, want 2", a.Errors())
	}
	// Expired words are terminal.
	a.Consume([]string{"cat", "sat"})
	assertStatuses(t, a, align.Correct, align.Incorrect, align.Incorrect)
}

func TestWords_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a := align.NewAttempt("hello world")
	w := a.Words()
	w[0].Status = align.Correct
	if a.Words()[0].Status != align.Pending {
		t.Error("mutating Words() result changed the attempt")
	}
}
