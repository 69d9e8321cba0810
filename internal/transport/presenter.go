package transport

import (
	"errors"
	"sync"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/assessment"
)

// outboxSize is how many server messages may wait for the writer. A client
// that falls this far behind is disconnected.
const outboxSize = 128

var errConnClosed = errors.New("transport: connection closed")

// outbox queues server messages for the connection writer without ever
// blocking the sender.
type outbox struct {
	mu     sync.Mutex
	msgs   chan ServerMessage
	closed bool

	slowOnce sync.Once
	onSlow   func()
}

func newOutbox(size int, onSlow func()) *outbox {
	return &outbox{msgs: make(chan ServerMessage, size), onSlow: onSlow}
}

// send enqueues m. It returns errConnClosed after close and drops m when
// the queue is full, invoking onSlow once.
func (o *outbox) send(m ServerMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errConnClosed
	}
	select {
	case o.msgs <- m:
		return nil
	default:
		if o.onSlow != nil {
			o.slowOnce.Do(o.onSlow)
		}
		return errConnClosed
	}
}

// close stops accepting messages. Queued messages stay readable.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.msgs)
	}
}

// presenter renders assessment output as server messages.
type presenter struct {
	out *outbox
}

var _ assessment.Presenter = presenter{}

func (p presenter) Present(pr assessment.Prompt) {
	_ = p.out.send(ServerMessage{
		Type:   TypePrompt,
		Prompt: &PromptPayload{Prompt: pr, WindowMS: pr.Window.Milliseconds()},
	})
}

func (p presenter) Words(words []align.Word) {
	_ = p.out.send(ServerMessage{Type: TypeWords, Words: wordStatuses(words)})
}

func (p presenter) Feedback(correct bool) {
	_ = p.out.send(ServerMessage{Type: TypeFeedback, Correct: &correct})
}

func (p presenter) Heard(text string) {
	_ = p.out.send(ServerMessage{Type: TypeHeard, Text: text})
}

func (p presenter) StageComplete(s assessment.Summary) {
	_ = p.out.send(ServerMessage{Type: TypeStageComplete, Summary: &s})
}

func (p presenter) Finished(r assessment.Result) {
	_ = p.out.send(ServerMessage{Type: TypeFinished, Result: &r})
}

func (p presenter) Fail(err error) {
	_ = p.out.send(ServerMessage{Type: TypeError, Error: err.Error()})
}
