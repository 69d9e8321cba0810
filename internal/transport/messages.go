// Package transport carries assessment sessions over websockets.
//
// One websocket connection hosts exactly one [assessment.Session]. The
// browser sends JSON text frames describing what the student did (speech
// recognition results, button presses) and, when server-side recognition is
// enabled, binary frames of 16-bit PCM audio. The server answers with JSON
// text frames describing what to show and when to listen.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/assessment"
)

// Client to server message types.
const (
	TypeTranscript       = "transcript"
	TypeRecognitionEnded = "recognition_ended"
	TypeDoneReading      = "done_reading"
	TypeSkipQuestion     = "skip_question"
	TypeContinue         = "continue"
)

// Server to client message types.
const (
	TypeListen        = "listen"
	TypeStopListening = "stop_listening"
	TypePrompt        = "prompt"
	TypeWords         = "words"
	TypeFeedback      = "feedback"
	TypeHeard         = "heard"
	TypeStageComplete = "stage_complete"
	TypeFinished      = "finished"
	TypeError         = "error"
)

// ErrUnknownMessage is returned when a client message has an unsupported
// type.
var ErrUnknownMessage = errors.New("transport: unknown message type")

// ClientMessage is a JSON text frame sent by the browser.
type ClientMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
}

// DecodeClientMessage parses a text frame and maps it to the assessment
// event it stands for.
func DecodeClientMessage(b []byte) (assessment.Event, error) {
	var m ClientMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("transport: decode message: %w", err)
	}
	return m.Event()
}

// Event returns the assessment event for m.
func (m ClientMessage) Event() (assessment.Event, error) {
	switch m.Type {
	case TypeTranscript:
		return assessment.Transcript{Text: m.Text, Final: m.Final}, nil
	case TypeRecognitionEnded:
		return assessment.RecognizerEnded{}, nil
	case TypeDoneReading:
		return assessment.DoneReading{}, nil
	case TypeSkipQuestion:
		return assessment.SkipQuestion{}, nil
	case TypeContinue:
		return assessment.Continue{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}

// ServerMessage is a JSON text frame sent to the browser. Only the fields
// belonging to Type are set.
type ServerMessage struct {
	Type    string              `json:"type"`
	Prompt  *PromptPayload      `json:"prompt,omitempty"`
	Words   []WordStatus        `json:"words,omitempty"`
	Correct *bool               `json:"correct,omitempty"`
	Text    string              `json:"text,omitempty"`
	Summary *assessment.Summary `json:"summary,omitempty"`
	Result  *assessment.Result  `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// PromptPayload is a prompt plus its listening window in milliseconds, so
// the browser can show a countdown.
type PromptPayload struct {
	assessment.Prompt
	WindowMS int64 `json:"window_ms,omitempty"`
}

// WordStatus is the live scoring state of one word of a sentence or
// passage.
type WordStatus struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

func wordStatuses(words []align.Word) []WordStatus {
	out := make([]WordStatus, len(words))
	for i, w := range words {
		out[i] = WordStatus{Text: w.Original, Status: w.Status.String()}
	}
	return out
}
