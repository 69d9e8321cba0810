// Package stt defines the server-side speech recognition interface.
//
// Browsers usually recognise speech locally and send transcripts over the
// session websocket. When a session is configured for server-side
// recognition instead, the browser streams PCM audio and a [Provider]
// transcribes it. A [Stream] emits interim and final hypotheses on one
// ordered channel so that the assessment sees them in the order the
// recognizer produced them.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/oralread/pkg/types"
)

// ErrClosed is returned by [Stream.SendAudio] after the stream was closed.
var ErrClosed = errors.New("stt: stream closed")

// StreamConfig describes the audio format and recognition hints for a new
// stream.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz. Zero uses the provider default.
	SampleRate int

	// Channels is the number of interleaved channels. Zero means mono.
	Channels int

	// Language is a BCP-47 tag. Empty uses the provider default.
	Language string

	// Keyterms are words the recognizer should favour, typically the target
	// words of the current test.
	Keyterms []string
}

// Stream is an open transcription stream. All methods are safe for
// concurrent use.
type Stream interface {
	// SendAudio delivers 16-bit little-endian PCM matching the StreamConfig.
	SendAudio(chunk []byte) error

	// Results emits hypotheses in recognizer order. The channel is closed
	// when the stream ends, either because Close was called or because the
	// provider ended it.
	Results() <-chan types.Transcript

	// Close flushes pending audio and releases the stream. Calling Close
	// more than once is safe.
	Close() error
}

// Provider opens transcription streams.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
