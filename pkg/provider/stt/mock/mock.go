// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts streams with the expected
// StreamConfig. Use Stream to push controlled Transcript values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	s := mock.NewStream()
//	p := &mock.Provider{Stream: s}
//	st, _ := p.StartStream(ctx, cfg)
//	s.Emit(types.Transcript{Text: "cat", IsFinal: true})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/oralread/pkg/provider/stt"
	"github.com/MrWong99/oralread/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is returned by StartStream. If nil, a fresh Stream is created
	// per call.
	Stream *Stream

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Stream, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Stream == nil {
		return NewStream(), nil
	}
	return p.Stream, nil
}

// Calls returns a copy of the recorded StartStream calls.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StartStreamCall(nil), p.StartStreamCalls...)
}

// Stream is a mock implementation of stt.Stream.
type Stream struct {
	mu      sync.Mutex
	results chan types.Transcript
	closed  bool

	// SendAudioErr, if non-nil, is returned from SendAudio.
	SendAudioErr error

	audio      [][]byte
	closeCount int
}

// NewStream returns a Stream with a buffered results channel.
func NewStream() *Stream {
	return &Stream{results: make(chan types.Transcript, 64)}
}

// SendAudio records chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.audio = append(s.audio, append([]byte(nil), chunk...))
	return nil
}

// Results returns the channel fed by Emit.
func (s *Stream) Results() <-chan types.Transcript { return s.results }

// Emit delivers t on the results channel. It is a no-op after Close.
func (s *Stream) Emit(t types.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results <- t
}

// End closes the results channel as if the provider had ended the stream.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
}

// Close ends the stream and counts the call.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closeCount++
	s.mu.Unlock()
	s.End()
	return nil
}

// Audio returns a copy of every chunk received so far.
func (s *Stream) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// CloseCount returns how many times Close was called.
func (s *Stream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

var (
	_ stt.Provider = (*Provider)(nil)
	_ stt.Stream   = (*Stream)(nil)
)
