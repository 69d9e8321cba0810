package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/pkg/audio"
	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// browserRecognizer drives the Web Speech recognizer in the browser. The
// browser reports results and the end of each cycle as client messages.
type browserRecognizer struct {
	out *outbox
}

func (r browserRecognizer) Start() error {
	return r.out.send(ServerMessage{Type: TypeListen})
}

func (r browserRecognizer) Stop() error {
	return r.out.send(ServerMessage{Type: TypeStopListening})
}

// streamRecognizer recognizes audio streamed by the browser with a server
// side [stt.Provider]. Each Start opens a new provider stream; the browser
// is told to send audio once the stream is ready.
//
// Start and Stop are called from the session goroutine and never block on
// the provider. Results of a stream are posted to the session only while no
// newer Start happened, so a late transcript for a previous item cannot be
// scored against the current one. Every stream posts exactly one
// [assessment.RecognizerEnded] when it ends unless it was superseded.
type streamRecognizer struct {
	ctx      context.Context
	provider stt.Provider
	cfg      stt.StreamConfig
	conv     *audio.Converter
	out      *outbox
	post     func(assessment.Event) error
	log      *slog.Logger
	metrics  *observe.Metrics

	mu     sync.Mutex
	gen    uint64
	active bool
	stream stt.Stream
	wg     sync.WaitGroup
}

func (r *streamRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return errConnClosed
	}
	if r.active {
		return nil
	}
	r.active = true
	r.gen++
	g := r.gen
	r.wg.Add(1)
	go r.open(g)
	return nil
}

func (r *streamRecognizer) Stop() error {
	r.mu.Lock()
	wasActive := r.active
	r.active = false
	st := r.stream
	r.stream = nil
	r.mu.Unlock()

	err := r.out.send(ServerMessage{Type: TypeStopListening})
	switch {
	case st != nil:
		// The pump posts RecognizerEnded once the stream drained.
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if cerr := st.Close(); cerr != nil {
				r.log.Debug("stt stream close failed", "err", cerr)
			}
		}()
	case !wasActive:
		// Nothing is running, typically after a failed dial.
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			_ = r.post(assessment.RecognizerEnded{})
		}()
	}
	// A pending dial sees active == false and reports the end itself.
	return err
}

// Feed converts one chunk of captured audio and forwards it to the open
// stream. Audio that arrives while no stream is open is dropped. Feed is
// called from the read loop only.
func (r *streamRecognizer) Feed(chunk []byte) {
	if r.conv != nil {
		if chunk = r.conv.Convert(chunk); len(chunk) == 0 {
			return
		}
	}
	r.mu.Lock()
	st := r.stream
	r.mu.Unlock()
	if st == nil {
		return
	}
	if err := st.SendAudio(chunk); err != nil && !errors.Is(err, stt.ErrClosed) {
		r.log.Debug("stt send audio failed", "err", err)
	}
}

// Close releases the open stream and waits for all background work. No
// events are posted after Close returns.
func (r *streamRecognizer) Close() {
	r.mu.Lock()
	r.active = false
	r.gen++
	st := r.stream
	r.stream = nil
	r.mu.Unlock()
	if st != nil {
		_ = st.Close()
	}
	r.wg.Wait()
}

func (r *streamRecognizer) current(g uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return g == r.gen
}

func (r *streamRecognizer) open(g uint64) {
	defer r.wg.Done()

	st, err := r.provider.StartStream(r.ctx, r.cfg)

	r.mu.Lock()
	if err != nil {
		stopped := g == r.gen && !r.active
		if g == r.gen {
			r.active = false
		}
		r.mu.Unlock()
		if r.ctx.Err() == nil {
			r.log.Warn("stt stream start failed", "err", err)
			r.metrics.RecordProviderError(r.ctx, "stt", "start")
		}
		if stopped {
			_ = r.post(assessment.RecognizerEnded{})
		}
		return
	}
	if g != r.gen || !r.active {
		stopped := g == r.gen
		r.mu.Unlock()
		_ = st.Close()
		if stopped {
			_ = r.post(assessment.RecognizerEnded{})
		}
		return
	}
	r.stream = st
	r.wg.Add(1)
	r.mu.Unlock()

	go r.pump(g, st)
	if err := r.out.send(ServerMessage{Type: TypeListen}); err != nil {
		r.log.Debug("listen not delivered", "err", err)
	}
}

// pump posts the results of one stream until it ends.
func (r *streamRecognizer) pump(g uint64, st stt.Stream) {
	defer r.wg.Done()
	for t := range st.Results() {
		if !r.current(g) {
			continue
		}
		if err := r.post(assessment.Transcript{Text: t.Text, Final: t.IsFinal}); err != nil {
			return
		}
	}

	r.mu.Lock()
	if g != r.gen {
		r.mu.Unlock()
		return
	}
	if r.stream == st {
		// The provider ended the stream on its own.
		r.stream = nil
		r.active = false
	}
	r.mu.Unlock()
	_ = r.post(assessment.RecognizerEnded{})
}
