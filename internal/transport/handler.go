package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/auth"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/pkg/audio"
	"github.com/MrWong99/oralread/pkg/provider/stt"
)

const (
	defaultWriteTimeout = 10 * time.Second

	// readLimit bounds one client frame. Audio arrives in chunks of a few
	// hundred milliseconds.
	readLimit = 1 << 18

	// maxKeyterms caps the recognition hints sent with each stream.
	maxKeyterms = 100

	defaultSampleRate = 16000

	// closeTimeout bounds the close handshake with a client that stopped
	// reading.
	closeTimeout = time.Second
)

// ErrTooManySessions is returned by [Sessions.Open] when the server runs at
// capacity.
var ErrTooManySessions = errors.New("transport: too many active sessions")

// SessionRequest describes the session a connection asks for.
type SessionRequest struct {
	UserID     string
	TestID     string
	Presenter  assessment.Presenter
	Recognizer assessment.Recognizer
}

// Sessions creates assessment sessions for connections. Open reports
// [store.ErrNotFound] for unknown tests and [ErrTooManySessions] at
// capacity. Every opened session is handed back to Release exactly once.
type Sessions interface {
	Open(ctx context.Context, req SessionRequest) (*assessment.Session, error)
	Release(s *assessment.Session)
}

// Option configures a [Handler].
type Option func(*Handler)

// WithSpeechProvider enables server-side recognition: the browser streams
// audio and p transcribes it.
func WithSpeechProvider(p stt.Provider, cfg stt.StreamConfig) Option {
	return func(h *Handler) {
		h.speech = p
		h.speechCfg = cfg
	}
}

// WithOriginPatterns sets the host patterns allowed to open sessions from a
// browser. A "*" pattern disables the origin check.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		if slices.Contains(patterns, "*") {
			h.accept.InsecureSkipVerify = true
			return
		}
		h.accept.OriginPatterns = append(h.accept.OriginPatterns, patterns...)
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) { h.writeTimeout = d }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// Handler serves GET /api/v1/tests/{testID}/session. The caller must be
// authenticated; the principal's user id owns the result.
type Handler struct {
	sessions     Sessions
	speech       stt.Provider
	speechCfg    stt.StreamConfig
	accept       websocket.AcceptOptions
	writeTimeout time.Duration
	metrics      *observe.Metrics
}

// NewHandler returns a handler that opens sessions through sessions.
func NewHandler(sessions Sessions, opts ...Option) *Handler {
	h := &Handler{
		sessions:     sessions,
		writeTimeout: defaultWriteTimeout,
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.speechCfg.SampleRate == 0 {
		h.speechCfg.SampleRate = defaultSampleRate
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	testID := mux.Vars(r)["testID"]

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := observe.Logger(ctx).With("user_id", p.UserID, "test_id", testID)

	out := newOutbox(outboxSize, func() {
		log.Warn("client too slow, closing session")
		cancel()
	})

	var sess *assessment.Session
	post := func(ev assessment.Event) error { return sess.Post(ev) }

	var rec assessment.Recognizer = browserRecognizer{out: out}
	var sr *streamRecognizer
	if h.speech != nil {
		conv, err := audio.NewConverter(h.captureFormat(r), h.speechCfg.SampleRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sr = &streamRecognizer{
			ctx:      ctx,
			provider: h.speech,
			cfg:      h.speechCfg,
			conv:     conv,
			out:      out,
			post:     post,
			log:      log,
			metrics:  h.metrics,
		}
		rec = sr
	}

	sess, err := h.sessions.Open(ctx, SessionRequest{
		UserID:     p.UserID,
		TestID:     testID,
		Presenter:  presenter{out: out},
		Recognizer: rec,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "test not found")
		return
	case errors.Is(err, ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, "too many active sessions")
		return
	case err != nil:
		log.Error("open session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not open session")
		return
	}
	release := sync.OnceFunc(func() { h.sessions.Release(sess) })
	defer release()
	log = log.With("session_id", sess.ID())
	if sr != nil {
		sr.log = log
		sr.cfg.Keyterms = sess.Test().Vocabulary(maxKeyterms)
	}

	conn, err := websocket.Accept(w, r, &h.accept)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)
	log.Info("session connected")

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		h.writeLoop(ctx, conn, out, log, cancel)
	}()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readLoop(ctx, conn, sess, sr, log, cancel)
	}()

	runErr := sess.Run(ctx)
	if sr != nil {
		sr.Close()
	}
	out.close()
	<-writeDone
	// The result is saved once Run returns; the slot must not wait on the
	// client's close handshake.
	release()

	switch {
	case runErr == nil:
		h.closeConn(conn, websocket.StatusNormalClosure, "assessment finished")
	case ctx.Err() != nil:
		log.Info("session disconnected", "err", context.Cause(ctx))
	default:
		h.closeConn(conn, websocket.StatusInternalError, "assessment failed")
	}
	cancel()
	<-readDone
}

// closeConn starts the close handshake and drops the connection if the
// client has not answered within closeTimeout.
func (h *Handler) closeConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.Close(code, reason)
	}()
	t := time.NewTimer(closeTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		_ = conn.CloseNow()
		<-done
	}
}

// captureFormat reads the browser's audio format from the encoding,
// sample_rate and channels query parameters. Missing values default to the
// provider's linear16 mono format.
func (h *Handler) captureFormat(r *http.Request) audio.Format {
	q := r.URL.Query()
	f := audio.Format{Encoding: audio.Linear16, SampleRate: h.speechCfg.SampleRate, Channels: 1}
	if e := q.Get("encoding"); e != "" {
		f.Encoding = audio.Encoding(e)
	}
	if v := q.Get("sample_rate"); v != "" {
		f.SampleRate, _ = strconv.Atoi(v)
	}
	if v := q.Get("channels"); v != "" {
		f.Channels, _ = strconv.Atoi(v)
	}
	return f
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, out *outbox, log *slog.Logger, cancel context.CancelFunc) {
	for m := range out.msgs {
		wctx, wcancel := context.WithTimeout(ctx, h.writeTimeout)
		err := wsjson.Write(wctx, conn, m)
		wcancel()
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("websocket write failed", "err", err)
			}
			cancel()
			return
		}
	}
}

// readLoop feeds client frames into the session until the connection ends.
// A lost connection cancels the session.
func readLoop(ctx context.Context, conn *websocket.Conn, sess *assessment.Session, sr *streamRecognizer, log *slog.Logger, cancel context.CancelFunc) {
	defer cancel()
	for {
		typ, b, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				log.Debug("websocket read failed", "err", err)
			}
			return
		}
		switch typ {
		case websocket.MessageBinary:
			if sr != nil {
				sr.Feed(b)
			}
		case websocket.MessageText:
			ev, err := DecodeClientMessage(b)
			if err != nil {
				log.Warn("ignoring client message", "err", err)
				continue
			}
			// Frames arriving after the session ended are dropped; the
			// writer may still be flushing the result.
			_ = sess.Post(ev)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
