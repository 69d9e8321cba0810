// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/oralread/pkg/provider/stt"
	"github.com/MrWong99/oralread/pkg/types"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000

	// Children pause mid-word; a long endpointing window keeps a slow
	// reading of one word in one final.
	defaultEndpointing = 500 * time.Millisecond

	// closeGrace is how long Close waits for Deepgram to flush its last
	// results after CloseStream.
	closeGrace = 2 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default BCP-47 language.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithEndpoint overrides the streaming endpoint. Tests point it at a local
// websocket server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithEndpointing sets how much trailing silence finalises an utterance.
func WithEndpointing(d time.Duration) Option {
	return func(p *Provider) { p.endpointing = d }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	sampleRate  int
	endpointing time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    defaultEndpoint,
		model:       defaultModel,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		endpointing: defaultEndpointing,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials Deepgram and returns a stream ready for audio. ctx
// bounds the dial only; the stream lives until Close or until Deepgram ends
// it.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &stream{
		conn:     conn,
		results:  make(chan types.Transcript, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		cancel:   cancel,
	}
	s.wg.Add(2)
	go s.readLoop(runCtx)
	go s.writeLoop(runCtx)
	return s, nil
}

// buildURL constructs the streaming endpoint URL for cfg.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 1
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("channels", strconv.Itoa(ch))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("numerals", "true")
	if p.endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(p.endpointing.Milliseconds(), 10))
	}
	for _, k := range cfg.Keyterms {
		q.Add("keyterm", k)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure of a Results event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// stream is a live Deepgram streaming session. It implements stt.Stream.
type stream struct {
	conn    *websocket.Conn
	results chan types.Transcript
	audio   chan []byte

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stt.ErrClosed
	}
}

func (s *stream) Results() <-chan types.Transcript { return s.results }

// Close asks Deepgram to flush, gives it closeGrace to deliver the last
// results, then stops both loops and closes the socket.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()
		if err := s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err == nil {
			select {
			case <-s.readDone:
			case <-ctx.Done():
			}
		}
		s.cancel()
		s.wg.Wait()
		_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

func (s *stream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *stream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.readDone)
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				slog.Warn("deepgram: read failed", "err", err)
			}
			return
		}
		t, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		select {
		case s.results <- t:
		case <-ctx.Done():
			return
		}
	}
}

// parseDeepgramResponse turns a Results message into a Transcript. Other
// message types and empty hypotheses are ignored.
func parseDeepgramResponse(data []byte) (types.Transcript, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Transcript{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return types.Transcript{}, false
	}

	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return types.Transcript{}, false
	}
	words := make([]types.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, types.WordDetail{
			Word:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Confidence,
		})
	}
	return types.Transcript{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
		Timestamp:  seconds(resp.Start),
	}, true
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
