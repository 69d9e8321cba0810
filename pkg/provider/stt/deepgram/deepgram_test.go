package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	t.Parallel()
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en-US", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "numerals", "true", q.Get("numerals"))
	assertEqual(t, "endpointing", "500", q.Get("endpointing"))
	if q.Has("keyterm") {
		t.Errorf("keyterm should be absent, got %v", q["keyterm"])
	}
}

func TestBuildURL_Options(t *testing.T) {
	t.Parallel()
	p, err := New("key",
		WithModel("base"),
		WithLanguage("de-DE"),
		WithSampleRate(48000),
		WithEndpointing(0),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
	if q.Has("endpointing") {
		t.Errorf("endpointing should be absent when disabled, got %q", q.Get("endpointing"))
	}
}

func TestBuildURL_StreamConfigOverrides(t *testing.T) {
	t.Parallel()
	p, _ := New("key", WithLanguage("en-US"))

	rawURL, err := p.buildURL(stt.StreamConfig{
		SampleRate: 8000,
		Channels:   2,
		Language:   "es",
		Keyterms:   []string{"cat", "ball", "said"},
	})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "language", "es", q.Get("language"))
	assertEqual(t, "sample_rate", "8000", q.Get("sample_rate"))
	assertEqual(t, "channels", "2", q.Get("channels"))
	if got := q["keyterm"]; !slices.Equal(got, []string{"cat", "ball", "said"}) {
		t.Errorf("keyterm = %v, want [cat ball said]", got)
	}
}

// ---- Response parsing ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	t.Parallel()
	data := []byte(`{
		"type": "Results",
		"is_final": true,
		"start": 1.5,
		"duration": 0.8,
		"channel": {"alternatives": [{
			"transcript": "the cat sat",
			"confidence": 0.93,
			"words": [
				{"word": "the", "start": 1.5, "end": 1.6, "confidence": 0.99},
				{"word": "cat", "start": 1.7, "end": 1.9, "confidence": 0.91},
				{"word": "sat", "start": 2.0, "end": 2.3, "confidence": 0.88}
			]
		}]}
	}`)

	got, ok := parseDeepgramResponse(data)
	if !ok {
		t.Fatal("expected a transcript")
	}
	if got.Text != "the cat sat" {
		t.Errorf("Text = %q", got.Text)
	}
	if !got.IsFinal {
		t.Error("IsFinal = false, want true")
	}
	if got.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", got.Confidence)
	}
	if got.Timestamp != 1500*time.Millisecond {
		t.Errorf("Timestamp = %v, want 1.5s", got.Timestamp)
	}
	if len(got.Words) != 3 {
		t.Fatalf("len(Words) = %d, want 3", len(got.Words))
	}
	if w := got.Words[1]; w.Word != "cat" || w.Start != 1700*time.Millisecond || w.End != 1900*time.Millisecond {
		t.Errorf("Words[1] = %+v", w)
	}
}

func TestParseDeepgramResponse_Interim(t *testing.T) {
	t.Parallel()
	got, ok := parseDeepgramResponse([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"the ca"}]}}`))
	if !ok {
		t.Fatal("expected a transcript")
	}
	if got.IsFinal {
		t.Error("IsFinal = true, want false")
	}
	if got.Text != "the ca" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"metadata":           `{"type":"Metadata","request_id":"abc"}`,
		"speech started":     `{"type":"SpeechStarted","timestamp":0.4}`,
		"no alternatives":    `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
		"empty hypothesis":   `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`,
		"invalid json":       `{not json`,
		"utterance end only": `{"type":"UtteranceEnd","last_word_end":2.1}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, ok := parseDeepgramResponse([]byte(raw)); ok {
				t.Errorf("expected %s to be ignored", name)
			}
		})
	}
}

// ---- Constructor ----

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- Streaming against a local websocket server ----

func TestStartStream_RoundTrip(t *testing.T) {
	t.Parallel()

	gotAuth := make(chan string, 1)
	gotAudio := make(chan []byte, 1)
	gotClose := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		typ, chunk, err := conn.Read(ctx)
		if err != nil || typ != websocket.MessageBinary {
			return
		}
		gotAudio <- chunk

		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"ca"}]}}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"cat","confidence":0.9}]}}`))

		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		gotClose <- string(msg)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, err := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := p.StartStream(ctx, stt.StreamConfig{Keyterms: []string{"cat"}})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	assertEqual(t, "Authorization", "Token secret", <-gotAuth)

	if err := s.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	select {
	case chunk := <-gotAudio:
		if !slices.Equal(chunk, []byte{1, 2, 3, 4}) {
			t.Errorf("server received %v", chunk)
		}
	case <-ctx.Done():
		t.Fatal("server never received audio")
	}

	var got []string
	for len(got) < 2 {
		select {
		case tr := <-s.Results():
			label := "interim"
			if tr.IsFinal {
				label = "final"
			}
			got = append(got, label+":"+tr.Text)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for results, got %v", got)
		}
	}
	if !slices.Equal(got, []string{"interim:ca", "final:cat"}) {
		t.Errorf("results = %v", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case msg := <-gotClose:
		if !strings.Contains(msg, "CloseStream") {
			t.Errorf("close message = %q", msg)
		}
	case <-ctx.Done():
		t.Fatal("server never received CloseStream")
	}

	if _, open := <-s.Results(); open {
		t.Error("Results channel still open after Close")
	}
	if err := s.SendAudio([]byte{0}); err != stt.ErrClosed {
		t.Errorf("SendAudio after Close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStartStream_DialFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if _, err := p.StartStream(context.Background(), stt.StreamConfig{}); err == nil {
		t.Fatal("expected dial error")
	}
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
