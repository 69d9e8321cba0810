package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/pkg/provider/stt"
	"github.com/MrWong99/oralread/pkg/provider/stt/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  max_sessions: 40
  allowed_origins: ["https://school.example"]
auth:
  secret: a-very-long-test-secret
  issuer: oralread
storage:
  definitions: file
  definitions_dir: ./tests
  results: [postgres, sqlite]
  postgres_dsn: postgres://localhost/oralread
  sqlite_path: /var/lib/oralread/fallback.db
speech:
  mode: server
  providers:
    - name: deepgram
      api_key: dg-key
      model: nova-3
assessment:
  listen_timeout: 5s
  grace_period: 750ms
  name_only_stages: []
  confirm_stages: true
  auto_restart: false
`

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// ── loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, validYAML)

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Server.MaxSessions != 40 {
		t.Errorf("max_sessions: got %d", cfg.Server.MaxSessions)
	}
	if got := cfg.Storage.Results; len(got) != 2 || got[0] != config.BackendPostgres || got[1] != config.BackendSQLite {
		t.Errorf("results: got %v", got)
	}
	if cfg.Speech.Mode != config.SpeechServer || len(cfg.Speech.Providers) != 1 {
		t.Errorf("speech: got %+v", cfg.Speech)
	}
	if cfg.Speech.Providers[0].APIKey != "dg-key" {
		t.Errorf("api_key: got %q", cfg.Speech.Providers[0].APIKey)
	}
	if cfg.Assessment.ListenTimeout != 5*time.Second {
		t.Errorf("listen_timeout: got %v", cfg.Assessment.ListenTimeout)
	}
	if cfg.Assessment.GracePeriod != 750*time.Millisecond {
		t.Errorf("grace_period: got %v", cfg.Assessment.GracePeriod)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, "auth:\n  secret: a-very-long-test-secret\n")

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr default: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default: got %q", cfg.Server.LogLevel)
	}
	if cfg.Storage.Definitions != config.BackendFile || cfg.Storage.DefinitionsDir != "tests" {
		t.Errorf("definitions default: got %q %q", cfg.Storage.Definitions, cfg.Storage.DefinitionsDir)
	}
	if cfg.Speech.Mode != config.SpeechBrowser {
		t.Errorf("speech.mode default: got %q", cfg.Speech.Mode)
	}
	if cfg.Speech.SampleRate != 16000 {
		t.Errorf("sample_rate default: got %d", cfg.Speech.SampleRate)
	}
	if cfg.Observability.MetricsPath != "/metrics" {
		t.Errorf("metrics_path default: got %q", cfg.Observability.MetricsPath)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token_ttl default: got %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("auth:\n  secret: a-very-long-test-secret\nclassrooms: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadFromReader_EmptyNeedsSecret(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "auth.secret") {
		t.Fatalf("expected auth.secret error, got %v", err)
	}
}

// ── settings ─────────────────────────────────────────────────────────────────

func TestAssessmentSettings(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, validYAML).Assessment.Settings()

	if s.ListenTimeout != 5*time.Second {
		t.Errorf("ListenTimeout = %v", s.ListenTimeout)
	}
	if s.QuestionTimeout != 15*time.Second {
		t.Errorf("QuestionTimeout = %v, want default 15s", s.QuestionTimeout)
	}
	if s.NameOnlyStages == nil || len(s.NameOnlyStages) != 0 {
		t.Errorf("NameOnlyStages = %#v, want explicit empty list", s.NameOnlyStages)
	}
	if len(s.OrderedStages) != 1 || s.OrderedStages[0] != "sentence_filter" {
		t.Errorf("OrderedStages = %v, want default", s.OrderedStages)
	}
	if !s.ConfirmStages {
		t.Error("ConfirmStages = false")
	}
	if s.AutoRestart {
		t.Error("AutoRestart = true, want false")
	}

	def := config.AssessmentConfig{}.Settings()
	if !def.AutoRestart || len(def.NameOnlyStages) != 1 {
		t.Errorf("zero AssessmentConfig should give defaults, got %+v", def)
	}

	shuffleAll := config.AssessmentConfig{OrderedStages: []string{}}.Settings()
	if shuffleAll.OrderedStages == nil || len(shuffleAll.OrderedStages) != 0 {
		t.Errorf("OrderedStages = %#v, want explicit empty list", shuffleAll.OrderedStages)
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}, config.SpeechConfig{})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_RegisteredSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	var gotLang string
	reg.RegisterSTT("fake", func(e config.ProviderEntry, s config.SpeechConfig) (stt.Provider, error) {
		gotLang = s.Language
		return &mock.Provider{}, nil
	})
	reg.RegisterSTT("another", func(config.ProviderEntry, config.SpeechConfig) (stt.Provider, error) {
		return &mock.Provider{}, nil
	})

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "fake"}, config.SpeechConfig{Language: "en-GB"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if _, err := p.StartStream(context.Background(), stt.StreamConfig{}); err != nil {
		t.Errorf("StartStream: %v", err)
	}
	if gotLang != "en-GB" {
		t.Errorf("factory saw language %q", gotLang)
	}
	if names := reg.STTNames(); len(names) != 2 || names[0] != "another" || names[1] != "fake" {
		t.Errorf("STTNames = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("missing key")
	reg.RegisterSTT("broken", func(config.ProviderEntry, config.SpeechConfig) (stt.Provider, error) {
		return nil, boom
	})
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"}, config.SpeechConfig{}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped factory error, got %v", err)
	}
}
