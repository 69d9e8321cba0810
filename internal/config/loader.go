package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the speech providers known to this build. Used
// by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"deepgram"}

// minSecretLen is the shortest accepted HS256 secret.
const minSecretLen = 16

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 12 * time.Hour
	}
	if cfg.Storage.Definitions == "" {
		cfg.Storage.Definitions = BackendFile
	}
	if cfg.Storage.Definitions == BackendFile && cfg.Storage.DefinitionsDir == "" {
		cfg.Storage.DefinitionsDir = "tests"
	}
	if cfg.Storage.Breaker.MaxFailures == 0 {
		cfg.Storage.Breaker.MaxFailures = 3
	}
	if cfg.Storage.Breaker.ResetTimeout == 0 {
		cfg.Storage.Breaker.ResetTimeout = 30 * time.Second
	}
	if cfg.Speech.Mode == "" {
		cfg.Speech.Mode = SpeechBrowser
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "en-US"
	}
	if cfg.Speech.SampleRate == 0 {
		cfg.Speech.SampleRate = 16000
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "oralread"
	}
	if cfg.Observability.MetricsPath == "" {
		cfg.Observability.MetricsPath = "/metrics"
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Auth
	if len(cfg.Auth.Secret) < minSecretLen {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d characters", minSecretLen))
	}
	if cfg.Auth.TokenTTL < 0 {
		errs = append(errs, errors.New("auth.token_ttl must not be negative"))
	}

	errs = append(errs, validateStorage(cfg.Storage)...)

	// Speech
	if !cfg.Speech.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("speech.mode %q is invalid; valid values: browser, server", cfg.Speech.Mode))
	}
	if cfg.Speech.Mode == SpeechServer && len(cfg.Speech.Providers) == 0 {
		errs = append(errs, errors.New("speech.mode server requires at least one entry in speech.providers"))
	}
	if cfg.Speech.SampleRate < 0 {
		errs = append(errs, errors.New("speech.sample_rate must not be negative"))
	}
	for i, p := range cfg.Speech.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("speech.providers[%d].name is required", i))
			continue
		}
		validateProviderName(p.Name)
	}

	// Assessment
	a := cfg.Assessment
	for name, d := range map[string]time.Duration{
		"listen_timeout":   a.ListenTimeout,
		"question_timeout": a.QuestionTimeout,
		"sentence_timeout": a.SentenceTimeout,
		"grace_period":     a.GracePeriod,
		"feedback_delay":   a.FeedbackDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("assessment.%s must not be negative", name))
		}
	}

	if r := cfg.Observability.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_ratio %v must be within [0, 1]", r))
	}

	return errors.Join(errs...)
}

func validateStorage(s StorageConfig) []error {
	var errs []error
	switch s.Definitions {
	case BackendFile:
		if s.DefinitionsDir == "" {
			errs = append(errs, errors.New("storage.definitions_dir is required for the file backend"))
		}
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.definitions %q is invalid; valid values: file, postgres, sqlite, memory", s.Definitions))
	}

	seen := make(map[Backend]int, len(s.Results))
	for i, b := range s.Results {
		switch b {
		case BackendPostgres, BackendSQLite, BackendMemory:
		default:
			errs = append(errs, fmt.Errorf("storage.results[%d] %q is invalid; valid values: postgres, sqlite, memory", i, b))
		}
		if prev, dup := seen[b]; dup {
			errs = append(errs, fmt.Errorf("storage.results[%d] %q is a duplicate of storage.results[%d]", i, b, prev))
		}
		seen[b] = i
	}
	if len(s.Results) == 0 {
		slog.Warn("storage.results is empty; assessment results will not be persisted")
	}

	if s.Uses(BackendPostgres) && s.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when postgres is used"))
	}
	if s.Uses(BackendSQLite) && s.SQLitePath == "" {
		errs = append(errs, errors.New("storage.sqlite_path is required when sqlite is used"))
	}
	if s.Breaker.MaxFailures < 0 || s.Breaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("storage.breaker values must not be negative"))
	}
	return errs
}

// validateProviderName logs a warning if name is not in
// [ValidProviderNames].
func validateProviderName(name string) {
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown speech provider name; may be a typo or a third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
