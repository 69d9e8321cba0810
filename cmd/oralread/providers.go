package main

import (
	"log/slog"
	"time"

	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/pkg/provider/stt"
	"github.com/MrWong99/oralread/pkg/provider/stt/deepgram"
)

// registerBuiltinProviders wires the speech provider factories that ship
// with oralread into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry, speech config.SpeechConfig) (stt.Provider, error) {
		opts := []deepgram.Option{
			deepgram.WithLanguage(speech.Language),
			deepgram.WithSampleRate(speech.SampleRate),
		}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if d := optString(entry.Options, "endpointing"); d != "" {
			if v, err := time.ParseDuration(d); err == nil {
				opts = append(opts, deepgram.WithEndpointing(v))
			} else {
				slog.Warn("ignoring invalid deepgram endpointing option", "value", d, "err", err)
			}
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
