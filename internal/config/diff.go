package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level,
// session cap and assessment settings are applied live; everything listed in
// RestartRequired only takes effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	MaxSessionsChanged bool
	NewMaxSessions     int

	// AssessmentChanged is true when any assessment setting differs. New
	// sessions pick up the new settings; running sessions keep theirs.
	AssessmentChanged bool

	// RestartRequired names the top-level sections whose changes are
	// ignored until restart.
	RestartRequired []string
}

// Live reports whether the diff holds a change that applies without a
// restart.
func (d ConfigDiff) Live() bool {
	return d.LogLevelChanged || d.MaxSessionsChanged || d.AssessmentChanged
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.MaxSessionsChanged && !d.AssessmentChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.MaxSessions != new.Server.MaxSessions {
		d.MaxSessionsChanged = true
		d.NewMaxSessions = new.Server.MaxSessions
	}
	if !reflect.DeepEqual(old.Assessment, new.Assessment) {
		d.AssessmentChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Auth != new.Auth {
		d.RestartRequired = append(d.RestartRequired, "auth")
	}
	if !reflect.DeepEqual(old.Storage, new.Storage) {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if !reflect.DeepEqual(old.Speech, new.Speech) {
		d.RestartRequired = append(d.RestartRequired, "speech")
	}
	if old.Observability != new.Observability {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}
	return d
}
