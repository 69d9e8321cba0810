package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and new config and their [Diff].
type ChangeFunc func(old, new *Config, d ConfigDiff)

// Watcher polls a config file and hands live-applicable changes to a
// [ChangeFunc]. An invalid edit is logged once and the last valid config
// stays current. Edits that only touch restart-only sections are logged but
// not reported.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	checkMu  sync.Mutex // serialises Check
	modTime  time.Time
	sum      [sha256.Size]byte
	rejected [sha256.Size]byte

	mu      sync.Mutex
	current *Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the file at path and starts polling it. The file must be
// valid at this point.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}

	data, modTime, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.sum, w.modTime = cfg, sha256.Sum256(data), modTime

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.poll(ctx)
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-flight check. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Watcher) poll(ctx context.Context) {
	defer w.wg.Done()
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.check(false)
		}
	}
}

// Check re-reads the file now, regardless of its modification time, and
// reports whether a new config was installed.
func (w *Watcher) Check() bool {
	return w.check(true)
}

func (w *Watcher) check(force bool) bool {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
			return false
		}
		if info.ModTime().Equal(w.modTime) {
			return false
		}
	}

	data, modTime, err := w.read()
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return false
	}
	w.modTime = modTime
	sum := sha256.Sum256(data)
	if sum == w.sum || sum == w.rejected {
		return false
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		w.rejected = sum
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return false
	}
	w.sum = sum

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	if len(d.RestartRequired) > 0 {
		slog.Warn("config watcher: changes take effect after restart", "sections", d.RestartRequired)
	}
	if !d.Live() {
		return true
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"assessment_changed", d.AssessmentChanged,
		"max_sessions_changed", d.MaxSessionsChanged,
	)
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return true
}

func (w *Watcher) read() ([]byte, time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
