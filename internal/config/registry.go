package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by [Registry.CreateSTT] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps speech provider names to constructors. It is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(ProviderEntry, SpeechConfig) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ProviderEntry, SpeechConfig) (stt.Provider, error)),
	}
}

// RegisterSTT registers a provider factory under name. Subsequent calls with
// the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry, SpeechConfig) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateSTT instantiates the provider registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry, speech SpeechConfig) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry, speech)
	if err != nil {
		return nil, fmt.Errorf("config: create stt/%q: %w", entry.Name, err)
	}
	return p, nil
}

// STTNames returns the registered provider names in sorted order.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stt))
	for n := range r.stt {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
