// Package store defines where test definitions come from and where finished
// results go.
//
// Backends live in sub-packages: [file] reads definitions from a directory,
// [postgres] and [sqlite] persist both definitions and results. [Memory] is
// an in-process implementation used by tests and the replay command.
// [FailoverSink] writes results to the first healthy backend of several.
package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/testdef"
)

// ErrNotFound is returned when a definition does not exist.
var ErrNotFound = errors.New("store: not found")

// DefinitionSource looks up test definitions by id. Implementations return
// [ErrNotFound] (possibly wrapped) for unknown ids.
type DefinitionSource interface {
	Definition(ctx context.Context, id string) (*testdef.Test, error)
}

// DefinitionWriter inserts or replaces test definitions.
type DefinitionWriter interface {
	PutDefinition(ctx context.Context, t *testdef.Test) error
}

// ResultReader lists stored results for a user, newest first.
type ResultReader interface {
	ListResults(ctx context.Context, userID string) ([]assessment.Result, error)
}

// Memory keeps definitions and results in process memory. It is safe for
// concurrent use.
type Memory struct {
	mu      sync.RWMutex
	defs    map[string]*testdef.Test
	results []assessment.Result

	// Now stamps saved results. Defaults to time.Now.
	Now func() time.Time
}

var (
	_ DefinitionSource      = (*Memory)(nil)
	_ DefinitionWriter      = (*Memory)(nil)
	_ ResultReader          = (*Memory)(nil)
	_ assessment.ResultSink = (*Memory)(nil)
)

// NewMemory returns a store holding copies of defs.
func NewMemory(defs ...*testdef.Test) *Memory {
	m := &Memory{defs: make(map[string]*testdef.Test, len(defs))}
	for _, d := range defs {
		m.defs[d.ID] = d.Clone()
	}
	return m
}

// Definition returns a copy of the definition with the given id.
func (m *Memory) Definition(_ context.Context, id string) (*testdef.Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// PutDefinition stores a copy of t.
func (m *Memory) PutDefinition(_ context.Context, t *testdef.Test) error {
	if err := testdef.Validate(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defs == nil {
		m.defs = make(map[string]*testdef.Test)
	}
	m.defs[t.ID] = t.Clone()
	return nil
}

// SaveResult stamps r and appends a copy.
func (m *Memory) SaveResult(_ context.Context, r *assessment.Result) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	r.Timestamp = now().UTC()
	m.mu.Lock()
	m.results = append(m.results, *r)
	m.mu.Unlock()
	return nil
}

// ListResults returns the user's results, newest first.
func (m *Memory) ListResults(_ context.Context, userID string) ([]assessment.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Result
	for _, r := range m.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b assessment.Result) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	return out, nil
}

// Results returns every stored result in save order.
func (m *Memory) Results() []assessment.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.results)
}
