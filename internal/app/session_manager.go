package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/transport"
)

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// UserID is the student taking the assessment.
	UserID string

	// TestID is the test being administered.
	TestID string

	// StartedAt is when the session was opened.
	StartedAt time.Time
}

// SessionManager opens assessment sessions for websocket connections and
// tracks the ones still running. It implements [transport.Sessions].
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	active   map[string]SessionInfo
	settings assessment.Config
	max      int
	idle     chan struct{}

	// Dependencies injected at construction.
	defs    store.DefinitionSource
	sink    assessment.ResultSink
	metrics *observe.Metrics
	newID   func() string
	now     func() time.Time
}

var _ transport.Sessions = (*SessionManager)(nil)

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Definitions store.DefinitionSource
	// Sink receives finished results. Nil disables persistence.
	Sink     assessment.ResultSink
	Settings assessment.Config
	// MaxSessions caps concurrently open sessions. Zero means unlimited.
	MaxSessions int
	Metrics     *observe.Metrics
	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		active:   make(map[string]SessionInfo),
		settings: cfg.Settings,
		max:      cfg.MaxSessions,
		defs:     cfg.Definitions,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		newID:    cfg.NewID,
		now:      time.Now,
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	if sm.newID == nil {
		sm.newID = uuid.NewString
	}
	return sm
}

// CheckCapacity is a readiness check that fails while every session slot is
// taken, so a load balancer sends new students to another instance.
func (sm *SessionManager) CheckCapacity(context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.max > 0 && len(sm.active) >= sm.max {
		return fmt.Errorf("%w (%d/%d)", transport.ErrTooManySessions, len(sm.active), sm.max)
	}
	return nil
}

// Open loads the requested test and creates a session for it. The slot is
// reserved before the definition is loaded, so the cap holds under
// concurrent opens. Errors wrap [store.ErrNotFound] for unknown tests and
// [transport.ErrTooManySessions] at capacity.
func (sm *SessionManager) Open(ctx context.Context, req transport.SessionRequest) (*assessment.Session, error) {
	sm.mu.Lock()
	if sm.max > 0 && len(sm.active) >= sm.max {
		sm.mu.Unlock()
		return nil, transport.ErrTooManySessions
	}
	id := sm.newID()
	sm.active[id] = SessionInfo{
		SessionID: id,
		UserID:    req.UserID,
		TestID:    req.TestID,
		StartedAt: sm.now(),
	}
	settings := sm.settings
	sm.mu.Unlock()
	sm.metrics.ActiveSessions.Add(ctx, 1)

	def, err := sm.defs.Definition(ctx, req.TestID)
	if err != nil {
		sm.release(ctx, id)
		return nil, fmt.Errorf("app: load test %q: %w", req.TestID, err)
	}

	log := observe.SessionLogger(ctx, id, req.UserID, req.TestID)
	log.Info("session opened")
	return assessment.NewSession(assessment.SessionParams{
		ID:         id,
		UserID:     req.UserID,
		Test:       def,
		Config:     settings,
		Presenter:  req.Presenter,
		Recognizer: req.Recognizer,
		Sink:       sm.sink,
		Logger:     log,
		Metrics:    sm.metrics,
	}), nil
}

// Release frees the slot of a session returned by Open.
func (sm *SessionManager) Release(s *assessment.Session) {
	sm.release(context.Background(), s.ID())
}

func (sm *SessionManager) release(ctx context.Context, id string) {
	sm.mu.Lock()
	if _, ok := sm.active[id]; !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.active, id)
	if len(sm.active) == 0 && sm.idle != nil {
		close(sm.idle)
		sm.idle = nil
	}
	sm.mu.Unlock()
	sm.metrics.ActiveSessions.Add(ctx, -1)
}

// Active returns the running sessions, oldest first.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	out := make([]SessionInfo, 0, len(sm.active))
	for _, info := range sm.active {
		out = append(out, info)
	}
	sm.mu.Unlock()
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return compareStrings(a.SessionID, b.SessionID)
	})
	return out
}

// Count returns the number of running sessions.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.active)
}

// UpdateSettings replaces the assessment settings used by sessions opened
// from now on. Running sessions keep the settings they started with.
func (sm *SessionManager) UpdateSettings(c assessment.Config) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.settings = c
}

// Settings returns the settings new sessions start with.
func (sm *SessionManager) Settings() assessment.Config {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.settings
}

// SetMaxSessions changes the session cap. Sessions above a lowered cap keep
// running; only new opens are refused.
func (sm *SessionManager) SetMaxSessions(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.max = n
}

// Wait blocks until no session is running or ctx is done.
func (sm *SessionManager) Wait(ctx context.Context) error {
	sm.mu.Lock()
	if len(sm.active) == 0 {
		sm.mu.Unlock()
		return nil
	}
	if sm.idle == nil {
		sm.idle = make(chan struct{})
	}
	idle := sm.idle
	sm.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
