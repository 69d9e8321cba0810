package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/oralread/internal/app"
	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/transport"
)

func newTestSessionManager(limit int) *app.SessionManager {
	var (
		mu sync.Mutex
		n  int
	)
	return app.NewSessionManager(app.SessionManagerConfig{
		Definitions: store.NewMemory(letterTest()),
		Settings:    assessment.DefaultConfig(),
		MaxSessions: limit,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("s%d", n)
		},
	})
}

func open(t *testing.T, sm *app.SessionManager, user string) *assessment.Session {
	t.Helper()
	s, err := sm.Open(context.Background(), transport.SessionRequest{UserID: user, TestID: "letters"})
	if err != nil {
		t.Fatalf("Open(%s) error: %v", user, err)
	}
	return s
}

func TestSessionManager_OpenRelease(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(0)

	s := open(t, sm, "kid")
	if s.ID() != "s1" {
		t.Errorf("ID = %q, want s1", s.ID())
	}
	if s.Test().ID != "letters" {
		t.Errorf("Test().ID = %q", s.Test().ID)
	}

	active := sm.Active()
	if len(active) != 1 {
		t.Fatalf("Active() = %+v, want one session", active)
	}
	if active[0].UserID != "kid" || active[0].TestID != "letters" || active[0].StartedAt.IsZero() {
		t.Errorf("info = %+v", active[0])
	}

	sm.Release(s)
	if got := sm.Count(); got != 0 {
		t.Errorf("Count() after Release = %d, want 0", got)
	}
	// Releasing twice is a no-op.
	sm.Release(s)
	if got := sm.Count(); got != 0 {
		t.Errorf("Count() after second Release = %d, want 0", got)
	}
}

func TestSessionManager_UnknownTest(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(1)

	_, err := sm.Open(context.Background(), transport.SessionRequest{UserID: "kid", TestID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := sm.Count(); got != 0 {
		t.Errorf("failed open kept its slot: Count() = %d", got)
	}
	// The slot is free again.
	open(t, sm, "kid")
}

func TestSessionManager_Capacity(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(2)

	a := open(t, sm, "a")
	if err := sm.CheckCapacity(context.Background()); err != nil {
		t.Errorf("CheckCapacity with a free slot: %v", err)
	}
	open(t, sm, "b")
	if err := sm.CheckCapacity(context.Background()); !errors.Is(err, transport.ErrTooManySessions) {
		t.Errorf("CheckCapacity when full = %v", err)
	}
	_, err := sm.Open(context.Background(), transport.SessionRequest{UserID: "c", TestID: "letters"})
	if !errors.Is(err, transport.ErrTooManySessions) {
		t.Fatalf("third Open err = %v, want ErrTooManySessions", err)
	}

	sm.Release(a)
	open(t, sm, "c")

	// Lowering the cap keeps running sessions.
	sm.SetMaxSessions(1)
	if got := sm.Count(); got != 2 {
		t.Errorf("Count() after lowering cap = %d, want 2", got)
	}
	if _, err := sm.Open(context.Background(), transport.SessionRequest{UserID: "d", TestID: "letters"}); !errors.Is(err, transport.ErrTooManySessions) {
		t.Errorf("Open above lowered cap err = %v", err)
	}

	sm.SetMaxSessions(0)
	open(t, sm, "d")
}

func TestSessionManager_ConcurrentOpenRespectsCap(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(3)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sm.Open(context.Background(), transport.SessionRequest{UserID: fmt.Sprint(i), TestID: "letters"})
			if err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if opened != 3 {
		t.Errorf("opened = %d, want 3", opened)
	}
}

func TestSessionManager_ActiveOrder(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(0)
	open(t, sm, "first")
	time.Sleep(2 * time.Millisecond)
	open(t, sm, "second")

	active := sm.Active()
	if len(active) != 2 || active[0].UserID != "first" || active[1].UserID != "second" {
		t.Errorf("Active() = %+v, want oldest first", active)
	}
}

func TestSessionManager_UpdateSettings(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(0)

	c := assessment.DefaultConfig()
	c.ListenTimeout = 7 * time.Second
	sm.UpdateSettings(c)
	if got := sm.Settings().ListenTimeout; got != 7*time.Second {
		t.Errorf("ListenTimeout = %v, want 7s", got)
	}
}

func TestSessionManager_Wait(t *testing.T) {
	t.Parallel()
	sm := newTestSessionManager(0)

	if err := sm.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() with no sessions = %v", err)
	}

	s := open(t, sm, "kid")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sm.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() with a running session = %v, want DeadlineExceeded", err)
	}

	done := make(chan error, 1)
	go func() { done <- sm.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	sm.Release(s)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the last Release")
	}
}
