package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWithLockSerializesSameSession(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.WithLock("sess-1", func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("observed %d concurrent turns for one session", maxActive)
	}
}

func TestWithLockAllowsParallelSessions(t *testing.T) {
	m := NewManager()

	// One goroutine parks inside its session's critical section; another
	// session must still get through.
	release := make(chan struct{})
	entered := make(chan struct{})
	go m.WithLock("slow", func() error {
		close(entered)
		<-release
		return nil
	})
	<-entered
	defer close(release)

	done := make(chan struct{})
	go func() {
		m.WithLock("fast", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent session blocked behind another session's lock")
	}
}

func TestWithLockReturnsFnError(t *testing.T) {
	m := NewManager()
	want := errors.New("turn failed")
	if got := m.WithLock("sess-1", func() error { return want }); !errors.Is(got, want) {
		t.Errorf("WithLock returned %v, want %v", got, want)
	}
}

func TestCleanupRemovesStaleLocks(t *testing.T) {
	m := NewManager()
	m.WithLock("stale", func() error { return nil })
	m.WithLock("fresh", func() error { return nil })
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	// Backdate one lock instead of sleeping.
	m.mu.Lock()
	m.locks["stale"].lastUsed = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	m.Cleanup(time.Hour)

	if m.Len() != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", m.Len())
	}
	m.mu.Lock()
	_, staleKept := m.locks["stale"]
	_, freshKept := m.locks["fresh"]
	m.mu.Unlock()
	if staleKept {
		t.Error("stale lock survived cleanup")
	}
	if !freshKept {
		t.Error("fresh lock removed by cleanup")
	}
}

func TestLockRecreatedAfterCleanup(t *testing.T) {
	m := NewManager()
	m.WithLock("sess-1", func() error { return nil })
	m.Cleanup(0)
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after full cleanup", m.Len())
	}

	called := false
	m.WithLock("sess-1", func() error {
		called = true
		return nil
	})
	if !called {
		t.Error("turn did not run after lock was reclaimed")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}
