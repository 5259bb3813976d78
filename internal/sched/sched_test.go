package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTimers(t *testing.T) *Timers {
	t.Helper()
	timers, err := New(zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = timers.Close() })
	return timers
}

func TestAfterFiresOnce(t *testing.T) {
	timers := newTimers(t)
	var fired atomic.Int32
	timers.After("ABC123", "countdown", 20*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}

func TestCancelBeforeFire(t *testing.T) {
	timers := newTimers(t)
	var fired atomic.Int32
	timers.After("ABC123", "countdown", 50*time.Millisecond, func() {
		fired.Add(1)
	})
	timers.Cancel("ABC123", "countdown")

	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("cancelled timer fired %d times", got)
	}
}

func TestAfterReplacesSameKey(t *testing.T) {
	timers := newTimers(t)
	var first, second atomic.Int32
	timers.After("ABC123", "idle", 30*time.Millisecond, func() { first.Add(1) })
	timers.After("ABC123", "idle", 30*time.Millisecond, func() { second.Add(1) })

	time.Sleep(200 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer still fired")
	}
	if second.Load() != 1 {
		t.Fatalf("replacement fired %d times, want 1", second.Load())
	}
}

func TestEveryRepeatsUntilCancel(t *testing.T) {
	timers := newTimers(t)
	var ticks atomic.Int32
	timers.Every("ABC123", "switch", 25*time.Millisecond, func() { ticks.Add(1) })

	time.Sleep(150 * time.Millisecond)
	timers.Cancel("ABC123", "switch")
	at := ticks.Load()
	if at < 2 {
		t.Fatalf("interval fired %d times, want >= 2", at)
	}

	time.Sleep(150 * time.Millisecond)
	if ticks.Load() != at {
		t.Fatal("interval kept firing after cancel")
	}
}

func TestCancelAllScopedToOwner(t *testing.T) {
	timers := newTimers(t)
	var mine, theirs atomic.Int32
	timers.After("ABC123", "a", 60*time.Millisecond, func() { mine.Add(1) })
	timers.After("ABC123", "b", 60*time.Millisecond, func() { mine.Add(1) })
	timers.After("XYZ789", "a", 60*time.Millisecond, func() { theirs.Add(1) })

	timers.CancelAll("ABC123")

	time.Sleep(250 * time.Millisecond)
	if mine.Load() != 0 {
		t.Fatalf("owner timers fired %d times after CancelAll", mine.Load())
	}
	if theirs.Load() != 1 {
		t.Fatalf("other owner fired %d times, want 1", theirs.Load())
	}
}
