package lru

import (
	"testing"
	"time"
)

func TestTrackerTouchOrdersByAccess(t *testing.T) {
	tr := NewTracker()
	tr.Touch("a")
	tr.Touch("b")
	tr.Touch("c")

	if oldest, ok := tr.Oldest(); !ok || oldest != "a" {
		t.Errorf("Oldest() = %q, %v, want %q, true", oldest, ok, "a")
	}

	// Re-touching moves a key to the most-recent position.
	tr.Touch("a")
	if oldest, ok := tr.Oldest(); !ok || oldest != "b" {
		t.Errorf("after re-touch, Oldest() = %q, %v, want %q, true", oldest, ok, "b")
	}

	want := []string{"b", "c", "a"}
	got := tr.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTrackerRemove(t *testing.T) {
	tr := NewTracker()
	tr.Touch("a")
	tr.Touch("b")

	tr.Remove("a")
	if tr.Contains("a") {
		t.Error("Contains(a) = true after Remove")
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}

	// Removing an unknown key is a no-op.
	tr.Remove("missing")
	if tr.Len() != 1 {
		t.Errorf("Len() = %d after removing unknown key, want 1", tr.Len())
	}
}

func TestTrackerOldestEmpty(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Oldest(); ok {
		t.Error("Oldest() on empty tracker returned ok")
	}
}

func TestTrackerClear(t *testing.T) {
	tr := NewTracker()
	tr.Touch("a")
	tr.Touch("b")
	tr.Clear()
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", tr.Len())
	}
	tr.Touch("c")
	if oldest, ok := tr.Oldest(); !ok || oldest != "c" {
		t.Errorf("Oldest() after Clear+Touch = %q, %v, want %q, true", oldest, ok, "c")
	}
}

func TestOldestByTime(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := map[string]time.Time{
		"gamma": base.Add(2 * time.Minute),
		"alpha": base.Add(1 * time.Minute),
		"beta":  base,
	}
	if key, ok := OldestByTime(m); !ok || key != "beta" {
		t.Errorf("OldestByTime() = %q, %v, want %q, true", key, ok, "beta")
	}
}

func TestOldestByTimeTieBreaksByName(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := map[string]time.Time{
		"zeta": base,
		"echo": base,
		"mike": base,
	}
	for i := 0; i < 10; i++ {
		if key, ok := OldestByTime(m); !ok || key != "echo" {
			t.Fatalf("OldestByTime() = %q, %v, want %q, true", key, ok, "echo")
		}
	}
}

func TestOldestByTimeEmpty(t *testing.T) {
	if _, ok := OldestByTime(nil); ok {
		t.Error("OldestByTime(nil) returned ok")
	}
}
