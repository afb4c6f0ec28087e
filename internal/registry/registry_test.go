package registry

import (
	"testing"
	"time"
)

func TestGetUnseenRoomReturnsEmptyDefault(t *testing.T) {
	reg := New(0)
	if got := reg.Get("never-seen"); got != "" {
		t.Fatalf("expected empty default, got %q", got)
	}
	if reg.Len() != 0 {
		t.Fatalf("Get must not create entries, have %d", reg.Len())
	}
}

func TestSetIsLastWriteWins(t *testing.T) {
	reg := New(0)
	reg.Set("42", "A")
	reg.Set("42", "B")
	if got := reg.Get("42"); got != "B" {
		t.Fatalf("expected B, got %q", got)
	}
}

func TestSetCreatesRoomLazily(t *testing.T) {
	reg := New(0)
	reg.Set("new-room", "content")
	if reg.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", reg.Len())
	}
	if got := reg.Get("new-room"); got != "content" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestTouchCreatesEmptyEntry(t *testing.T) {
	reg := New(0)
	reg.Touch("seen")
	if reg.Len() != 1 {
		t.Fatalf("expected entry after touch, got %d", reg.Len())
	}
	if got := reg.Get("seen"); got != "" {
		t.Fatalf("touched room should keep empty content, got %q", got)
	}
}

func TestSweepEvictsOnlyIdleRooms(t *testing.T) {
	reg := New(time.Minute)
	reg.Set("idle", "old")
	reg.Set("busy", "fresh")

	reg.mu.Lock()
	reg.rooms["idle"].touched = time.Now().Add(-2 * time.Minute)
	reg.mu.Unlock()

	if evicted := reg.sweep(time.Now()); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if got := reg.Get("idle"); got != "" {
		t.Fatalf("idle room should be gone, got %q", got)
	}
	if got := reg.Get("busy"); got != "fresh" {
		t.Fatalf("busy room should survive, got %q", got)
	}
}

func TestSweepDisabledWithZeroTTL(t *testing.T) {
	reg := New(0)
	reg.Set("r", "content")
	reg.mu.Lock()
	reg.rooms["r"].touched = time.Now().Add(-24 * time.Hour)
	reg.mu.Unlock()

	// Zero TTL means rooms persist for the process lifetime.
	if evicted := reg.sweep(time.Now()); evicted != 0 {
		t.Fatalf("expected no evictions with zero ttl, got %d", evicted)
	}
	if got := reg.Get("r"); got != "content" {
		t.Fatalf("room should survive, got %q", got)
	}
}
