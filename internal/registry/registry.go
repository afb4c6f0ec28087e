package registry

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	content string
	touched time.Time
}

// Registry holds the latest content blob per room. Writes are unconditional
// last-write-wins; the registry never interprets the blob.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry
	ttl   time.Duration
}

// New returns a registry whose entries live for the process lifetime. A
// non-zero idleTTL enables eviction of rooms untouched for that long once
// StartSweeper is running.
func New(idleTTL time.Duration) *Registry {
	return &Registry{rooms: make(map[string]*entry), ttl: idleTTL}
}

// Get returns the stored content for a room, or the empty string for a room
// that was never written. It does not create an entry.
func (r *Registry) Get(roomID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.rooms[roomID]; ok {
		return e.content
	}
	return ""
}

// Set replaces the stored content unconditionally.
func (r *Registry) Set(roomID, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.rooms[roomID]; ok {
		e.content = content
		e.touched = time.Now()
		return
	}
	r.rooms[roomID] = &entry{content: content, touched: time.Now()}
}

// Touch creates the room entry if absent and marks it as recently used, so a
// quiet room with joined members is not swept out from under them.
func (r *Registry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.rooms[roomID]; ok {
		e.touched = time.Now()
		return
	}
	r.rooms[roomID] = &entry{touched: time.Now()}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// StartSweeper evicts idle rooms on a fixed interval until ctx is cancelled.
// It is a no-op when the registry was built with a zero TTL.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.rooms {
		if now.Sub(e.touched) > r.ttl {
			delete(r.rooms, id)
			evicted++
		}
	}
	return evicted
}
