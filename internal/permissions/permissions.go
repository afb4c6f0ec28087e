package permissions

import (
	"errors"
	"sync"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
)

// ErrUnauthorized is returned when a non-host attempts to grant permissions.
var ErrUnauthorized = errors.New("unauthorized")

type Entry struct {
	models.PermissionSet
	IsHost bool
}

// Table maps (room, identity) to capability flags. The first identity
// recognized in a room is seeded as its host with full capabilities; later
// identities default to chat-only.
type Table struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Entry
}

func NewTable() *Table {
	return &Table{rooms: make(map[string]map[string]Entry)}
}

// Ensure creates the identity's entry if it does not exist and reports whether
// it was created. An existing entry is never modified.
func (t *Table) Ensure(roomID, identity string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[roomID]
	if !ok {
		room = make(map[string]Entry)
		t.rooms[roomID] = room
	}
	if e, ok := room[identity]; ok {
		return e, false
	}
	e := Entry{PermissionSet: models.PermissionSet{CanChat: true}}
	if len(room) == 0 {
		e = Entry{
			PermissionSet: models.PermissionSet{CanEdit: true, CanChat: true, CanDownloadNotes: true},
			IsHost:        true,
		}
	}
	room[identity] = e
	return e, true
}

func (t *Table) CheckEdit(roomID, identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rooms[roomID][identity].CanEdit
}

func (t *Table) CheckHost(roomID, identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rooms[roomID][identity].IsHost
}

// Grant overwrites the target's entry. Only a current host of the room may
// grant; a host demoting themselves is allowed.
func (t *Table) Grant(roomID, granter, target string, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.rooms[roomID]
	if !room[granter].IsHost {
		return ErrUnauthorized
	}
	room[target] = e
	return nil
}

// Snapshot returns a copy of the room's permission entries.
func (t *Table) Snapshot(roomID string) map[string]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Entry, len(t.rooms[roomID]))
	for id, e := range t.rooms[roomID] {
		out[id] = e
	}
	return out
}
