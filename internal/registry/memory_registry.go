package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session // connectionID -> session
	rooms    map[string][]string       // room -> connectionIDs in join order
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]domain.Session),
		rooms:    make(map[string][]string),
		now:      time.Now,
	}
}

func (r *MemoryRegistry) Join(connectionID, username, room string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connectionID]; ok {
		return domain.Session{}, domain.ErrConflict
	}

	session := domain.Session{
		ConnectionID: connectionID,
		Username:     username,
		Room:         room,
		JoinedAt:     r.now(),
	}
	r.sessions[connectionID] = session
	r.rooms[room] = append(r.rooms[room], connectionID)
	return session, nil
}

func (r *MemoryRegistry) Lookup(connectionID string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[connectionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return session, nil
}

func (r *MemoryRegistry) Remove(connectionID string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connectionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	delete(r.sessions, connectionID)

	ids := r.rooms[session.Room]
	for i, id := range ids {
		if id == connectionID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.rooms, session.Room)
	} else {
		r.rooms[session.Room] = ids
	}
	return session, nil
}

func (r *MemoryRegistry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.rooms[room]
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, r.sessions[id].Username)
	}
	return names
}

func (r *MemoryRegistry) ConnectionsIn(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.rooms[room]))
	copy(ids, r.rooms[room])
	return ids
}

func (r *MemoryRegistry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Verify checks that the room index and the session map describe the same
// memberships.
func (r *MemoryRegistry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indexed := 0
	for room, ids := range r.rooms {
		if len(ids) == 0 {
			return fmt.Errorf("room %q is indexed but empty", room)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("connection %q indexed twice in room %q", id, room)
			}
			seen[id] = struct{}{}

			session, ok := r.sessions[id]
			if !ok {
				return fmt.Errorf("room %q references unknown connection %q", room, id)
			}
			if session.Room != room {
				return fmt.Errorf("connection %q indexed in %q but bound to %q", id, room, session.Room)
			}
		}
		indexed += len(ids)
	}
	if indexed != len(r.sessions) {
		return fmt.Errorf("%d sessions but %d indexed memberships", len(r.sessions), indexed)
	}
	return nil
}
