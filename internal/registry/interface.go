package registry

import "github.com/weiawesome/wes-io-live/chatroom/internal/domain"

// Registry owns the connection-to-session map and the room membership
// index derived from it. Implementations keep both views in step under a
// single critical section.
type Registry interface {
	// Join registers a new session. It returns domain.ErrConflict if the
	// connection already has one.
	Join(connectionID, username, room string) (domain.Session, error)

	// Lookup returns domain.ErrNotFound for unknown connections.
	Lookup(connectionID string) (domain.Session, error)

	// Remove deletes and returns the session for a connection.
	Remove(connectionID string) (domain.Session, error)

	// MembersOf returns display names in join order. Unknown rooms yield
	// an empty slice.
	MembersOf(room string) []string

	// ConnectionsIn returns connection ids in join order.
	ConnectionsIn(room string) []string

	// Rooms lists rooms with at least one member.
	Rooms() []string
}
