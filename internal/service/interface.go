package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// ChatService drives the per-connection session lifecycle: join, send and
// disconnect. Calls for one connection must not overlap.
type ChatService interface {
	HandleJoinRoom(ctx context.Context, connectionID, username, room string) error
	HandleChatMessage(ctx context.Context, connectionID, text string) error
	HandleDisconnect(ctx context.Context, connectionID string) error

	RoomUsers(room string) domain.RoomUsersMessage
	RecentMessages(ctx context.Context, room string, limit int) ([]domain.Record, error)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Dispatcher delivers encoded events to live connections.
type Dispatcher interface {
	Hold(connectionID string)
	Release(connectionID string)
	Unicast(connectionID, event string, payload interface{}) error
	BroadcastToRoom(room, event string, payload interface{}, exclude string) error
}

// Persister accepts records for asynchronous storage.
type Persister interface {
	Enqueue(record domain.Record) error
	Close(ctx context.Context) error
}
