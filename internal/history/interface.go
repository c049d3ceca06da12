package history

import (
	"context"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// Store is an append-only message log partitioned by room. Every backend
// wraps its own failures in domain.ErrStoreUnavailable.
type Store interface {
	// Append persists a record and returns it with its store-assigned ID.
	Append(ctx context.Context, record domain.Record) (domain.Record, error)

	// Recent returns at most limit records of room, oldest first.
	Recent(ctx context.Context, room string, limit int) ([]domain.Record, error)

	Close() error
}
