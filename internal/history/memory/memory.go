package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// Store keeps per-room history in process memory. When maxPerRoom is
// positive the oldest records of a room are evicted past that bound.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string][]domain.Record
	maxPerRoom int
	now        func() time.Time
}

func New(maxPerRoom int) *Store {
	return &Store{
		rooms:      make(map[string][]domain.Record),
		maxPerRoom: maxPerRoom,
		now:        time.Now,
	}
}

func (s *Store) Append(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = ulid.Make().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	records := append(s.rooms[record.Room], record)
	if s.maxPerRoom > 0 && len(records) > s.maxPerRoom {
		records = append([]domain.Record(nil), records[len(records)-s.maxPerRoom:]...)
	}
	s.rooms[record.Room] = records
	return record, nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.rooms[room]
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]domain.Record, len(records))
	copy(out, records)
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
