package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// Backend is the store being cached.
type Backend interface {
	Append(ctx context.Context, record domain.Record) (domain.Record, error)
	Recent(ctx context.Context, room string, limit int) ([]domain.Record, error)
	Close() error
}

// Store caches Recent results in one Redis hash per room, keyed by limit.
// An append drops the room's hash and bumps the room's generation; a fill
// is written only if the generation it read before the backend call is
// still current. Redis errors fall through to the backend so the cache
// never fails a read on its own.
type Store struct {
	backend Backend
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	group   singleflight.Group
}

func New(backend Backend, client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		backend: backend,
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
	}
}

var errStaleFill = errors.New("history cache: generation moved during fill")

func (s *Store) key(room string) string {
	return fmt.Sprintf("%s:%s", s.prefix, room)
}

// genKey never collides with key: room keys always have ':' after prefix.
func (s *Store) genKey(room string) string {
	return s.prefix + "#gen:" + room
}

// genTTL outlives any fill in flight by a wide margin.
func (s *Store) genTTL() time.Duration {
	if ttl := 10 * s.ttl; ttl > time.Hour {
		return ttl
	}
	return time.Hour
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) generation(ctx context.Context, c getter, room string) (int64, error) {
	gen, err := c.Get(ctx, s.genKey(room)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *Store) Append(ctx context.Context, record domain.Record) (domain.Record, error) {
	saved, err := s.backend.Append(ctx, record)
	if err != nil {
		return saved, err
	}
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, s.genKey(record.Room))
	pipe.Expire(ctx, s.genKey(record.Room), s.genTTL())
	pipe.Del(ctx, s.key(record.Room))
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, record.Room).Msg("failed to invalidate history cache")
	}
	return saved, nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	key := s.key(room)
	field := strconv.Itoa(limit)

	if records, err := s.get(ctx, key, field); err == nil {
		return records, nil
	} else if !errors.Is(err, redis.Nil) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache read failed")
	}

	gen, genErr := s.generation(ctx, s.client, room)
	if genErr != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(genErr).Str(log.FieldRoom, room).Msg("history cache generation read failed")
	}

	// Readers that saw different generations must not share a backend read.
	flight := fmt.Sprintf("%s#%s#%d", key, field, gen)
	v, err, _ := s.group.Do(flight, func() (interface{}, error) {
		records, err := s.backend.Recent(ctx, room, limit)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			s.fill(ctx, room, field, gen, records)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]domain.Record)
	records := make([]domain.Record, len(shared))
	copy(records, shared)
	return records, nil
}

func (s *Store) get(ctx context.Context, key, field string) ([]domain.Record, error) {
	data, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, err
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return records, nil
}

// fill writes records under field unless an append has moved the room's
// generation past gen since the backend read began.
func (s *Store) fill(ctx context.Context, room, field string, gen int64, records []domain.Record) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}

	key := s.key(room)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.generation(ctx, tx, room)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}, s.genKey(room))

	l := log.Ctx(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		l.Debug().Str(log.FieldRoom, room).Msg("history cache fill skipped, room changed")
	default:
		l.Warn().Err(err).Str("key", key).Msg("history cache write failed")
	}
}

// Close closes the backend. The Redis client is owned by the caller.
func (s *Store) Close() error {
	return s.backend.Close()
}
