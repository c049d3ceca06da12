package cassandra

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

const (
	createTable = `
	CREATE TABLE IF NOT EXISTS messages_by_room (
		room text,
		message_id timeuuid,
		username text,
		msg text,
		time text,
		created_at timestamp,
		PRIMARY KEY (room, message_id)
	) WITH CLUSTERING ORDER BY (message_id DESC)`

	insertMessage = `INSERT INTO messages_by_room (room, message_id, username, msg, time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectRecent = `SELECT message_id, username, msg, time, created_at
		FROM messages_by_room WHERE room = ? LIMIT ?`
)

// Store keeps history in the messages_by_room table, one partition per
// room clustered newest first by timeuuid.
type Store struct {
	session *gocql.Session
}

func New(cfg config.CassandraConfig) (*Store, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cassandra session: %w", domain.ErrStoreUnavailable, err)
	}

	if cfg.CreateSchema {
		if err := session.Query(createTable).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("%w: failed to create messages_by_room: %w", domain.ErrStoreUnavailable, err)
		}
	}

	return &Store{session: session}, nil
}

// Append keys the row by a timeuuid of CreatedAt, so clustering order is
// insertion order.
func (s *Store) Append(ctx context.Context, record domain.Record) (domain.Record, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	id := gocql.UUIDFromTime(record.CreatedAt)

	q := s.session.Query(insertMessage, record.Room, id, record.Username, record.Text, record.Time, record.CreatedAt)
	if err := q.WithContext(ctx).Exec(); err != nil {
		return domain.Record{}, fmt.Errorf("%w: insert into messages_by_room: %w", domain.ErrStoreUnavailable, err)
	}

	record.ID = id.String()
	return record, nil
}

// Recent reads the newest limit rows of the partition and returns them
// oldest first.
func (s *Store) Recent(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	scanner := s.session.Query(selectRecent, room, limit).
		WithContext(ctx).
		Idempotent(true).
		Iter().
		Scanner()

	records := make([]domain.Record, 0, limit)
	for scanner.Next() {
		r := domain.Record{Room: room}
		var id gocql.UUID
		if err := scanner.Scan(&id, &r.Username, &r.Text, &r.Time, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan messages_by_room: %w", domain.ErrStoreUnavailable, err)
		}
		r.ID = id.String()
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read messages_by_room: %w", domain.ErrStoreUnavailable, err)
	}

	slices.Reverse(records)
	return records, nil
}

func (s *Store) Close() error {
	s.session.Close()
	return nil
}

// parseConsistency falls back to LOCAL_QUORUM for empty or unknown names.
func parseConsistency(name string) gocql.Consistency {
	c, err := gocql.ParseConsistencyWrapper(name)
	if err != nil || name == "" {
		return gocql.LocalQuorum
	}
	return c
}
