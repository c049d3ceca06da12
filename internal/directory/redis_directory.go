package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// RedisDirectory writes one expiring key per (room, node) and refreshes
// the keys it owns on every heartbeat. A crashed node disappears once its
// keys expire.
type RedisDirectory struct {
	client            redis.UniversalClient
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys managed by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisDirectory uses client without taking ownership of it.
func NewRedisDirectory(client redis.UniversalClient, cfg config.DirectoryConfig) *RedisDirectory {
	return &RedisDirectory{
		client:            client,
		advertiseAddress:  cfg.AdvertiseAddress,
		prefix:            cfg.Prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (d *RedisDirectory) roomPrefix(room string) string {
	return fmt.Sprintf("%s:room:%s:node:", d.prefix, room)
}

func (d *RedisDirectory) keyFor(room string) string {
	return d.roomPrefix(room) + d.advertiseAddress
}

func (d *RedisDirectory) Register(ctx context.Context, room string) error {
	key := d.keyFor(room)

	if err := d.client.Set(ctx, key, d.advertiseAddress, d.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	d.mu.Lock()
	d.managedKeys[key] = struct{}{}
	d.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldRoom, room).Str("address", d.advertiseAddress).Msg("registered room")
	return nil
}

func (d *RedisDirectory) Deregister(ctx context.Context, room string) error {
	key := d.keyFor(room)

	d.mu.Lock()
	delete(d.managedKeys, key)
	d.mu.Unlock()

	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister room: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldRoom, room).Msg("deregistered room")
	return nil
}

// Nodes lists the advertise addresses of every node hosting room.
func (d *RedisDirectory) Nodes(ctx context.Context, room string) ([]string, error) {
	prefix := d.roomPrefix(room)
	pattern := escapeGlob(prefix) + "*"

	var nodes []string
	iter := d.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		nodes = append(nodes, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan room nodes: %w", err)
	}
	sort.Strings(nodes)
	return nodes, nil
}

func (d *RedisDirectory) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", d.heartbeatInterval).Dur("ttl", d.keyTTL).Msg("directory heartbeat started")
	return nil
}

func (d *RedisDirectory) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(d.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refreshKeys(ctx)
		}
	}
}

func (d *RedisDirectory) refreshKeys(ctx context.Context) {
	d.mu.RLock()
	keys := make([]string, 0, len(d.managedKeys))
	for k := range d.managedKeys {
		keys = append(keys, k)
	}
	d.mu.RUnlock()

	for _, key := range keys {
		if err := d.client.Set(ctx, key, d.advertiseAddress, d.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh key")
		}
	}
}

func (d *RedisDirectory) StopHeartbeat() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Close stops the heartbeat and removes this node's keys.
func (d *RedisDirectory) Close() error {
	d.StopHeartbeat()

	d.mu.Lock()
	keys := make([]string, 0, len(d.managedKeys))
	for k := range d.managedKeys {
		keys = append(keys, k)
	}
	d.managedKeys = make(map[string]struct{})
	d.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Del(ctx, keys...).Err()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
