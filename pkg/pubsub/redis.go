package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// RedisBus publishes each room on its own channel and pattern-subscribes
// to all of them.
type RedisBus struct {
	client redis.UniversalClient
	prefix string

	mu  sync.Mutex
	sub *redis.PubSub
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisBusWithClient(client, cfg.ChannelPrefix), nil
}

// NewRedisBusWithClient takes ownership of client; Close closes it.
func NewRedisBusWithClient(client redis.UniversalClient, prefix string) *RedisBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) Publish(ctx context.Context, ev *Event) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, RoomChannel(b.prefix, ev.Room), data).Err()
}

// Subscribe returns once Redis has confirmed the pattern subscription.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	pattern := RoomPattern(b.prefix)
	sub := b.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	b.mu.Lock()
	if b.sub != nil {
		b.sub.Close()
	}
	b.sub = sub
	b.mu.Unlock()

	out := make(chan *Event, eventBuffer)
	go b.pump(ctx, sub, out)
	return out, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.sub != nil {
		b.sub.Close()
		b.sub = nil
	}
	b.mu.Unlock()
	return b.client.Close()
}

func (b *RedisBus) pump(ctx context.Context, sub *redis.PubSub, out chan<- *Event) {
	defer close(out)
	l := log.L()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := Unmarshal([]byte(msg.Payload))
			if err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed room event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(log.FieldRoom, ev.Room).Msg("room event buffer full, dropping")
			}
		}
	}
}
