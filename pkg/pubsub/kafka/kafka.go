// Package kafka implements pubsub.Bus on Apache Kafka. All rooms share one
// topic and the room is the message key.
package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/pubsub"
)

const pollTimeoutMs = 500

type Bus struct {
	cfg      pubsub.KafkaConfig
	producer *kafka.Producer
	reported chan struct{}

	mu       sync.Mutex
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	stopped  chan struct{}
}

var _ pubsub.Bus = (*Bus)(nil)

// New creates the producer and makes sure the room topic exists.
func New(cfg pubsub.KafkaConfig) (*Bus, error) {
	if cfg.Topic == "" {
		cfg.Topic = pubsub.DefaultTopic
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka bus: group_id is required")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	b := &Bus{cfg: cfg, producer: p, reported: make(chan struct{})}
	go b.watchDeliveries()

	if err := b.ensureTopic(); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("could not ensure kafka topic")
	}
	return b, nil
}

func (b *Bus) ensureTopic() error {
	admin, err := kafka.NewAdminClientFromProducer(b.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := b.cfg.Partitions
	if partitions <= 0 {
		partitions = 4
	}
	replicas := b.cfg.ReplicationFactor
	if replicas <= 0 {
		replicas = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             b.cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicas,
	}})
	if err != nil {
		return err
	}
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return r.Error
		}
	}
	return nil
}

func (b *Bus) watchDeliveries() {
	defer close(b.reported)
	l := log.L()
	for e := range b.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Warn().Err(m.TopicPartition.Error).Str(log.FieldRoom, string(m.Key)).Msg("room broadcast delivery failed")
		}
	}
}

// Publish produces asynchronously; delivery failures are logged.
func (b *Bus) Publish(_ context.Context, ev *pubsub.Event) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	err = b.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &b.cfg.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Room),
		Value:          data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce room broadcast: %w", err)
	}
	return nil
}

// Subscribe starts consuming from the latest offset.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *pubsub.Event, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       b.cfg.Brokers,
		"group.id":                b.cfg.GroupID,
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(b.cfg.Topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", b.cfg.Topic, err)
	}

	b.mu.Lock()
	b.stopConsumerLocked()
	subCtx, cancel := context.WithCancel(ctx)
	b.consumer, b.cancel, b.stopped = c, cancel, make(chan struct{})
	stopped := b.stopped
	b.mu.Unlock()

	out := make(chan *pubsub.Event, 256)
	go b.consume(subCtx, c, out, stopped)
	return out, nil
}

func (b *Bus) consume(ctx context.Context, c *kafka.Consumer, out chan<- *pubsub.Event, stopped chan struct{}) {
	defer close(stopped)
	defer close(out)
	l := log.L()

	for ctx.Err() == nil {
		switch e := c.Poll(pollTimeoutMs).(type) {
		case *kafka.Message:
			ev, err := pubsub.Unmarshal(e.Value)
			if err != nil {
				l.Warn().Err(err).Msg("dropping malformed room event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(log.FieldRoom, ev.Room).Msg("room event buffer full, dropping")
			}
		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// stopConsumerLocked cancels the poll loop and waits for it before closing
// the consumer, which must not be used concurrently with Close.
func (b *Bus) stopConsumerLocked() {
	if b.consumer == nil {
		return
	}
	b.cancel()
	<-b.stopped
	if err := b.consumer.Close(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to close kafka consumer")
	}
	b.consumer = nil
}

// Close stops the consumer and flushes pending broadcasts.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.stopConsumerLocked()
	b.mu.Unlock()

	if n := b.producer.Flush(5000); n > 0 {
		l := log.L()
		l.Warn().Int("pending", n).Msg("kafka producer closed with undelivered broadcasts")
	}
	b.producer.Close()
	<-b.reported
	return nil
}
