package pubsub

import "time"

const (
	DefaultChannelPrefix = "chat"
	DefaultTopic         = "chat-room-broadcast"
)

// Config selects and configures the inter-node transport.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Address       string        `mapstructure:"address"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PoolSize      int           `mapstructure:"pool_size"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
}

// KafkaConfig routes every room through one topic keyed by room, so a
// room's broadcasts keep their order within a partition. GroupID must be
// unique per node.
type KafkaConfig struct {
	Brokers           string `mapstructure:"brokers"`
	GroupID           string `mapstructure:"group_id"`
	Topic             string `mapstructure:"topic"`
	Partitions        int    `mapstructure:"partitions"`
	ReplicationFactor int    `mapstructure:"replication_factor"`
}
