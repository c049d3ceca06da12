package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-live/chatroom/pkg/config"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/database"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
	History   HistoryConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Directory DirectoryConfig
	Fanout    FanoutConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
}

type ChatConfig struct {
	BotName         string        `mapstructure:"bot_name"`
	WelcomeText     string        `mapstructure:"welcome_text"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	HistoryTimeout  time.Duration `mapstructure:"history_timeout"`
	WriterQueueSize int           `mapstructure:"writer_queue_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// HistoryConfig selects and configures the message history backend.
type HistoryConfig struct {
	Driver    string // memory, sql, mongo, cassandra
	Memory    MemoryConfig
	SQL       database.Config
	Mongo     MongoConfig
	Cassandra CassandraConfig
}

type MemoryConfig struct {
	MaxPerRoom int `mapstructure:"max_per_room"`
}

type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Username       string
	Password       string
	Consistency    string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration
	NumConns       int  `mapstructure:"num_conns"`
	CreateSchema   bool `mapstructure:"create_schema"`
}

type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type DirectoryConfig struct {
	Enabled           bool
	Prefix            string
	AdvertiseAddress  string        `mapstructure:"advertise_address"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type FanoutConfig struct {
	Enabled bool
	NodeID  string        `mapstructure:"node_id"`
	PubSub  pubsub.Config `mapstructure:"pubsub"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("config", os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("history.driver", "HISTORY_DRIVER")
	v.BindEnv("history.mongo.uri", "DATABASE_CONNECTION")
	v.BindEnv("history.sql.dsn", "SQL_DSN")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("directory.advertise_address", "ADVERTISE_ADDRESS")
	v.BindEnv("fanout.node_id", "NODE_ID")
	v.BindEnv("fanout.pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("fanout.pubsub.kafka.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Chat.HistoryTimeout = parseDuration(v, "chat.history_timeout", 3*time.Second)
	cfg.Chat.WriteTimeout = parseDuration(v, "chat.write_timeout", 5*time.Second)
	cfg.History.Mongo.ConnectTimeout = parseDuration(v, "history.mongo.connect_timeout", 10*time.Second)
	cfg.History.Cassandra.ConnectTimeout = parseDuration(v, "history.cassandra.connect_timeout", 10*time.Second)
	cfg.History.Cassandra.Timeout = parseDuration(v, "history.cassandra.timeout", 5*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 5*time.Second)
	cfg.Directory.HeartbeatInterval = parseDuration(v, "directory.heartbeat_interval", 10*time.Second)
	cfg.Directory.KeyTTL = parseDuration(v, "directory.key_ttl", 30*time.Second)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50060)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("chat.bot_name", "ChatCord Bot")
	v.SetDefault("chat.welcome_text", "Welcome to ChatCord!")
	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.history_timeout", "3s")
	v.SetDefault("chat.writer_queue_size", 1024)
	v.SetDefault("chat.write_timeout", "5s")
	v.SetDefault("history.driver", "memory")
	v.SetDefault("history.memory.max_per_room", 1000)
	v.SetDefault("history.sql.driver", "sqlite")
	v.SetDefault("history.sql.file_path", "chatroom.db")
	v.SetDefault("history.sql.max_open_conns", 1)
	v.SetDefault("history.sql.log_level", "warn")
	v.SetDefault("history.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("history.mongo.database", "chatcord")
	v.SetDefault("history.mongo.collection", "messages")
	v.SetDefault("history.mongo.connect_timeout", "10s")
	v.SetDefault("history.cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("history.cassandra.keyspace", "chatroom")
	v.SetDefault("history.cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("history.cassandra.connect_timeout", "10s")
	v.SetDefault("history.cassandra.timeout", "5s")
	v.SetDefault("history.cassandra.num_conns", 2)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.prefix", "chat:history")
	v.SetDefault("cache.ttl", "5s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("directory.enabled", false)
	v.SetDefault("directory.prefix", "chat:directory")
	v.SetDefault("directory.advertise_address", "localhost:3000")
	v.SetDefault("directory.heartbeat_interval", "10s")
	v.SetDefault("directory.key_ttl", "30s")
	v.SetDefault("fanout.enabled", false)
	v.SetDefault("fanout.pubsub.driver", "redis")
	v.SetDefault("fanout.pubsub.redis.address", "localhost:6379")
	v.SetDefault("fanout.pubsub.redis.pool_size", 10)
	v.SetDefault("fanout.pubsub.redis.read_timeout", "3s")
	v.SetDefault("fanout.pubsub.redis.write_timeout", "3s")
	v.SetDefault("fanout.pubsub.redis.channel_prefix", pubsub.DefaultChannelPrefix)
	v.SetDefault("fanout.pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("fanout.pubsub.kafka.group_id", "chatroom")
	v.SetDefault("fanout.pubsub.kafka.topic", pubsub.DefaultTopic)
	v.SetDefault("fanout.pubsub.kafka.partitions", 4)
	v.SetDefault("fanout.pubsub.kafka.replication_factor", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
