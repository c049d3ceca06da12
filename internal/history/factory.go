package history

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/cache"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/cassandra"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/memory"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/mongostore"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history/sqlstore"
)

// Open builds the configured backend and, when enabled, wraps it in the
// Redis read-through cache.
func Open(cfg config.HistoryConfig, cacheCfg config.CacheConfig, rdb redis.UniversalClient) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "", "memory":
		store = memory.New(cfg.Memory.MaxPerRoom)
	case "sql":
		store, err = sqlstore.New(cfg.SQL)
	case "mongo":
		store, err = mongostore.New(cfg.Mongo)
	case "cassandra":
		store, err = cassandra.New(cfg.Cassandra)
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cacheCfg.Enabled {
		if rdb == nil {
			store.Close()
			return nil, fmt.Errorf("history cache enabled without a redis client")
		}
		store = cache.New(store, rdb, cacheCfg.Prefix, cacheCfg.TTL)
	}
	return store, nil
}
