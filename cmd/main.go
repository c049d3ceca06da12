package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/directory"
	"github.com/weiawesome/wes-io-live/chatroom/internal/fanout"
	"github.com/weiawesome/wes-io-live/chatroom/internal/formatter"
	chatgrpc "github.com/weiawesome/wes-io-live/chatroom/internal/grpc"
	"github.com/weiawesome/wes-io-live/chatroom/internal/handler"
	"github.com/weiawesome/wes-io-live/chatroom/internal/history"
	"github.com/weiawesome/wes-io-live/chatroom/internal/hub"
	"github.com/weiawesome/wes-io-live/chatroom/internal/registry"
	"github.com/weiawesome/wes-io-live/chatroom/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/chatroom/pkg/log"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/pubsub/kafka"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	nodeID := cfg.Fanout.NodeID
	if nodeID == "" {
		nodeID = uuid.New().String()
	}

	l := pkglog.Init(pkglog.Config{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: "chatroom",
		NodeID:  nodeID,
	})
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting chat node")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs the history cache and the room directory.
	var rdb *redis.Client
	if cfg.Cache.Enabled || cfg.Directory.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			l.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	var cacheClient redis.UniversalClient
	if rdb != nil {
		cacheClient = rdb
	}
	store, err := history.Open(cfg.History, cfg.Cache, cacheClient)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.History.Driver).Msg("failed to open history store")
	}
	defer store.Close()
	l.Info().Str("driver", cfg.History.Driver).Bool("cache", cfg.Cache.Enabled).Msg("history store ready")

	var dir directory.Directory = directory.Noop{}
	if cfg.Directory.Enabled {
		rd := directory.NewRedisDirectory(rdb, cfg.Directory)
		defer rd.Close()
		dir = rd
	}

	reg := registry.NewMemoryRegistry()
	wsHub := hub.NewHub(reg)
	writer := history.NewWriter(store, cfg.Chat.WriterQueueSize, cfg.Chat.WriteTimeout)
	chatSvc := service.NewChatService(cfg.Chat, reg, wsHub, formatter.New(), store, writer, dir)

	if err := chatSvc.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to start chat service")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Fanout.Enabled {
		bus, err := openBus(cfg.Fanout.PubSub, nodeID)
		if err != nil {
			l.Fatal().Err(err).Str("driver", cfg.Fanout.PubSub.Driver).Msg("failed to open fanout transport")
		}
		defer bus.Close()

		relay := fanout.NewRelay(bus, wsHub, nodeID, cfg.WebSocket.SendBufferSize)
		wsHub.OnBroadcast(relay.Publish)
		g.Go(func() error { return relay.Run(gctx) })
	}

	var grpcServer *chatgrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer, err = chatgrpc.StartGRPCServer(fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port), l)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to start grpc server")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), pkglog.GinMiddleware(l, "/health"))
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket).RegisterRoutes(router)
	handler.NewHTTPHandler(chatSvc, cfg.Chat.HistoryLimit).RegisterRoutes(router)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g.Go(func() error {
		l.Info().Str("address", server.Addr).Msg("chat node listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down chat node")

		if grpcServer != nil {
			grpcServer.Drain()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("http server forced to shutdown")
		}
		if err := chatSvc.Stop(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("chat service stop incomplete")
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Error().Err(err).Msg("chat node exited with error")
	}
	l.Info().Msg("chat node stopped")
}

// openBus builds the fanout transport. Kafka consumer groups are made per
// node so every node sees every room broadcast.
func openBus(cfg pubsub.Config, nodeID string) (pubsub.Bus, error) {
	switch cfg.Driver {
	case "redis":
		return pubsub.NewRedisBus(cfg.Redis)
	case "kafka":
		kcfg := cfg.Kafka
		kcfg.GroupID = fmt.Sprintf("%s-%s", kcfg.GroupID, nodeID)
		return kafka.New(kcfg)
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
