package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"roomchat/internal/config"
	"roomchat/internal/database/db_client"
	"roomchat/internal/http/http_server"
	"roomchat/internal/http/roomhandler"
	"roomchat/internal/redis/redis_client"
	"roomchat/internal/redis/redis_functions"
	"roomchat/internal/redis/watcher/roomwatcher"
	"roomchat/internal/room"
	"roomchat/internal/services/history"
	"roomchat/internal/services/rooms"
	"roomchat/internal/syncmsg"
	"roomchat/internal/syncpresence"
	"roomchat/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

//	@title			roomchat API
//	@version		1.0
//	@description	Live presence and message history for chat rooms. Realtime traffic uses the /ws endpoint.
//	@BasePath		/
func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	log := newLogger(cfg)
	defer log.Sync()
	zap.ReplaceGlobals(log)
	log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	log.Debug("Redis client created successfully")

	// Load the Redis Functions lua
	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Services
	historyService := history.NewHistoryService(pgDb, cfg.HistoryPageLimit)
	recorder := history.NewRecorder(redisClient, cfg.MessagesStreamMaxLen, 0)
	directory := rooms.NewDirectory(pgDb, redisClient)

	// 6. Room registry + session coordinator
	registry := room.NewRegistry()
	coordinator := room.NewCoordinator(registry,
		room.Limits{
			MaxAliasLength:   cfg.MaxAliasLength,
			MaxMessageLength: cfg.MaxMessageLength,
		},
		room.WithMessageSink(recorder),
	)
	go coordinator.Run(ctx)
	go recorder.Run(ctx)

	// 7. Background: room deletions ➜ close members
	go roomwatcher.Run(ctx, redisClient, coordinator, directory)

	// 8. Background: stream ➜ Postgres, presence ➜ Redis
	syncmsg.Run(ctx, redisClient, pgDb)
	syncpresence.Run(ctx, redisClient, coordinator, cfg.PresenceSyncInterval)

	// 9. Initialize the WS server
	var wsDirectory ws.RoomDirectory
	var restChecker roomhandler.RoomChecker
	if cfg.RoomCheckEnabled {
		wsDirectory = directory
		restChecker = directory
	}
	wsSrv := ws.NewWsServer(coordinator, wsDirectory, ws.Options{
		ReadLimit:         cfg.WsReadLimit,
		SendBuffer:        cfg.WsSendBuffer,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitBurst:    cfg.RateLimitBurst,
		RateLimitInterval: cfg.RateLimitInterval,
	})

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, coordinator, historyService, restChecker)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return Log
	}
	return log
}
