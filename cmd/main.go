package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"friendchat/backend/internal/api/handler"
	"friendchat/backend/internal/auth"
	"friendchat/backend/internal/chathub"
	"friendchat/backend/internal/config"
	"friendchat/backend/internal/conversation"
	"friendchat/backend/internal/friendship"
	"friendchat/backend/internal/localization"
	"friendchat/backend/internal/messaging"
	"friendchat/backend/internal/presence"
	"friendchat/backend/internal/storage"
	"friendchat/backend/internal/typing"

	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2

	shutdownTimeout = 10 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FriendChat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Конфігурація та логер
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)
	logger.Info("Starting FriendChat backend...", "node_id", cfg.NodeID, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. PostgreSQL та міграції
	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		return exitRuntime, err
	}
	store := storage.NewStorageService(db)
	if err := store.Migrate(); err != nil {
		return exitRuntime, fmt.Errorf("failed to run migrations: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	logger.Info("Database connection established, migrations complete.")

	// 3. Кімнати: локальні або через Redis, якщо він налаштований
	rooms := chathub.NewRooms(logger)
	var broadcaster chathub.Broadcaster = rooms
	var relay *chathub.RedisRelay
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return exitRuntime, fmt.Errorf("failed to connect Redis: %w", err)
		}
		relay = chathub.NewRedisRelay(rooms, rdb, cfg.RedisChannel, cfg.NodeID, cfg.SendBufferSize*4, logger)
		broadcaster = relay
	}

	// 4. Доменні сервіси та Chat Hub
	localizer, err := localization.NewDefault()
	if err != nil {
		return exitRuntime, err
	}
	registry := presence.NewRegistry(logger, cfg.PresenceShards)
	resolver := conversation.NewResolver(store, logger)
	friends := friendship.NewService(store, chathub.NewUserNotifier(broadcaster), logger)
	messages := messaging.NewService(store, broadcaster, cfg.PublicRoom, logger)

	hub := chathub.NewManagerService(chathub.Dependencies{
		Presence:   registry,
		Rooms:      broadcaster,
		Resolver:   resolver,
		Friends:    friends,
		Messages:   messages,
		Typing:     typing.NewTracker(broadcaster),
		Localizer:  localizer,
		PublicRoom: cfg.PublicRoom,
		E2EEnabled: cfg.E2EEnabled,
	}, logger)

	// 5. Gin та роутинг
	if !logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(handler.Options{
		Hub:            hub,
		Friends:        friends,
		Messages:       messages,
		Conversations:  resolver,
		Tokens:         auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		Localizer:      localizer,
		BaseContext:    ctx,
		AllowedOrigin:  cfg.FrontendURL,
		SendBufferSize: cfg.SendBufferSize,
	}, logger)
	router := handler.NewRouter(h, handler.RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow, localizer))

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 6. Запуск HTTP-сервера та релею
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	logger.Info("FriendChat stopped")
	return exitOK, nil
}
