package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-core/internal/auth"
	"chat-core/internal/command"
	"chat-core/internal/config"
	"chat-core/internal/connection"
	"chat-core/internal/handlers"
	"chat-core/internal/hooks"
	"chat-core/internal/manager"
	"chat-core/internal/presence"
	"chat-core/internal/queue"
	"chat-core/internal/router"
	"chat-core/internal/session"
	"chat-core/internal/store"
	"chat-core/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: "chat-core",
	})
	log := logger.L()

	// Optional collaborators
	var relations store.RelationStore
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		relations = pg
		log.Info().Msg("relation store connected")
	}

	var offline queue.Queue
	if cfg.Redis.Addr != "" {
		rq, err := queue.NewRedis(cfg.Redis.Addr, cfg.Limits.OfflineQueueSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rq.Close()
		offline = rq
		log.Info().Msg("redis offline queue connected")
	} else {
		offline = queue.NewMemory(cfg.Limits.OfflineQueueSize)
	}

	// Core components
	authService := auth.NewService(cfg)
	hookRegistry := hooks.NewRegistry(log)
	registry := connection.NewRegistry(cfg.Limits.MaxConnectionsPerUser, log)
	sessions := session.NewManager(cfg.Limits.SessionCleanupInterval, log)
	tracker := presence.NewTracker(cfg.Limits.HeartbeatTimeout, log)
	route := router.New(registry, hookRegistry, offline, log)

	pipeline := command.NewPipeline(hookRegistry, log)
	pipeline.Register(command.NewHelpHandler(pipeline), 10)
	pipeline.Register(command.NewEchoHandler(), 20)

	mgr := manager.New(manager.Deps{
		Auth:      authService,
		Registry:  registry,
		Sessions:  sessions,
		Presence:  tracker,
		Router:    route,
		Pipeline:  pipeline,
		Hooks:     hookRegistry,
		Queue:     offline,
		Relations: relations,
		Log:       log,
	}, manager.Options{
		HealthCheckInterval: cfg.Limits.HealthCheckInterval,
		SessionIdleTimeout:  cfg.Limits.SessionIdleTimeout,
	})
	go mgr.RunHealthMonitor()

	wsHandlers := handlers.NewWebSocketHandlers(authService, mgr, cfg, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("/healthz", wsHandlers.HandleHealthz)

	server := &http.Server{
		Addr:         cfg.Server.Host + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := mgr.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("connection manager shutdown incomplete")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown incomplete")
	}
}
