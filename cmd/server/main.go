package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctchen222/Four-In-A-Row/internal/api/controller"
	apirepository "ctchen222/Four-In-A-Row/internal/api/repository"
	"ctchen222/Four-In-A-Row/internal/api/service"
	"ctchen222/Four-In-A-Row/internal/config"
	"ctchen222/Four-In-A-Row/internal/db"
	"ctchen222/Four-In-A-Row/internal/events"
	"ctchen222/Four-In-A-Row/internal/hub"
	"ctchen222/Four-In-A-Row/internal/logger"
	"ctchen222/Four-In-A-Row/internal/repository"
	"ctchen222/Four-In-A-Row/internal/server"
	"ctchen222/Four-In-A-Row/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, telemetry.Options{
		CollectorAddr: cfg.OtelCollectorAddr,
		Stdout:        cfg.OtelStdout,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	runErr := run(ctx, cfg)
	if runErr != nil {
		slog.Error("Server stopped with error", "error", runErr)
	}
	if err := shutdown(context.Background()); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisConnString)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// Initialize SQLite DB
	sqlDB, err := db.Connect(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Create repositories
	gameRepo := repository.NewGameRepository(rdb, cfg.GameTTL)
	playerRepo := repository.NewPlayerRepository(rdb, cfg.GameTTL)
	userRepo := apirepository.NewUserRepository(sqlDB)
	historyRepo := apirepository.NewHistoryRepository(sqlDB)

	// Create services
	userService := service.NewUserService(userRepo, []byte(cfg.JWTSecret))
	historyService := service.NewHistoryService(historyRepo)

	// Create controllers
	userController := controller.NewUserController(userService)
	historyController := controller.NewHistoryController(historyService)

	// Create hub
	bus := events.NewRedisBus(rdb)
	h := hub.NewHub(gameRepo, playerRepo, bus, bus, historyRepo, cfg.BotThinkDelay)
	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()

	srv := server.NewServer(h, userService, userController, historyController, map[string]server.HealthCheck{
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		"sqlite": sqlDB.PingContext,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server started", "http.addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
	}

	slog.Info("Server exiting")
	return nil
}
