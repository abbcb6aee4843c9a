package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GiaHung305/appchat-2/internal/chat"
	"github.com/GiaHung305/appchat-2/internal/config"
	"github.com/GiaHung305/appchat-2/internal/db"
	"github.com/GiaHung305/appchat-2/internal/logging"
	appmiddleware "github.com/GiaHung305/appchat-2/internal/middleware"
	"github.com/GiaHung305/appchat-2/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("falling back to UTC for display times", zap.Error(err))
	}

	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info("connected to postgres")

	if err := database.Migrate(context.Background()); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, backlog replay disabled", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	// User feature
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// Chat feature
	registry := chat.NewRegistry()
	metrics := chat.NewMetrics(nil)
	engine := chat.NewEngine(registry, loc, metrics, logger)
	chatRepo := chat.NewRepository(database.Conn)
	cache := chat.NewHistoryCache(redisClient, cfg.HistoryLimit, logger)
	chatHandler := chat.NewHandler(registry, engine, chatRepo, userService,
		cache, metrics, logger, cfg.HistoryLimit)

	authMiddleware := appmiddleware.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/ws", chatHandler.ServeWs)
		r.Get("/api/messages", chatHandler.GetChatHistory)
		r.Get("/api/users/search", userHandler.SearchUsers)
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	return server.Shutdown(ctx)
}
