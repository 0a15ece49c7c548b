package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/api"
	"github.com/courierchat/courier/internal/config"
	"github.com/courierchat/courier/internal/crypto"
	"github.com/courierchat/courier/internal/handlers"
	"github.com/courierchat/courier/internal/relay"
	"github.com/courierchat/courier/internal/store"
	"github.com/courierchat/courier/internal/uploads"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the message store: Postgres when configured, SQLite otherwise
	var msgStore store.MessageStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		msgStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		msgStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer msgStore.Close()

	// Initialize Redis (optional, backs rate limiting)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Message text cipher
	cipher, err := crypto.NewCipher(cfg.CipherKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("cipher init failed")
	}

	// Attachment storage
	uploadStore, err := uploads.NewStore(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("upload dir init failed")
	}

	// Relay and router
	rl := relay.New(msgStore, cipher, uploadStore, cfg.JWTSecret, cfg.CORSOrigins, logger)
	h := handlers.NewHandler(msgStore, redisStore, cipher, logger)
	router := api.NewRouter(cfg, logger, h, rl, redisStore)

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket sessions.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting Courier relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
