package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"psybooking-service/internal/app"
	"psybooking-service/internal/calendar"
	"psybooking-service/internal/config"
	"psybooking-service/internal/engine"
	"psybooking-service/internal/server"
	"psybooking-service/internal/store/postgres"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", "psybooking")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	defaults := engine.DefaultSettings()
	defaults.TimezoneName = cfg.PrimaryTZ
	if err := store.Init(ctx, defaults); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	cal := calendar.NewClient(ctx, calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenJSON:    cfg.GoogleTokenJSON,
		TokenFile:    cfg.GoogleTokenFile,
		Timezone:     cfg.PrimaryTZ,
	}, logger)

	eng := engine.New(store, store, store, cal, logger, nil)

	// Hourly retention purge for rate-limit rows; the per-request window
	// purge handles correctness on its own.
	purger := cron.New()
	if _, err := purger.AddFunc("@hourly", func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := eng.PurgeRateLimits(purgeCtx, time.Hour); err != nil {
			logger.Warn("rate limit purge failed", "err", err)
		}
	}); err != nil {
		logger.Error("cron setup failed", "err", err)
		os.Exit(1)
	}
	purger.Start()
	defer purger.Stop()

	router := gin.Default()
	handlers := &app.Handlers{Engine: eng, Admin: store, Log: logger}
	handlers.Register(router, app.AuthMiddleware(cfg.StaticTokens, cfg.JWTSecret))

	logger.Info("listening", "port", cfg.Port)
	if err := server.Run(router, ":"+cfg.Port); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
