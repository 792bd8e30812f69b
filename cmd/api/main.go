package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clearmark/internal/adapter/repo"
	"clearmark/internal/capability"
	"clearmark/internal/db"
	"clearmark/internal/http/handlers"
	"clearmark/internal/http/httpapi"
	"clearmark/internal/infra"
	"clearmark/internal/infra/credentials"
	"clearmark/internal/infra/geoip"
	"clearmark/internal/middleware"
	"clearmark/internal/sse"
	"clearmark/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: database connection failed")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("api: schema bootstrap failed")
	}

	runner := infra.NewSQLRunner(pool, logger)
	runs := repo.NewRunRepository(runner)
	assets := repo.NewAssetRepository(runner)
	checker := capability.NewStoreChecker(credentials.NewStore(runner))

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("api: storage unavailable")
	}

	var countryLookup middleware.CountryLookup
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
		if closer, ok := resolver.(io.Closer); ok {
			defer closer.Close()
		}
	}

	hub := sse.NewHub()
	publisher := sse.NewPublisher(sse.PublisherOptions{
		Hub:    hub,
		Runs:   runs,
		Logger: &logger,
	})
	go publisher.Run(ctx)

	app := handlers.NewApp(handlers.AppOptions{
		Runs:           runs,
		Assets:         assets,
		Store:          store,
		Hub:            hub,
		Capability:     checker,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         &logger,
	})

	router := httpapi.NewRouter(httpapi.RouterOptions{
		App:              app,
		Logger:           logger,
		AllowedOrigins:   cfg.CORSOrigins,
		DefaultLocale:    cfg.DefaultLocale,
		CountryLookup:    countryLookup,
		APIToken:         cfg.AdminToken,
		UploadsPerMinute: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}
