package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"clearmark/internal/adapter/repo"
	"clearmark/internal/capability"
	"clearmark/internal/cleaner"
	"clearmark/internal/db"
	"clearmark/internal/domain"
	"clearmark/internal/frame"
	"clearmark/internal/genai"
	"clearmark/internal/infra"
	"clearmark/internal/infra/credentials"
	"clearmark/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: database connection failed")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: schema bootstrap failed")
	}

	runner := infra.NewSQLRunner(pool, logger)
	runs := repo.NewRunRepository(runner)
	assets := repo.NewAssetRepository(runner)
	creds := credentials.NewStore(runner)
	checker := capability.NewStoreChecker(creds)

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("worker: storage unavailable")
	}

	apiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if apiKey == "" {
		if fromStore, err := creds.GeminiAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("worker: gemini api key lookup failed")
		} else {
			apiKey = fromStore
		}
	}
	if apiKey == "" {
		logger.Warn().Msg("worker: gemini api key missing, runs will fail until one is configured")
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:          apiKey,
		BaseURL:         cfg.GeminiBaseURL,
		ImageModel:      cfg.GeminiImageModel,
		VideoModel:      cfg.GeminiVideoModel,
		HTTPClient:      &http.Client{Timeout: 120 * time.Second},
		Logger:          &logger,
		PollInterval:    cfg.VideoPollInterval,
		PollMaxAttempts: cfg.VideoPollMaxAttempts,
		PollDeadline:    cfg.VideoPollDeadline,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: gemini client setup failed")
	}

	extractor := frame.NewExtractor(frame.Options{FFmpegPath: cfg.FFmpegPath, Logger: &logger})

	orch := cleaner.NewOrchestrator(cleaner.OrchestratorOptions{
		Runs:       runs,
		Assets:     assets,
		Store:      store,
		Editor:     client,
		Renderer:   client,
		Frames:     extractor,
		Capability: checker,
		Logger:     &logger,
	})

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.RetentionSchedule, func() {
		sweepExpired(ctx, runs, store, cfg.RetentionAge, logger)
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.RetentionSchedule).Msg("worker: invalid retention schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	logger.Info().
		Dur("claim_interval", cfg.ClaimInterval).
		Str("retention_schedule", cfg.RetentionSchedule).
		Msg("worker: started")
	claimLoop(ctx, runs, orch, cfg.ClaimInterval, logger)
	logger.Info().Msg("worker: stopped")
}

func claimLoop(ctx context.Context, runs domain.RunRepository, orch *cleaner.Orchestrator, interval time.Duration, logger infra.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		run, err := runs.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("worker: claim failed")
			}
			idle(ctx, interval)
			continue
		}

		logger.Info().Str("run_id", run.ID).Str("kind", string(run.Kind)).Msg("worker: claimed run")
		if err := orch.Process(ctx, run); err != nil {
			logger.Error().Err(err).Str("run_id", run.ID).Msg("worker: run failed")
		}
	}
}

func idle(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func sweepExpired(ctx context.Context, runs domain.RunRepository, store *storage.FileStore, age time.Duration, logger infra.Logger) {
	keys, err := runs.SweepFinished(ctx, time.Now().Add(-age))
	if err != nil {
		logger.Error().Err(err).Msg("worker: retention sweep failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := store.Sweep(ctx, keys); err != nil {
		logger.Error().Err(err).Msg("worker: blob sweep incomplete")
	}
	logger.Info().Int("blobs", len(keys)).Msg("worker: swept finished runs")
}
