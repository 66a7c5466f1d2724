package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"reelcraft/internal/cache"
	"reelcraft/internal/http/handlers"
	httpapi "reelcraft/internal/http/httpapi"
	"reelcraft/internal/infra"
	"reelcraft/internal/infra/credentials"
	"reelcraft/internal/metrics"
	"reelcraft/internal/orchestrator"
	"reelcraft/internal/providers/prompt"
	"reelcraft/internal/providers/video"
	"reelcraft/internal/providers/vision"
	"reelcraft/internal/session"
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

	checks := map[string]handlers.ReadinessCheck{}

	// Postgres is optional: it only backs provider credentials.
	var store *credentials.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store = credentials.NewStore(infra.NewSQLRunner(pool, logger))
		checks["postgres"] = pingPool(pool)
	}

	openAIKey, err := credentials.Resolve(ctx, store, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load openai credential")
	}
	if openAIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY is not configured; text enhancement requests will fail")
	}

	var sessions session.Store
	if cfg.RedisAddr != "" {
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		sessions = session.NewRedisStore(client, cfg.SessionTTL)
		checks["redis"] = pingRedis(client)
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	collector := metrics.NewCollector()
	text := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
		APIKey:      openAIKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		MaxTokens:   cfg.OpenAIMaxTokens,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.OpenAITimeout,
		Cache:       cache.NewMemory("text", collector),
		Logger:      &logger,
		Metrics:     collector,
		OnWarning: func(reason, detail string) {
			logger.Warn().Str("reason", reason).Str("detail", detail).Msg("openai model normalized")
		},
	})
	visionClient, err := vision.NewClient(vision.Options{
		IntermediaryURL: cfg.VisionIntermediaryURL,
		Timeout:         cfg.VisionTimeout,
		Cache:           cache.NewMemory("vision", collector),
		Fingerprint:     cache.FingerprintByName(cfg.VisionCacheFingerprint),
		Logger:          &logger,
		Metrics:         collector,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure vision client")
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Text:   text,
		Vision: visionClient,
		Simulator: video.NewSimulator(video.Options{
			MinDelay:    cfg.JobMinDelay,
			MaxDelay:    cfg.JobMaxDelay,
			FailureRate: cfg.JobFailureRate,
			Logger:      &logger,
			Metrics:     collector,
		}),
		Legacy: video.NewSimulator(video.Options{
			MinDelay:    cfg.JobMinDelay,
			MaxDelay:    cfg.JobMaxDelay,
			FailureRate: cfg.LegacyJobFailureRate,
			Logger:      &logger,
			Metrics:     collector,
		}),
		Logger:  &logger,
		Metrics: collector,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	app := &handlers.App{
		Generator:       orch,
		Sessions:        sessions,
		SessionTTL:      cfg.SessionTTL,
		ResultsRedirect: cfg.ResultsRedirectPath,
		Logger:          &logger,
		Checks:          checks,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Metrics:            collector.Handler(),
	})
	server := infra.NewHTTPServer(cfg, cfg.Port, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("vision_intermediary", cfg.VisionIntermediaryURL).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		orch.Cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func pingPool(pool *pgxpool.Pool) handlers.ReadinessCheck {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func pingRedis(client *redis.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}
