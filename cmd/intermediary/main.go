package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"reelcraft/internal/http/handlers"
	httpapi "reelcraft/internal/http/httpapi"
	"reelcraft/internal/infra"
	"reelcraft/internal/infra/credentials"
	"reelcraft/internal/metrics"
	"reelcraft/internal/providers/genai"
)

// The intermediary is the only process that loads the Gemini credential.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "vision-intermediary")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *credentials.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store = credentials.NewStore(infra.NewSQLRunner(pool, logger))
	}
	geminiKey, err := credentials.Resolve(ctx, store, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load gemini credential")
	}

	client := genai.NewClient(genai.Options{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
		Logger:  &logger,
	})
	if !client.Available() {
		logger.Warn().Msg("GEMINI_API_KEY is not configured; vision requests will report unavailable")
	}

	collector := metrics.NewCollector()
	router := httpapi.NewIntermediaryRouter(handlers.NewVisionProxy(client, &logger), httpapi.Options{
		Logger:  logger,
		Metrics: collector.Handler(),
	})
	server := infra.NewHTTPServer(cfg, cfg.IntermediaryPort, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("model", client.Model()).Msg("vision intermediary listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
