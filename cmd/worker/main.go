package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storefront/internal/bootstrap"
	"storefront/internal/events"
	"storefront/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	if cfg.RabbitMQURL == "" {
		logger.Fatal().Msg("worker: RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialise dependencies")
	}
	defer deps.Close()

	editor, err := deps.OpenAIEditor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure openai client")
	}
	processor := deps.Processor(editor)

	bus, err := events.DialAMQP(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to connect event bus")
	}
	defer bus.Close()

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: consuming image/process events")
	if err := bus.Consume(ctx, cfg.WorkerConcurrency, processor.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
