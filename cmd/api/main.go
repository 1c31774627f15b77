package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"storefront/internal/adapter/repo"
	"storefront/internal/bootstrap"
	"storefront/internal/events"
	"storefront/internal/http/handlers"
	httpapi "storefront/internal/http/httpapi"
	"storefront/internal/infra"
	"storefront/internal/ratelimit"
	"storefront/internal/tryon"
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

	deps, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise dependencies")
	}
	defer deps.Close()

	validate := validator.New()
	checks := map[string]handlers.Pinger{
		"redis": handlers.PingFunc(func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }),
	}
	if deps.DB != nil {
		checks["postgres"] = handlers.PingFunc(deps.DB.Ping)
	}

	// Local mode runs the processor in this process; amqp mode leaves it to
	// cmd/worker.
	var dispatcher events.Dispatcher
	switch cfg.EventBackend {
	case infra.EventBackendAMQP:
		bus, err := events.DialAMQP(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect event bus")
		}
		defer bus.Close()
		dispatcher = bus
		checks["amqp"] = bus
	default:
		editor, err := deps.OpenAIEditor(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure openai client")
		}
		bus := events.NewLocalBus(deps.Processor(editor).Handle, cfg.WorkerConcurrency, logger)
		defer bus.Close()
		dispatcher = bus
	}

	submitter := tryon.NewSubmitter(tryon.SubmitterOptions{
		Jobs:         deps.Jobs,
		Uploader:     deps.Uploader,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Metrics:      deps.Metrics,
		Validate:     validate,
		EnvTag:       cfg.EnvTag(),
		MaxBytes:     int(cfg.MaxUploadBytes),
		MaxDimension: cfg.ImageMaxDimension,
	})
	limiter := ratelimit.New(repo.NewRateLimitRepository(deps.Redis), ratelimit.Options{
		Limit:   cfg.RateLimitMax,
		Window:  cfg.RateLimitWindow,
		Sink:    deps.Sink,
		Metrics: deps.Metrics,
	})

	app := handlers.NewApp(submitter, tryon.NewStatusService(deps.Jobs), deps.Products, logger)
	app.Validate = validate
	app.Checks = checks

	staticDir := ""
	if cfg.StorageBackend == infra.StorageBackendFile {
		staticDir = cfg.StoragePath
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:      logger,
		Limiter:     limiter,
		Metrics:     deps.Metrics.Handler(),
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   staticDir,
		// base64 inflates the upload by a third
		MaxBodyBytes: cfg.MaxUploadBytes*4/3 + 4096,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("event_backend", cfg.EventBackend).Str("storage_backend", cfg.StorageBackend).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
