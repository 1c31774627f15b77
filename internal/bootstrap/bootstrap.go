// Package bootstrap builds the collaborators shared by the api and worker
// binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/adapter/repo"
	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/imagegen"
	"storefront/internal/infra"
	"storefront/internal/infra/credentials"
	"storefront/internal/observability"
	"storefront/internal/storage"
	"storefront/internal/tryon"
)

// Deps holds the long-lived clients of one process. Close releases them.
type Deps struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	DB       *pgxpool.Pool
	Metrics  *observability.Metrics
	Sink     *observability.AsyncSink
	Jobs     domain.JobRepository
	Products domain.ProductRepository
	Uploader storage.Uploader
}

// Open connects Redis, the optional catalog database and object storage.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	d.Sink = observability.NewAsyncSink(logger, d.Metrics, 256,
		observability.LogBackend{Logger: logger},
		observability.MetricsBackend{Metrics: d.Metrics},
	)

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Redis = rdb
	d.Jobs = repo.NewJobRepository(rdb, cfg.JobTTL)

	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.DB = pool
		d.Products = repo.NewProductRepository(infra.NewSQLRunner(pool, logger))
		logger.Info().Msg("catalog: using postgres")
	} else {
		products, err := catalog.LoadJSONRepository(cfg.CatalogPath)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		d.Products = products
		logger.Info().Str("path", cfg.CatalogPath).Msg("catalog: using json file")
	}

	uploader, err := storage.New(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("configure storage: %w", err)
	}
	d.Uploader = uploader
	return d, nil
}

// OpenAIEditor resolves the API key from the environment, falling back to the
// credentials table, and builds the edit client.
func (d *Deps) OpenAIEditor(ctx context.Context) (*imagegen.OpenAIClient, error) {
	key := strings.TrimSpace(d.Config.OpenAIAPIKey)
	model := d.Config.OpenAIModel
	if key == "" && d.DB != nil {
		store := credentials.NewStore(infra.NewSQLRunner(d.DB, d.Logger))
		cred, err := store.OpenAI(ctx)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("failed to load openai api key from store")
		} else {
			key = cred.APIKey
			if cred.Model != "" {
				model = cred.Model
			}
		}
	}
	if key == "" {
		return nil, fmt.Errorf("openai api key missing: set OPENAI_API_KEY or store one with openaikey")
	}
	return imagegen.NewOpenAIClient(imagegen.OpenAIOptions{
		BaseURL:    d.Config.OpenAIBaseURL,
		APIKey:     key,
		Model:      model,
		Timeout:    d.Config.OpenAITimeout,
		MaxRetries: d.Config.OpenAIMaxRetries,
		RPS:        d.Config.OpenAIRPS,
	}), nil
}

// Processor wires the background compositing pipeline.
func (d *Deps) Processor(editor imagegen.Editor) *tryon.Processor {
	return tryon.NewProcessor(tryon.ProcessorOptions{
		Jobs:     d.Jobs,
		Products: d.Products,
		Fetcher:  tryon.NewHTTPFetcher(0),
		Editor:   editor,
		Uploader: d.Uploader,
		Logger:   d.Logger,
		Metrics:  d.Metrics,
		Sink:     d.Sink,
	})
}

func (d *Deps) Close() {
	if d.Sink != nil {
		d.Sink.Close()
	}
	if closer, ok := d.Uploader.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("close storage")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}
