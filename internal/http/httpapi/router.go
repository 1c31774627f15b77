package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"storefront/internal/http/handlers"
	"storefront/internal/middleware"
)

// Options carries the collaborators the router mounts beside the handlers.
type Options struct {
	Logger      zerolog.Logger
	Limiter     middleware.Allower
	Metrics     http.Handler
	CORSOrigins []string
	// StaticDir is served under /static when uploads use the file backend.
	StaticDir string
	// MaxBodyBytes caps request bodies on the try-on routes.
	MaxBodyBytes int64
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1/products", func(r chi.Router) {
		r.Get("/", app.ListProducts)
		r.Get("/{id}", app.GetProduct)
	})

	r.Route("/v1/tryon", func(r chi.Router) {
		r.Use(middleware.ClientIdentity)
		if opts.MaxBodyBytes > 0 {
			r.Use(chimw.RequestSize(opts.MaxBodyBytes))
		}
		r.Post("/status", app.TryOnStatus)
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(middleware.RateLimit(opts.Limiter, opts.Logger))
			}
			r.Post("/submit", app.TryOnSubmit)
		})
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Handle("/static/*", fs)
	}

	return r
}
