package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/tryon"
)

// Submitter accepts try-on submissions.
type Submitter interface {
	Submit(ctx context.Context, req tryon.SubmitRequest) (string, error)
}

// StatusChecker resolves job ids to status views.
type StatusChecker interface {
	CheckStatuses(ctx context.Context, jobIDs []string) (map[string]tryon.StatusView, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Submitter Submitter
	Status    StatusChecker
	Products  domain.ProductRepository
	Logger    zerolog.Logger
	Validate  *validator.Validate
	// Checks are pinged by Ready, keyed by dependency name.
	Checks map[string]Pinger
}

func NewApp(submitter Submitter, status StatusChecker, products domain.ProductRepository, logger zerolog.Logger) *App {
	return &App{
		Submitter: submitter,
		Status:    status,
		Products:  products,
		Logger:    logger,
		Validate:  validator.New(),
		Checks:    map[string]Pinger{},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
