package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront/internal/domain"
)

// ListProducts serves one catalog page filtered by the query string.
func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := domain.ProductQuery{
		Category: qs.Get("category"),
		Search:   qs.Get("q"),
		Sort:     qs.Get("sort"),
	}
	var err error
	if q.Page, err = optionalInt(qs.Get("page")); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "page must be a number")
		return
	}
	if q.PageSize, err = optionalInt(qs.Get("page_size")); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "page_size must be a number")
		return
	}

	page, err := a.Products.List(r.Context(), q)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list products failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load products")
		return
	}
	a.json(w, http.StatusOK, page)
}

// GetProduct serves a single catalog entry.
func (a *App) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid product id")
		return
	}
	p, err := a.Products.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		a.Logger.Error().Err(err).Int("product_id", id).Msg("load product failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load product")
		return
	}
	a.json(w, http.StatusOK, p)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
