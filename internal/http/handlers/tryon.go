package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/tryon"
)

type submitRequest struct {
	Image     string `json:"image" validate:"required"`
	ImgMD5    string `json:"imgMD5" validate:"omitempty,max=64"`
	ProductID int    `json:"productId" validate:"required,gt=0"`
}

type submitResponse struct {
	TOIID string `json:"TOIID"`
}

type statusRequest struct {
	JobIDs []string `json:"jobIds" validate:"required,min=1"`
}

// TryOnSubmit accepts a user photo and a product id and returns the job id.
func (a *App) TryOnSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image and productId are required")
		return
	}
	image, err := decodeImage(req.Image)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image must be base64 encoded")
		return
	}

	jobID, err := a.Submitter.Submit(r.Context(), tryon.SubmitRequest{
		Image:       image,
		ContentHash: req.ImgMD5,
		ProductID:   req.ProductID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).
			Str("client_id", middleware.ClientIDFromContext(r.Context())).
			Int("product_id", req.ProductID).
			Msg("tryon submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit try-on")
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{TOIID: jobID})
}

// TryOnStatus returns one status view per requested job id.
func (a *App) TryOnStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "jobIds required")
		return
	}
	views, err := a.Status.CheckStatuses(r.Context(), req.JobIDs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrUpstream):
			a.Logger.Error().Err(err).Msg("tryon status lookup failed")
			a.error(w, http.StatusBadGateway, "upstream", "job store unavailable")
		default:
			a.Logger.Error().Err(err).Msg("tryon status lookup failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load statuses")
		}
		return
	}
	a.json(w, http.StatusOK, views)
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}
