package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storefront/internal/adapter/repo"
	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/tryon"
)

type stubSubmitter struct {
	got tryon.SubmitRequest
	err error
}

func (s *stubSubmitter) Submit(ctx context.Context, req tryon.SubmitRequest) (string, error) {
	s.got = req
	if s.err != nil {
		return "", s.err
	}
	return tryon.JobID("d", strings.ToLower(req.ContentHash), req.ProductID), nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestApp(t *testing.T) (*App, *stubSubmitter, *repo.MemoryJobRepository) {
	t.Helper()
	products, err := catalog.LoadJSONRepository("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	jobs := repo.NewMemoryJobRepository()
	sub := &stubSubmitter{}
	app := NewApp(sub, tryon.NewStatusService(jobs), products, zerolog.Nop())
	return app, sub, jobs
}

func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Get("/v1/products", app.ListProducts)
	r.Get("/v1/products/{id}", app.GetProduct)
	r.Post("/v1/tryon/submit", app.TryOnSubmit)
	r.Post("/v1/tryon/status", app.TryOnStatus)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestTryOnSubmitReturnsJobID(t *testing.T) {
	app, sub, _ := newTestApp(t)
	h := newTestRouter(app)

	rec := doJSON(t, h, http.MethodPost, "/v1/tryon/submit", map[string]any{
		"image":     base64.StdEncoding.EncodeToString([]byte("jpeg bytes")),
		"imgMD5":    "ABC123",
		"productId": 42,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TOIID != "d-abc123-42" {
		t.Fatalf("TOIID = %q, want d-abc123-42", out.TOIID)
	}
	if string(sub.got.Image) != "jpeg bytes" || sub.got.ProductID != 42 {
		t.Fatalf("submitter got %+v", sub.got)
	}
}

func TestTryOnSubmitAcceptsDataURL(t *testing.T) {
	app, sub, _ := newTestApp(t)
	h := newTestRouter(app)

	rec := doJSON(t, h, http.MethodPost, "/v1/tryon/submit", map[string]any{
		"image":     "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")),
		"productId": 1,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if string(sub.got.Image) != "png" {
		t.Fatalf("image = %q", sub.got.Image)
	}
}

func TestTryOnSubmitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing image", map[string]any{"productId": 1}},
		{"missing product", map[string]any{"image": base64.StdEncoding.EncodeToString([]byte("x"))}},
		{"not base64", map[string]any{"image": "%%%", "productId": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, _ := newTestApp(t)
			rec := doJSON(t, newTestRouter(app), http.MethodPost, "/v1/tryon/submit", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if code := errorCode(t, rec); code != "bad_request" {
				t.Fatalf("code = %q", code)
			}
		})
	}
}

func TestTryOnSubmitMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: too big", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, sub, _ := newTestApp(t)
			sub.err = tt.err
			rec := doJSON(t, newTestRouter(app), http.MethodPost, "/v1/tryon/submit", map[string]any{
				"image":     base64.StdEncoding.EncodeToString([]byte("x")),
				"productId": 3,
			})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTryOnStatusReturnsViews(t *testing.T) {
	app, _, jobs := newTestApp(t)
	ctx := context.Background()
	if err := jobs.Set(ctx, "d-abc-1", domain.Fields{"status": string(domain.JobStatusCompleted), "url": "https://cdn/x.png"}, false); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, newTestRouter(app), http.MethodPost, "/v1/tryon/status", map[string]any{
		"jobIds": []string{"d-abc-1", "missing"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out map[string]tryon.StatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := out["d-abc-1"]; got.DressStatus != domain.DressStatusReveal || got.ImageURL() != "https://cdn/x.png" {
		t.Fatalf("completed view = %+v", got)
	}
	if got := out["missing"]; got.Status != domain.JobStatusGone || got.DressStatus != domain.DressStatusGone {
		t.Fatalf("missing view = %+v", got)
	}
}

func TestTryOnStatusRejectsEmptyAndOversized(t *testing.T) {
	app, _, _ := newTestApp(t)
	h := newTestRouter(app)

	if rec := doJSON(t, h, http.MethodPost, "/v1/tryon/status", map[string]any{"jobIds": []string{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty: status = %d", rec.Code)
	}

	ids := make([]string, tryon.MaxStatusBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("job-%d", i)
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/tryon/status", map[string]any{"jobIds": ids}); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized: status = %d", rec.Code)
	}
}

func TestListProducts(t *testing.T) {
	app, _, _ := newTestApp(t)
	h := newTestRouter(app)

	rec := doJSON(t, h, http.MethodGet, "/v1/products?category=dresses&sort=price_asc&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var page domain.ProductPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Price > page.Items[1].Price {
		t.Fatalf("items not sorted by price: %+v", page.Items)
	}

	if rec := doJSON(t, h, http.MethodGet, "/v1/products?page=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad page: status = %d", rec.Code)
	}
}

func TestGetProduct(t *testing.T) {
	app, _, _ := newTestApp(t)
	h := newTestRouter(app)

	rec := doJSON(t, h, http.MethodGet, "/v1/products/4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p domain.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil || p.ID != 4 {
		t.Fatalf("product = %+v err = %v", p, err)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/products/999", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("missing: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/products/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	app, _, _ := newTestApp(t)
	h := newTestRouter(app)

	if rec := doJSON(t, h, http.MethodGet, "/v1/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	app.Checks["redis"] = stubPinger{}
	if rec := doJSON(t, h, http.MethodGet, "/v1/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz ok = %d", rec.Code)
	}

	app.Checks["amqp"] = stubPinger{err: errors.New("closed")}
	rec := doJSON(t, h, http.MethodGet, "/v1/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"amqp":"down"`) {
		t.Fatalf("readyz degraded = %d %s", rec.Code, rec.Body.String())
	}
}
