package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/adapter/repo"
	"storefront/internal/catalog"
	"storefront/internal/http/handlers"
	"storefront/internal/observability"
	"storefront/internal/ratelimit"
	"storefront/internal/tryon"
)

type fixedSubmitter struct{}

func (fixedSubmitter) Submit(ctx context.Context, req tryon.SubmitRequest) (string, error) {
	return tryon.JobID("d", tryon.ContentHash(req.Image), req.ProductID), nil
}

func newTestServer(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	products, err := catalog.LoadJSONRepository("")
	if err != nil {
		t.Fatal(err)
	}
	metrics := observability.NewMetrics()
	limiter := ratelimit.New(repo.NewMemoryRateLimitRepository(), ratelimit.Options{
		Limit:   5,
		Window:  5 * time.Minute,
		Metrics: metrics,
	})
	app := handlers.NewApp(fixedSubmitter{}, tryon.NewStatusService(repo.NewMemoryJobRepository()), products, zerolog.Nop())
	return NewRouter(app, Options{
		Logger:       zerolog.Nop(),
		Limiter:      limiter,
		Metrics:      metrics.Handler(),
		StaticDir:    staticDir,
		MaxBodyBytes: 1 << 20,
	})
}

func submit(h http.Handler, clientID string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]any{
		"image":     base64.StdEncoding.EncodeToString([]byte("photo")),
		"productId": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/tryon/submit", bytes.NewReader(body))
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTryOnRoutesRequireIdentity(t *testing.T) {
	h := newTestServer(t, "")
	if rec := submit(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("submit without identity = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/tryon/status", strings.NewReader(`{"jobIds":["a"]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without identity = %d", rec.Code)
	}
}

func TestSubmitIsRateLimitedPerClient(t *testing.T) {
	h := newTestServer(t, "")
	for i := 0; i < 5; i++ {
		if rec := submit(h, "client-a"); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d = %d %s", i+1, rec.Code, rec.Body.String())
		}
	}
	if rec := submit(h, "client-a"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request = %d", rec.Code)
	}
	if rec := submit(h, "client-b"); rec.Code != http.StatusAccepted {
		t.Fatalf("other client = %d", rec.Code)
	}

	// Status polling is not rate limited.
	req := httptest.NewRequest(http.MethodPost, "/v1/tryon/status", strings.NewReader(`{"jobIds":["x"]}`))
	req.Header.Set("X-Client-ID", "client-a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status during embargo = %d", rec.Code)
	}
}

func TestMetricsAndProducts(t *testing.T) {
	h := newTestServer(t, "")
	submit(h, "client-a")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tryon_ratelimit_decisions_total") {
		t.Fatalf("metrics = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("products = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tryon", "result"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tryon", "result", "job.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/tryon/result/job.png", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Fatalf("static = %d %q", rec.Code, rec.Body.String())
	}
}
