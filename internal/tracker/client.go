package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/tryon"
)

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	StatusCode     int
	Code           string
	Message        string
	EmbargoEndTime int64
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api: http %d", e.StatusCode)
}

// RateLimited reports whether the server rejected the submission for the
// client's embargo.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

type ClientOptions struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

// Client talks to the try-on and catalog endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
}

func NewClient(opts ClientOptions) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{httpClient: hc, baseURL: base, clientID: opts.ClientID}
}

// Submit uploads image for productID and returns the job id.
func (c *Client) Submit(ctx context.Context, image []byte, productID int) (string, error) {
	payload := map[string]any{
		"image":     base64.StdEncoding.EncodeToString(image),
		"imgMD5":    tryon.ContentHash(image),
		"productId": productID,
	}
	var out struct {
		TOIID string `json:"TOIID"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tryon/submit", payload, &out); err != nil {
		return "", err
	}
	if out.TOIID == "" {
		return "", errors.New("api: empty job id")
	}
	return out.TOIID, nil
}

// Status fetches the status of jobIDs.
func (c *Client) Status(ctx context.Context, jobIDs []string) (map[string]tryon.StatusView, error) {
	out := map[string]tryon.StatusView{}
	if err := c.do(ctx, http.MethodPost, "/v1/tryon/status", map[string]any{"jobIds": jobIDs}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Products lists one catalog page.
func (c *Client) Products(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	path := "/v1/products"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var page domain.ProductPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Product fetches one product.
func (c *Client) Product(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, "/v1/products/"+strconv.Itoa(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error struct {
				Code           string `json:"code"`
				Message        string `json:"message"`
				EmbargoEndTime int64  `json:"embargoEndTime"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code = payload.Error.Code
			apiErr.Message = payload.Error.Message
			apiErr.EmbargoEndTime = payload.Error.EmbargoEndTime
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
