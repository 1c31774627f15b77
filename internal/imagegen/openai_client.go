package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const maxErrorBody = 64 << 10

type OpenAIOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	// Timeout bounds the whole call including retries.
	Timeout    time.Duration
	MaxRetries int
	// RPS throttles outbound calls across goroutines; <= 0 disables it.
	RPS float64
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
}

// OpenAIClient calls the /images/edits endpoint with several input images.
// The go-openai client only sends one image per edit, so the multipart body
// is built here and the response decoded into go-openai's types.
type OpenAIClient struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	model          string
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	limiter        *rate.Limiter
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = 2 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &OpenAIClient{
		httpClient:     client,
		baseURL:        base,
		token:          strings.TrimSpace(opts.APIKey),
		model:          model,
		timeout:        timeout,
		maxRetries:     retries,
		initialBackoff: initial,
		limiter:        limiter,
	}
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: http %d", e.StatusCode)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Edit sends one edit request, retrying transient failures up to MaxRetries.
func (c *OpenAIClient) Edit(ctx context.Context, req EditRequest) (*openai.ImageResponse, error) {
	if c == nil {
		return nil, errors.New("openai client not configured")
	}
	if c.token == "" {
		return nil, errors.New("openai: API key is missing")
	}
	if len(req.Images) == 0 {
		return nil, errors.New("openai: at least one image is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("openai: prompt is required")
	}
	if req.Size == "" {
		req.Size = SizeSquare
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff

	return backoff.Retry(ctx, func() (*openai.ImageResponse, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		resp, err := c.editOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
}

func (c *OpenAIClient) editOnce(ctx context.Context, req EditRequest) (*openai.ImageResponse, error) {
	body, contentType, err := c.encode(req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{StatusCode: resp.StatusCode}
		var apiErr openai.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
			se.Message = apiErr.Error.Message
		}
		return nil, se
	}

	var out openai.ImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	return &out, nil
}

func (c *OpenAIClient) encode(req EditRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			return nil, "", fmt.Errorf("openai: image %d is empty", i+1)
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image-%d.png", i+1)
		}
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, name))
		h.Set("Content-Type", mime)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}
	fields := [][2]string{
		{"model", c.model},
		{"prompt", req.Prompt},
		{"size", req.Size},
		{"n", "1"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var _ Editor = (*OpenAIClient)(nil)
