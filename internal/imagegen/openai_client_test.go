package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func threeImages() []SourceImage {
	return []SourceImage{
		{Data: []byte("front"), MIMEType: "image/jpeg", Name: "front.jpg"},
		{Data: []byte("back"), MIMEType: "image/jpeg", Name: "back.jpg"},
		{Data: []byte("user"), Name: "user.png"},
	}
}

func TestOpenAIClientEdit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/edits" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := len(r.MultipartForm.File["image[]"]); got != 3 {
			t.Errorf("expected 3 images, got %d", got)
		}
		if got := r.FormValue("size"); got != SizeSquare {
			t.Errorf("unexpected size: %s", got)
		}
		if got := r.FormValue("model"); got != "gpt-image-1" {
			t.Errorf("unexpected model: %s", got)
		}
		if got := r.FormValue("prompt"); got != "combine" {
			t.Errorf("unexpected prompt: %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": "aGVsbG8="}},
		})
	}))
	defer ts.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "test-key", BaseURL: ts.URL})
	resp, err := client.Edit(context.Background(), EditRequest{Images: threeImages(), Prompt: "combine"})
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].B64JSON != "aGVsbG8=" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOpenAIClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"b64_json": "eA=="}}})
	}))
	defer ts.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: ts.URL, MaxRetries: 2, InitialBackoff: time.Millisecond})
	if _, err := client.Edit(context.Background(), EditRequest{Images: threeImages(), Prompt: "p"}); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestOpenAIClientStopsAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: ts.URL, MaxRetries: 2, InitialBackoff: time.Millisecond})
	if _, err := client.Edit(context.Background(), EditRequest{Images: threeImages(), Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestOpenAIClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid image","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: ts.URL, MaxRetries: 2, InitialBackoff: time.Millisecond})
	_, err := client.Edit(context.Background(), EditRequest{Images: threeImages(), Prompt: "p"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Message != "invalid image" {
		t.Fatalf("unexpected error: %+v", se)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestOpenAIClientMissingKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIOptions{})
	if _, err := client.Edit(context.Background(), EditRequest{Images: threeImages(), Prompt: "p"}); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}
