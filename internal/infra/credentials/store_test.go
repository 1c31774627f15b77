package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	props []byte
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, props: s.props, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	props []byte
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 2 {
		return errors.New("unexpected dest count")
	}
	tokenPtr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid token dest")
	}
	propsPtr, ok := dest[1].(*[]byte)
	if !ok {
		return errors.New("invalid props dest")
	}
	*tokenPtr = r.token
	*propsPtr = r.props
	return nil
}

func TestOpenAICredential(t *testing.T) {
	store := NewStore(&stubExecutor{token: " sk-test ", props: []byte(`{"model":" gpt-image-1 "}`)})
	cred, err := store.OpenAI(context.Background())
	if err != nil {
		t.Fatalf("OpenAI error: %v", err)
	}
	if cred.APIKey != "sk-test" {
		t.Fatalf("APIKey = %q, want sk-test", cred.APIKey)
	}
	if cred.Model != "gpt-image-1" {
		t.Fatalf("Model = %q, want gpt-image-1", cred.Model)
	}
}

func TestOpenAICredential_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	cred, err := store.OpenAI(context.Background())
	if err != nil {
		t.Fatalf("OpenAI error: %v", err)
	}
	if cred.APIKey != "" {
		t.Fatalf("expected empty key, got %q", cred.APIKey)
	}
}

func TestOpenAICredential_QueryError(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("connection refused")})
	if _, err := store.OpenAI(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetOpenAI(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetOpenAI(context.Background(), "secret", "gpt-image-1"); err != nil {
		t.Fatalf("SetOpenAI error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	raw, ok := exec.exec.args[2].([]byte)
	if !ok {
		t.Fatalf("expected json properties, got %T", exec.exec.args[2])
	}
	var props map[string]string
	if err := json.Unmarshal(raw, &props); err != nil {
		t.Fatalf("decode properties: %v", err)
	}
	if props["model"] != "gpt-image-1" {
		t.Fatalf("model property = %q", props["model"])
	}
}

func TestSetOpenAIEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetOpenAI(context.Background(), " ", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
