package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"storefront/internal/infra"
	"storefront/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
)

// OpenAICredential is the stored key plus optional overrides kept in the
// token properties.
type OpenAICredential struct {
	APIKey string
	Model  string
}

// Store reads and writes provider API keys kept in Postgres. The worker uses
// it when OPENAI_API_KEY is not set in the environment.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// OpenAI returns the stored credential, or an empty one when nothing is stored.
func (s *Store) OpenAI(ctx context.Context) (OpenAICredential, error) {
	token, props, err := s.token(ctx, ProviderOpenAI)
	if err != nil {
		return OpenAICredential{}, err
	}
	cred := OpenAICredential{APIKey: token}
	if model, ok := props["model"].(string); ok {
		cred.Model = strings.TrimSpace(model)
	}
	return cred, nil
}

// SetOpenAI stores the OpenAI key and optional model override.
func (s *Store) SetOpenAI(ctx context.Context, key, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("openai api key is required")
	}
	props := map[string]any{}
	if model = strings.TrimSpace(model); model != "" {
		props["model"] = model
	}
	return s.upsert(ctx, ProviderOpenAI, key, props)
}

func (s *Store) token(ctx context.Context, provider string) (string, map[string]any, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	var raw []byte
	if err := row.Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	props := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return "", nil, err
		}
	}
	return strings.TrimSpace(token), props, nil
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
