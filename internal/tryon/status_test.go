package tryon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/adapter/repo"
	"storefront/internal/domain"
)

func TestCheckStatusesMapsLabels(t *testing.T) {
	jobs := repo.NewMemoryJobRepository()
	ctx := context.Background()
	require.NoError(t, jobs.Set(ctx, "a", domain.Fields{"status": domain.JobStatusCallingOpenAI}, false))
	require.NoError(t, jobs.Set(ctx, "b", domain.Fields{"status": domain.JobStatusCompleted, "url": "https://cdn/r.png"}, false))

	svc := NewStatusService(jobs)
	got, err := svc.CheckStatuses(ctx, []string{"a", "b", "missing", "a", " "})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.DressStatusStitch, got["a"].DressStatus)
	assert.Equal(t, domain.DressStatusReveal, got["b"].DressStatus)
	assert.Equal(t, "https://cdn/r.png", got["b"].ImageURL())
	assert.Equal(t, GoneView(), got["missing"])
}

func TestCheckStatusesBatchBounds(t *testing.T) {
	svc := NewStatusService(repo.NewMemoryJobRepository())

	_, err := svc.CheckStatuses(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	ids := make([]string, MaxStatusBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("job-%d", i)
	}
	_, err = svc.CheckStatuses(context.Background(), ids)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type brokenJobs struct{ repo.MemoryJobRepository }

func (b *brokenJobs) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return nil, errors.New("redis down")
}

func TestCheckStatusesStoreFailure(t *testing.T) {
	svc := NewStatusService(&brokenJobs{})

	_, err := svc.CheckStatuses(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestStatusViewJSONFlattensFields(t *testing.T) {
	view := StatusView{
		Status:      domain.JobStatusCompleted,
		DressStatus: domain.DressStatusReveal,
		Fields:      map[string]any{"url": "u", "status": "stale"},
	}
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"u","status":"completed","dressStatus":"Click To Reveal"}`, string(raw))

	var back StatusView
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, domain.JobStatusCompleted, back.Status)
	assert.Equal(t, "u", back.ImageURL())
}

func TestGoneViewJSON(t *testing.T) {
	raw, err := json.Marshal(GoneView())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Gone","dressStatus":"Gone"}`, string(raw))
}
