package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestJobRepositoryMergesWrites(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewJobRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "d-abc123-42", domain.Fields{"status": "a", "productId": 42}, false))
	require.NoError(t, repo.Set(ctx, "d-abc123-42", domain.Fields{"status": "b", "extra": 1}, false))

	rec, err := repo.Get(ctx, "d-abc123-42")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatus("b"), rec.Status)
	assert.Equal(t, 42, rec.ProductID)
	assert.EqualValues(t, 1, rec.Doc["extra"])
	assert.NotZero(t, rec.UpdatedAt)
}

func TestJobRepositoryOverwriteReplacesDocument(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewJobRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "job", domain.Fields{"status": "a", "extra": 1}, false))
	require.NoError(t, repo.Set(ctx, "job", domain.Fields{"status": "c"}, true))

	rec, err := repo.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatus("c"), rec.Status)
	_, ok := rec.Doc["extra"]
	assert.False(t, ok, "overwrite kept stale field")
}

func TestJobRepositoryMissingRecord(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewJobRepository(client, time.Hour)

	_, err := repo.Get(context.Background(), "unknown")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestJobRepositoryAppliesTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewJobRepository(client, time.Hour)

	require.NoError(t, repo.Set(context.Background(), "job", domain.Fields{"status": "a"}, false))
	assert.Equal(t, time.Hour, mr.TTL(jobKeyPrefix+"job"))

	mr.FastForward(2 * time.Hour)
	_, err := repo.Get(context.Background(), "job")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepositoryConcurrentMergesKeepAllFields(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewJobRepository(client, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, repo.Set(ctx, "job", domain.Fields{k: true}, false))
		}(k)
	}
	wg.Wait()

	rec, err := repo.Get(ctx, "job")
	require.NoError(t, err)
	for _, k := range keys {
		assert.Equal(t, true, rec.Doc[k], "field %s lost", k)
	}
}

func TestRateLimitRepositoryRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()

	err := repo.Update(ctx, "client-1", time.Minute, func(rec *domain.RateLimitRecord) (*domain.RateLimitRecord, error) {
		assert.Nil(t, rec)
		return &domain.RateLimitRecord{Count: 1, LastUpdate: 10, EmbargoEndTime: 20}, nil
	})
	require.NoError(t, err)

	err = repo.Update(ctx, "client-1", time.Minute, func(rec *domain.RateLimitRecord) (*domain.RateLimitRecord, error) {
		require.NotNil(t, rec)
		assert.Equal(t, 1, rec.Count)
		assert.EqualValues(t, 20, rec.EmbargoEndTime)
		rec.Count++
		return rec, nil
	})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(rateLimitKeyPrefix+"client-1"))
}

func TestMemoryJobRepositoryMerges(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "job", domain.Fields{"status": "a", "productId": 7}, false))
	require.NoError(t, repo.Set(ctx, "job", domain.Fields{"status": "b"}, false))

	rec, err := repo.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatus("b"), rec.Status)
	assert.Equal(t, 7, rec.ProductID)
}
