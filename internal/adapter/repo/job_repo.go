package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const jobKeyPrefix = "tryon:job:"

// JobRepositoryRedis implements domain.JobRepository on Redis strings holding
// JSON documents.
type JobRepositoryRedis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewJobRepository creates a job repository. ttl <= 0 keeps records forever.
func NewJobRepository(client *redis.Client, ttl time.Duration) *JobRepositoryRedis {
	if ttl < 0 {
		ttl = 0
	}
	return &JobRepositoryRedis{client: client, ttl: ttl, now: time.Now}
}

// Set merges fields onto the stored document, or replaces it when overwrite is true.
func (r *JobRepositoryRedis) Set(ctx context.Context, jobID string, fields domain.Fields, overwrite bool) error {
	key := jobKeyPrefix + jobID
	return watchUpdate(ctx, r.client, key, r.ttl, func(current []byte) ([]byte, error) {
		base := map[string]any{}
		if !overwrite && len(current) > 0 {
			if err := json.Unmarshal(current, &base); err != nil {
				return nil, err
			}
		}
		return json.Marshal(domain.MergeFields(base, fields, r.now()))
	})
}

// Get fetches a job document by id.
func (r *JobRepositoryRedis) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	raw, err := r.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return domain.DecodeJobRecord(raw)
}

var _ domain.JobRepository = (*JobRepositoryRedis)(nil)
