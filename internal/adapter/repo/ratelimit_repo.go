package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const rateLimitKeyPrefix = "tryon:ratelimit:"

// RateLimitRepositoryRedis stores rate limit records per client identity.
type RateLimitRepositoryRedis struct {
	client *redis.Client
}

func NewRateLimitRepository(client *redis.Client) *RateLimitRepositoryRedis {
	return &RateLimitRepositoryRedis{client: client}
}

// Update runs fn atomically for clientID and stores the returned record with ttl.
func (r *RateLimitRepositoryRedis) Update(ctx context.Context, clientID string, ttl time.Duration, fn func(rec *domain.RateLimitRecord) (*domain.RateLimitRecord, error)) error {
	return watchUpdate(ctx, r.client, rateLimitKeyPrefix+clientID, ttl, func(current []byte) ([]byte, error) {
		var rec *domain.RateLimitRecord
		if len(current) > 0 {
			rec = &domain.RateLimitRecord{}
			if err := json.Unmarshal(current, rec); err != nil {
				return nil, err
			}
		}
		next, err := fn(rec)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
}

var _ domain.RateLimitRepository = (*RateLimitRepositoryRedis)(nil)
