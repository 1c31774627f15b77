package repo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storefront/internal/domain"
)

// MemoryJobRepository keeps job documents in process memory. Used by tests
// and single-process local runs.
type MemoryJobRepository struct {
	mu   sync.Mutex
	docs map[string][]byte
	now  func() time.Time
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{docs: make(map[string][]byte), now: time.Now}
}

func (r *MemoryJobRepository) Set(ctx context.Context, jobID string, fields domain.Fields, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	base := map[string]any{}
	if current, ok := r.docs[jobID]; ok && !overwrite {
		if err := json.Unmarshal(current, &base); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(domain.MergeFields(base, fields, r.now()))
	if err != nil {
		return err
	}
	r.docs[jobID] = raw
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	raw, ok := r.docs[jobID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return domain.DecodeJobRecord(raw)
}

// MemoryRateLimitRepository keeps rate limit records in process memory.
// Records never expire; the limiter resets stale ones itself.
type MemoryRateLimitRepository struct {
	mu      sync.Mutex
	records map[string]domain.RateLimitRecord
}

func NewMemoryRateLimitRepository() *MemoryRateLimitRepository {
	return &MemoryRateLimitRepository{records: make(map[string]domain.RateLimitRecord)}
}

func (r *MemoryRateLimitRepository) Update(ctx context.Context, clientID string, ttl time.Duration, fn func(rec *domain.RateLimitRecord) (*domain.RateLimitRecord, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *domain.RateLimitRecord
	if rec, ok := r.records[clientID]; ok {
		current = &rec
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		r.records[clientID] = *next
	}
	return nil
}

var (
	_ domain.JobRepository       = (*MemoryJobRepository)(nil)
	_ domain.RateLimitRepository = (*MemoryRateLimitRepository)(nil)
)
