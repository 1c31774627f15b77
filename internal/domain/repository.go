package domain

import (
	"context"
	"time"
)

// JobRepository persists merge-updated job documents keyed by job id.
type JobRepository interface {
	// Set merges fields onto the stored document, or replaces it when
	// overwrite is true.
	Set(ctx context.Context, jobID string, fields Fields, overwrite bool) error
	// Get returns ErrNotFound when no document exists.
	Get(ctx context.Context, jobID string) (*JobRecord, error)
}

// RateLimitRecord is the persisted state of one client's window.
type RateLimitRecord struct {
	Count          int   `json:"count"`
	LastUpdate     int64 `json:"lastUpdate"`
	EmbargoEndTime int64 `json:"embargoEndTime"`
}

// RateLimitRepository stores rate limit records. Update runs fn atomically
// for one client; rec is nil when no record exists yet.
type RateLimitRepository interface {
	Update(ctx context.Context, clientID string, ttl time.Duration, fn func(rec *RateLimitRecord) (*RateLimitRecord, error)) error
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	Find(ctx context.Context, id int) (*Product, error)
	List(ctx context.Context, q ProductQuery) (*ProductPage, error)
}
