package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrMissingIdentity = errors.New("missing client identity")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrPreprocessing   = errors.New("preprocessing failed")
	ErrProcessing      = errors.New("processing failed")
	ErrUpstream        = errors.New("upstream service failure")
)

// RateLimitedError is returned when a client is inside its embargo window.
type RateLimitedError struct {
	EmbargoEnd time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.EmbargoEnd.UTC().Format(time.RFC3339))
}

// EmbargoEndMillis returns the embargo end as epoch milliseconds.
func (e *RateLimitedError) EmbargoEndMillis() int64 {
	return e.EmbargoEnd.UnixMilli()
}
