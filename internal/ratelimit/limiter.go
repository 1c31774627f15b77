// Package ratelimit gates try-on submissions per client identity.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

const (
	DefaultLimit  = 5
	DefaultWindow = 5 * time.Minute
)

// Decision describes the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	EmbargoEnd time.Time
}

// Options configures a Limiter. Zero values fall back to defaults.
type Options struct {
	Limit   int
	Window  time.Duration
	Sink    observability.Sink
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Limiter is a count-per-window gate with an embargo once the limit is hit.
type Limiter struct {
	repo    domain.RateLimitRepository
	limit   int
	window  time.Duration
	sink    observability.Sink
	metrics *observability.Metrics
	now     func() time.Time
}

func New(repo domain.RateLimitRepository, opts Options) *Limiter {
	l := &Limiter{
		repo:    repo,
		limit:   opts.Limit,
		window:  opts.Window,
		sink:    opts.Sink,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	if l.sink == nil {
		l.sink = observability.NopSink{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Allow consumes one request for clientID. A rejected request returns the
// decision together with a *domain.RateLimitedError.
func (l *Limiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Decision{}, domain.ErrMissingIdentity
	}

	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()

	var (
		decision Decision
		reached  bool
	)
	err := l.repo.Update(ctx, clientID, 2*l.window, func(rec *domain.RateLimitRecord) (*domain.RateLimitRecord, error) {
		reached = false
		switch {
		case rec == nil,
			nowMs-rec.LastUpdate > windowMs,
			rec.Count >= l.limit && nowMs >= rec.EmbargoEndTime:
			rec = &domain.RateLimitRecord{Count: 1, LastUpdate: nowMs, EmbargoEndTime: nowMs + windowMs}
			decision = Decision{Allowed: true, Count: 1}
		case rec.Count < l.limit:
			rec.Count++
			rec.LastUpdate = nowMs
			if rec.Count == l.limit {
				rec.EmbargoEndTime = nowMs + windowMs
				reached = true
			}
			decision = Decision{Allowed: true, Count: rec.Count}
		default:
			rec.LastUpdate = nowMs
			decision = Decision{Allowed: false, Count: rec.Count}
		}
		decision.Remaining = max(l.limit-rec.Count, 0)
		decision.EmbargoEnd = time.UnixMilli(rec.EmbargoEndTime)
		return rec, nil
	})
	if err != nil {
		return Decision{}, err
	}

	if reached {
		l.emit(observability.EventRateLimitReached, clientID, decision)
	}
	if !decision.Allowed {
		l.emit(observability.EventRateLimitRejected, clientID, decision)
		l.count("rejected")
		return decision, &domain.RateLimitedError{EmbargoEnd: decision.EmbargoEnd}
	}
	l.count("allowed")
	return decision, nil
}

func (l *Limiter) emit(name, clientID string, d Decision) {
	l.sink.Emit(observability.Event{
		Name:     name,
		ClientID: clientID,
		Fields: map[string]any{
			"count":          d.Count,
			"embargoEndTime": d.EmbargoEnd.UnixMilli(),
		},
	})
}

func (l *Limiter) count(decision string) {
	if l.metrics != nil {
		l.metrics.RateLimitDecisions.WithLabelValues(decision).Inc()
	}
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) (*domain.RateLimitedError, bool) {
	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
