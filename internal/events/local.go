package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrBusClosed is returned by Dispatch after Close.
var ErrBusClosed = errors.New("events: bus closed")

// LocalBus runs the handler in-process, bounded by a concurrency limit.
type LocalBus struct {
	handler Handler
	logger  zerolog.Logger
	sem     chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalBus(handler Handler, concurrency int, logger zerolog.Logger) *LocalBus {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LocalBus{handler: handler, logger: logger, sem: make(chan struct{}, concurrency)}
}

// Dispatch returns once the event is accepted; the handler runs detached from
// the caller's cancellation.
func (b *LocalBus) Dispatch(ctx context.Context, ev ImageProcess) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	b.wg.Add(1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer b.wg.Done()
		b.sem <- struct{}{}
		defer func() { <-b.sem }()
		if err := b.handler(runCtx, ev); err != nil {
			b.logger.Error().Err(err).Str("job_id", ev.JobID).Msg("local event handler failed")
		}
	}()
	return nil
}

// Close rejects new events and waits for running handlers.
func (b *LocalBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
