package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names emitted by the service.
const (
	EventRateLimitReached  = "ratelimit.limit_reached"
	EventRateLimitRejected = "ratelimit.rejected"
	EventJobFailed         = "tryon.job_failed"
)

// Event is a best-effort analytics record.
type Event struct {
	Name     string
	ClientID string
	Fields   map[string]any
	At       time.Time
}

// Sink accepts events without blocking the caller.
type Sink interface {
	Emit(Event)
}

// Backend persists a single event.
type Backend interface {
	Record(ctx context.Context, ev Event) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// AsyncSink fans events out to backends from a single goroutine. When the
// buffer is full or the sink is closed the event is dropped.
type AsyncSink struct {
	events   chan Event
	backends []Backend
	logger   zerolog.Logger
	metrics  *Metrics
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the delivery goroutine. metrics may be nil.
func NewAsyncSink(logger zerolog.Logger, metrics *Metrics, buffer int, backends ...Backend) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		events:   make(chan Event, buffer),
		backends: backends,
		logger:   logger,
		metrics:  metrics,
		timeout:  5 * time.Second,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ev, "observability sink closed, event dropped")
		return
	}
	select {
	case s.events <- ev:
	default:
		s.drop(ev, "observability buffer full, event dropped")
	}
}

func (s *AsyncSink) drop(ev Event, msg string) {
	if s.metrics != nil {
		s.metrics.EventsDropped.Inc()
	}
	s.logger.Warn().Str("event", ev.Name).Msg(msg)
}

// Close stops accepting events and waits until the buffer is drained. Later
// Emit calls are dropped.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.events {
		for _, b := range s.backends {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			if err := b.Record(ctx, ev); err != nil {
				s.logger.Warn().Err(err).Str("event", ev.Name).Msg("observability backend failed")
			}
			cancel()
		}
	}
}

// LogBackend writes events to a zerolog logger.
type LogBackend struct {
	Logger zerolog.Logger
}

func (b LogBackend) Record(ctx context.Context, ev Event) error {
	entry := b.Logger.Info().Str("event", ev.Name).Time("at", ev.At)
	if ev.ClientID != "" {
		entry = entry.Str("client_id", ev.ClientID)
	}
	entry.Fields(ev.Fields).Msg("event")
	return nil
}

// MetricsBackend counts events by name.
type MetricsBackend struct {
	Metrics *Metrics
}

func (b MetricsBackend) Record(ctx context.Context, ev Event) error {
	b.Metrics.Events.WithLabelValues(ev.Name).Inc()
	return nil
}
