package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/tryon"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultActiveWindow = 3 * time.Second
)

// StatusClient is the status endpoint as seen by the poller.
type StatusClient interface {
	Status(ctx context.Context, jobIDs []string) (map[string]tryon.StatusView, error)
}

type PollerOptions struct {
	Interval time.Duration
	Window   time.Duration
	Logger   zerolog.Logger
	// OnUpdate runs after a poll changed the tracked items.
	OnUpdate func(items []Item)
}

// Poller polls pending jobs while an active window is open. The window opens
// on Start and on every Show; Hide suspends polling and Stop ends it.
type Poller struct {
	tracker  *Tracker
	client   StatusClient
	interval time.Duration
	window   time.Duration
	logger   zerolog.Logger
	onUpdate func([]Item)

	mu        sync.Mutex
	visible   bool
	windowEnd time.Time
	wake      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPoller(t *Tracker, client StatusClient, opts PollerOptions) *Poller {
	p := &Poller{
		tracker:  t,
		client:   client,
		interval: opts.Interval,
		window:   opts.Window,
		logger:   opts.Logger,
		onUpdate: opts.OnUpdate,
		wake:     make(chan struct{}, 1),
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.window <= 0 {
		p.window = DefaultActiveWindow
	}
	return p
}

// Start begins polling in the background. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.visible = true
	p.windowEnd = time.Now().Add(p.window)
	done := p.done
	p.mu.Unlock()

	go p.loop(ctx, done)
}

// Show marks the view visible and reopens the active window.
func (p *Poller) Show() {
	p.mu.Lock()
	p.visible = true
	p.windowEnd = time.Now().Add(p.window)
	p.mu.Unlock()
	p.signal()
}

// Hide suspends polling until the next Show.
func (p *Poller) Hide() {
	p.mu.Lock()
	p.visible = false
	p.mu.Unlock()
	p.signal()
}

// Stop ends polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible && time.Now().Before(p.windowEnd)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	armed := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			if armed && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			armed = false
			if p.active() {
				timer.Reset(0)
				armed = true
			}
		case <-timer.C:
			armed = false
			if !p.active() {
				continue
			}
			p.Poll(ctx)
			if p.active() {
				timer.Reset(p.interval)
				armed = true
			}
		}
	}
}

// Poll runs one reconciliation round. It returns false when nothing was pending.
func (p *Poller) Poll(ctx context.Context) bool {
	ids := p.tracker.PendingJobIDs()
	if len(ids) == 0 {
		return false
	}
	if len(ids) > tryon.MaxStatusBatch {
		ids = ids[:tryon.MaxStatusBatch]
	}
	statuses, err := p.client.Status(ctx, ids)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Int("jobs", len(ids)).Msg("tracker: status poll failed")
		}
		return true
	}
	if p.tracker.Reconcile(statuses) && p.onUpdate != nil {
		p.onUpdate(p.tracker.Items())
	}
	return true
}
