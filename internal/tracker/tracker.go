// Package tracker keeps the client's list of submitted try-on jobs and
// reconciles it with the status service.
package tracker

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/tryon"
)

const (
	ItemsKey       = "tryon-items"
	SourceImageKey = "tryon-source-image"
	MaxItemAge     = 24 * time.Hour
)

// Item is one tracked try-on, at most one per product.
type Item struct {
	ProductID   int                `json:"productId"`
	ProductName string             `json:"productName"`
	Timestamp   time.Time          `json:"timestamp"`
	Status      domain.JobStatus   `json:"status"`
	JobID       string             `json:"jobId,omitempty"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	DressStatus domain.DressStatus `json:"dressStatus,omitempty"`
}

// Pending reports whether the item still waits for a server-side outcome.
func (it Item) Pending() bool {
	return it.JobID != "" && !it.Status.Terminal()
}

// Tracker owns the in-memory item list and mirrors it to a BudgetStore.
// Persistence failures are logged and never block the caller.
type Tracker struct {
	store  *BudgetStore
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	items  []Item
	source []byte // session copy of the source image
}

func New(store *BudgetStore, logger zerolog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// NewWithStorage wraps backend in a BudgetStore with the default budget.
func NewWithStorage(backend Storage, logger zerolog.Logger) *Tracker {
	return New(NewBudgetStore(backend, DefaultBudget, ItemsKey, SourceImageKey), logger)
}

// Load reads the persisted list, drops expired items, keeps the newest item
// per product, sorts newest first and writes the result back.
func (t *Tracker) Load() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stored []Item
	raw, err := t.store.Get(ItemsKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		t.logger.Warn().Err(err).Msg("tracker: read items failed")
	default:
		if err := json.Unmarshal(raw, &stored); err != nil {
			t.logger.Warn().Err(err).Msg("tracker: discarding unreadable items")
			stored = nil
		}
	}
	t.items = normalize(stored, t.now())
	t.persistLocked()
	return t.snapshotLocked()
}

// Items returns a copy of the current list.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Add inserts item, replacing any existing item for the same product.
func (t *Tracker) Add(item Item) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if item.Timestamp.IsZero() {
		item.Timestamp = t.now()
	}
	if item.DressStatus == "" && item.Status != "" {
		item.DressStatus = item.Status.DressStatus()
	}
	kept := t.items[:0]
	for _, it := range t.items {
		if it.ProductID != item.ProductID {
			kept = append(kept, it)
		}
	}
	t.items = normalize(append(kept, item), t.now())
	t.persistLocked()
}

// Remove drops the item for productID. It reports whether one existed.
func (t *Tracker) Remove(productID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := false
	kept := t.items[:0]
	for _, it := range t.items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	t.items = kept
	if removed {
		t.persistLocked()
	}
	return removed
}

// PendingJobIDs lists job ids that still need polling.
func (t *Tracker) PendingJobIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, it := range t.items {
		if it.Pending() {
			ids = append(ids, it.JobID)
		}
	}
	return ids
}

// Reconcile overwrites matching items with server state. Items without a
// server entry are left untouched. It reports whether anything changed.
func (t *Tracker) Reconcile(statuses map[string]tryon.StatusView) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	for i, it := range t.items {
		if it.JobID == "" {
			continue
		}
		view, ok := statuses[it.JobID]
		if !ok {
			continue
		}
		next := it
		next.Status = view.Status
		next.DressStatus = view.DressStatus
		if u := view.ImageURL(); u != "" {
			next.ImageURL = u
		}
		if next != it {
			t.items[i] = next
			changed = true
		}
	}
	if changed {
		t.persistLocked()
	}
	return changed
}

// SetSourceImage stores the single source photo slot. A session copy is
// always kept, so the photo survives for this session even when storage
// cannot hold it or later evicts it.
func (t *Tracker) SetSourceImage(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = append([]byte(nil), data...)
	if err := t.store.Set(SourceImageKey, data); err != nil {
		t.logger.Warn().Err(err).Int("bytes", len(data)).Msg("tracker: source image kept in memory only")
		_ = t.store.Delete(SourceImageKey)
	}
}

// SourceImage returns the current source photo, if any.
func (t *Tracker) SourceImage() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source != nil {
		return append([]byte(nil), t.source...), true
	}
	data, err := t.store.Get(SourceImageKey)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (t *Tracker) snapshotLocked() []Item {
	return append([]Item(nil), t.items...)
}

func (t *Tracker) persistLocked() {
	t.items = normalize(t.items, t.now())
	raw, err := json.Marshal(t.items)
	if err != nil {
		t.logger.Warn().Err(err).Msg("tracker: encode items failed")
		return
	}
	if err := t.store.Set(ItemsKey, raw); err != nil {
		t.logger.Warn().Err(err).Msg("tracker: persist items failed")
	}
}

// normalize drops items older than MaxItemAge, keeps the newest item per
// product and sorts newest first.
func normalize(items []Item, now time.Time) []Item {
	cutoff := now.Add(-MaxItemAge)
	newest := make(map[int]Item, len(items))
	for _, it := range items {
		if it.Timestamp.Before(cutoff) {
			continue
		}
		if cur, ok := newest[it.ProductID]; ok && !it.Timestamp.After(cur.Timestamp) {
			continue
		}
		newest[it.ProductID] = it
	}
	out := make([]Item, 0, len(newest))
	for _, it := range newest {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
