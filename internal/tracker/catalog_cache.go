package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/catalog"
	"storefront/internal/domain"
)

const catalogKeyPrefix = "catalog:"

// Signature is the cache key of a catalog query. Queries that normalize to
// the same filters share a signature.
func Signature(q domain.ProductQuery) string {
	q = catalog.Normalize(q)
	return fmt.Sprintf("c=%s|q=%s|s=%s|p=%d|n=%d",
		strings.ToLower(q.Category), strings.ToLower(q.Search), q.Sort, q.Page, q.PageSize)
}

// CatalogCache caches catalog pages by filter signature on top of the
// budgeted store, so pages are the first thing evicted under pressure.
type CatalogCache struct {
	store *BudgetStore

	mu   sync.Mutex
	keys map[string]struct{}
}

func NewCatalogCache(store *BudgetStore) *CatalogCache {
	return &CatalogCache{store: store, keys: map[string]struct{}{}}
}

func (c *CatalogCache) Get(q domain.ProductQuery) (*domain.ProductPage, bool) {
	raw, err := c.store.Get(catalogKeyPrefix + Signature(q))
	if err != nil {
		return nil, false
	}
	var page domain.ProductPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

// Put stores page. A page that does not fit the budget is simply not cached.
func (c *CatalogCache) Put(q domain.ProductQuery, page *domain.ProductPage) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	key := catalogKeyPrefix + Signature(q)
	if err := c.store.Set(key, raw); err != nil {
		return
	}
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
}

// Fetch returns the cached page or loads and caches it.
func (c *CatalogCache) Fetch(ctx context.Context, q domain.ProductQuery, load func(context.Context, domain.ProductQuery) (*domain.ProductPage, error)) (*domain.ProductPage, error) {
	if page, ok := c.Get(q); ok {
		return page, nil
	}
	page, err := load(ctx, q)
	if err != nil {
		return nil, err
	}
	c.Put(q, page)
	return page, nil
}

// Invalidate drops every cached page.
func (c *CatalogCache) Invalidate() {
	sizes, err := c.store.Sizes()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		for k := range sizes {
			if strings.HasPrefix(k, catalogKeyPrefix) {
				c.keys[k] = struct{}{}
			}
		}
	}
	for k := range c.keys {
		_ = c.store.Delete(k)
	}
	c.keys = map[string]struct{}{}
}
