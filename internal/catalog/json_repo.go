package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"storefront/internal/domain"
)

//go:embed products.json
var embeddedProducts []byte

// JSONRepository serves the catalog from a JSON document loaded at startup.
type JSONRepository struct {
	products []domain.Product
	byID     map[int]int
}

// NewJSONRepository parses a JSON array of products.
func NewJSONRepository(raw []byte) (*JSONRepository, error) {
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode products: %w", err)
	}
	byID := make(map[int]int, len(products))
	for i, p := range products {
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %d", p.ID)
		}
		byID[p.ID] = i
	}
	return &JSONRepository{products: products, byID: byID}, nil
}

// LoadJSONRepository reads path, or the embedded sample catalog when path is empty.
func LoadJSONRepository(path string) (*JSONRepository, error) {
	if path == "" {
		return NewJSONRepository(embeddedProducts)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return NewJSONRepository(raw)
}

func (r *JSONRepository) Find(ctx context.Context, id int) (*domain.Product, error) {
	idx, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := r.products[idx]
	return &p, nil
}

func (r *JSONRepository) List(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	return Apply(r.products, q), nil
}

var _ domain.ProductRepository = (*JSONRepository)(nil)
