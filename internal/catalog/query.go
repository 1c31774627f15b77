package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"storefront/internal/domain"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// Sort keys accepted by ProductQuery.Sort.
const (
	SortFeatured  = "featured"
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

// Normalize clamps paging values and lowercases the sort key.
func Normalize(q domain.ProductQuery) domain.ProductQuery {
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	switch q.Sort {
	case SortName, SortPriceAsc, SortPriceDesc, SortNewest:
	default:
		q.Sort = SortFeatured
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Apply filters, sorts and paginates products. The input slice is not modified.
func Apply(products []domain.Product, q domain.ProductQuery) *domain.ProductPage {
	q = Normalize(q)

	matched := make([]domain.Product, 0, len(products))
	search := strings.ToLower(q.Search)
	for _, p := range products {
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Brand), search) {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, q.Sort)

	total := len(matched)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return &domain.ProductPage{
		Items:      matched[start:end],
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

func sortProducts(items []domain.Product, key string) {
	switch key {
	case SortName:
		col := collate.New(language.English, collate.IgnoreCase, collate.IgnoreDiacritics)
		sort.SliceStable(items, func(i, j int) bool {
			return col.CompareString(items[i].Name, items[j].Name) < 0
		})
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price > items[j].Price })
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	}
}
