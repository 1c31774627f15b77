package domain

// Product is a catalog entry. Images[0] is the front reference shot and
// Images[1] the back one.
type Product struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images"`
}

// ReferenceImages returns the front and back shots used for try-on.
func (p *Product) ReferenceImages() (front, back string, ok bool) {
	if p == nil || len(p.Images) < 2 {
		return "", "", false
	}
	if p.Images[0] == "" || p.Images[1] == "" {
		return "", "", false
	}
	return p.Images[0], p.Images[1], true
}

// ProductQuery filters and paginates the catalog.
type ProductQuery struct {
	Category string
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// ProductPage is a single page of catalog results.
type ProductPage struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}
