package repo

import (
	"context"

	"storefront/internal/catalog"
	"storefront/internal/domain"
	"storefront/internal/infra"
	"storefront/internal/sqlinline"
)

// ProductRepositoryPG reads the catalog from the products table.
type ProductRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewProductRepository(sql infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{sql: sql}
}

func (r *ProductRepositoryPG) Find(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	err := r.sql.QueryRow(ctx, sqlinline.QSelectProductByID, id).Scan(
		&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Currency, &p.Description, &p.Images,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepositoryPG) List(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	q = catalog.Normalize(q)
	rows, err := r.sql.Query(ctx, sqlinline.QListProducts, q.Category, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Currency, &p.Description, &p.Images); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog.Apply(products, q), nil
}

var _ domain.ProductRepository = (*ProductRepositoryPG)(nil)
