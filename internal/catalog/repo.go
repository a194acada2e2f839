package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/petaldesk/florist-backoffice/internal/postgres"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

// Repo is the read-only catalog lookup the orchestrator prices against.
type Repo struct{ DB postgres.DBTX }

func (r *Repo) GetProduct(ctx context.Context, q postgres.DBTX, id string) (Product, error) {
	var p Product
	err := q.QueryRow(ctx, `
		SELECT id, sku, name, base_price, stock, active, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetVariation resolves a variation scoped to its product; a variation id
// paired with the wrong product is treated as not found.
func (r *Repo) GetVariation(ctx context.Context, q postgres.DBTX, id, productID string) (Variation, error) {
	var v Variation
	err := q.QueryRow(ctx, `
		SELECT id, product_id, name, price, stock, active
		FROM product_variations WHERE id=$1 AND product_id=$2`, id, productID).
		Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock, &v.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variation{}, &apperrors.ErrNotFound{Resource: "variation", ID: id}
	}
	if err != nil {
		return Variation{}, err
	}
	return v, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, base_price, stock, active, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
