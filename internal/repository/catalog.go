package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
)

var _ domain.CatalogStore = (*Store)(nil)

// FindProduct returns a product by id.
func (s *Store) FindProduct(ctx context.Context, id pgtype.UUID) (*domain.Product, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, slug, base_price_cents, active
		FROM products
		WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.BasePriceCents, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "repository.catalog.product", "failed to load product")
	}

	return &p, nil
}

// FindVariant returns a variant by id.
func (s *Store) FindVariant(ctx context.Context, id pgtype.UUID) (*domain.Variant, error) {
	var v domain.Variant
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, sku, name, price_delta_cents, active, in_stock
		FROM product_variants
		WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.PriceDeltaCents, &v.Active, &v.InStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVariantNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "repository.catalog.variant", "failed to load variant")
	}

	return &v, nil
}

// FindDesign returns a design by id.
func (s *Store) FindDesign(ctx context.Context, id pgtype.UUID) (*domain.Design, error) {
	var d domain.Design
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM designs
		WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDesignNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "repository.catalog.design", "failed to load design")
	}

	return &d, nil
}
