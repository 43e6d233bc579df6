package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
)

var _ domain.CartStore = (*Store)(nil)

// LoadByUser returns the user's cart with its lines, or
// domain.ErrCartNotFound when the user has no cart yet.
func (s *Store) LoadByUser(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	const op = "repository.cart.load"

	var c domain.Cart
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, subtotal_cents, tax_cents, shipping_cents,
		       discount_cents, total_cents, tax_rate_bps, expires_at,
		       created_at, updated_at
		FROM carts
		WHERE user_id = $1`,
		userID,
	).Scan(
		&c.ID, &c.UserID, &c.SubtotalCents, &c.TaxCents, &c.ShippingCents,
		&c.DiscountCents, &c.TotalCents, &c.TaxRateBps, &c.ExpiresAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, variant_id, customization_id, quantity,
		       unit_price_cents, surcharge_cents, line_total_cents
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at`,
		c.ID,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.VariantID, &item.CustomizationID,
			&item.Quantity, &item.UnitPriceCents, &item.SurchargeCents, &item.LineTotalCents,
		); err != nil {
			return nil, domain.Internal(err, op, "failed to scan cart item")
		}
		c.Items = append(c.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read cart items")
	}

	return &c, nil
}

// Create inserts an empty cart for the user. The unlocked read paths
// can race on a user's first access, so a concurrent insert is not an
// error: the loser of the race returns the row the winner created.
func (s *Store) Create(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	const op = "repository.cart.create"

	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}

	var c domain.Cart
	err := s.pool.QueryRow(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, user_id, subtotal_cents, tax_cents, shipping_cents,
		          discount_cents, total_cents, tax_rate_bps, expires_at,
		          created_at, updated_at`,
		id, userID,
	).Scan(
		&c.ID, &c.UserID, &c.SubtotalCents, &c.TaxCents, &c.ShippingCents,
		&c.DiscountCents, &c.TotalCents, &c.TaxRateBps, &c.ExpiresAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.LoadByUser(ctx, userID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create cart")
	}

	return &c, nil
}

// Save upserts the cart row and replaces its lines in one transaction.
func (s *Store) Save(ctx context.Context, c *domain.Cart) error {
	const op = "repository.cart.save"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE carts
		SET subtotal_cents = $2, tax_cents = $3, shipping_cents = $4,
		    discount_cents = $5, total_cents = $6, tax_rate_bps = $7,
		    expires_at = $8, updated_at = now()
		WHERE id = $1`,
		c.ID, c.SubtotalCents, c.TaxCents, c.ShippingCents,
		c.DiscountCents, c.TotalCents, c.TaxRateBps, c.ExpiresAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update cart")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return domain.Internal(err, op, "failed to clear cart items")
	}

	batch := &pgx.Batch{}
	for _, item := range c.Items {
		batch.Queue(`
			INSERT INTO cart_items
				(id, cart_id, product_id, variant_id, customization_id,
				 quantity, unit_price_cents, surcharge_cents, line_total_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, c.ID, item.ProductID, item.VariantID, item.CustomizationID,
			item.Quantity, item.UnitPriceCents, item.SurchargeCents, item.LineTotalCents,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return domain.Internal(err, op, "failed to insert cart items")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, op, "failed to commit cart save")
	}

	return nil
}
