package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
)

var _ domain.CustomizationStore = (*Store)(nil)

// CreateCustomization inserts a customization record.
func (s *Store) CreateCustomization(ctx context.Context, c *domain.Customization) error {
	const op = "repository.customization.create"

	err := s.pool.QueryRow(ctx, `
		INSERT INTO customizations
			(id, user_id, product_id, variant_id, design_id, color_hex,
			 notes, preview_key, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		c.ID, c.UserID, c.ProductID, c.VariantID, c.DesignID, c.ColorHex,
		c.Notes, c.PreviewKey, c.Completed,
	).Scan(&c.CreatedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to create customization")
	}

	return nil
}

// GetCustomization returns a customization by id.
func (s *Store) GetCustomization(ctx context.Context, id pgtype.UUID) (*domain.Customization, error) {
	var c domain.Customization
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, product_id, variant_id, design_id, color_hex,
		       notes, preview_key, completed, created_at
		FROM customizations
		WHERE id = $1`,
		id,
	).Scan(
		&c.ID, &c.UserID, &c.ProductID, &c.VariantID, &c.DesignID, &c.ColorHex,
		&c.Notes, &c.PreviewKey, &c.Completed, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomizationNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "repository.customization.get", "failed to load customization")
	}

	return &c, nil
}

// DeleteCustomization removes a customization record. Deleting an
// absent record is not an error.
func (s *Store) DeleteCustomization(ctx context.Context, id pgtype.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM customizations WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "repository.customization.delete", "failed to delete customization")
	}
	return nil
}
