package repository

import (
	"context"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/pricing"
)

var _ pricing.Config = (*Store)(nil)

// Pricing configuration lives in a single-row table and is read fresh
// on every call so rate and threshold changes apply to the next
// computation without a restart.

// TaxRateBps returns the current tax rate in basis points.
func (s *Store) TaxRateBps(ctx context.Context) (int64, error) {
	var bps int64
	err := s.pool.QueryRow(ctx, `SELECT tax_rate_bps FROM pricing_config WHERE id`).Scan(&bps)
	if err != nil {
		return 0, domain.Internal(err, "repository.pricing.tax_rate", "failed to load tax rate")
	}
	return bps, nil
}

// Shipping returns the current threshold shipping rule.
func (s *Store) Shipping(ctx context.Context) (pricing.ShippingRule, error) {
	var rule pricing.ShippingRule
	err := s.pool.QueryRow(ctx, `
		SELECT free_shipping_threshold_cents, shipping_fee_cents
		FROM pricing_config
		WHERE id`,
	).Scan(&rule.FreeThresholdCents, &rule.FlatFeeCents)
	if err != nil {
		return pricing.ShippingRule{}, domain.Internal(err, "repository.pricing.shipping", "failed to load shipping rule")
	}
	return rule, nil
}

// CustomizationSurchargeCents returns the flat customization add-on.
func (s *Store) CustomizationSurchargeCents(ctx context.Context) (int64, error) {
	var cents int64
	err := s.pool.QueryRow(ctx, `SELECT customization_surcharge_cents FROM pricing_config WHERE id`).Scan(&cents)
	if err != nil {
		return 0, domain.Internal(err, "repository.pricing.surcharge", "failed to load customization surcharge")
	}
	return cents, nil
}
