// Package pricing holds the pure monetary policy for carts: unit
// prices, line totals, tax, and threshold shipping. All amounts are
// integer cents; tax rates are basis points. No I/O happens here;
// configuration is fetched by callers and passed in.
package pricing

import (
	"context"

	"github.com/spoolworks/atelier/internal/domain"
)

// ShippingRule is the threshold shipping policy: orders at or above
// the threshold ship free, everything else pays the flat fee.
type ShippingRule struct {
	FreeThresholdCents int64
	FlatFeeCents       int64
}

// Cost returns the shipping cost in cents for a given subtotal.
func (r ShippingRule) Cost(subtotalCents int64) int64 {
	if subtotalCents >= r.FreeThresholdCents {
		return 0
	}
	return r.FlatFeeCents
}

// Config supplies the current pricing configuration. Values are read
// fresh at computation time, never cached across requests, so rate or
// threshold changes take effect on the next mutation.
type Config interface {
	// TaxRateBps returns the current tax rate in basis points
	// (e.g., 1000 for 10%).
	TaxRateBps(ctx context.Context) (int64, error)

	// Shipping returns the current threshold shipping rule.
	Shipping(ctx context.Context) (ShippingRule, error)

	// CustomizationSurchargeCents returns the flat add-on applied to
	// any line carrying a customization.
	CustomizationSurchargeCents(ctx context.Context) (int64, error)
}

// UnitPrice computes the captured unit price for a line: product base
// price plus the variant delta (zero when no variant is selected).
func UnitPrice(basePriceCents, variantDeltaCents int64) int64 {
	return basePriceCents + variantDeltaCents
}

// LineTotal computes (unit price + surcharge) * quantity.
func LineTotal(unitPriceCents, surchargeCents int64, quantity int32) int64 {
	return (unitPriceCents + surchargeCents) * int64(quantity)
}

// Totals is the derived monetary state of a cart.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Tax computes tax on a subtotal at a basis-point rate, truncating
// fractional cents toward zero.
func Tax(subtotalCents, rateBps int64) int64 {
	return subtotalCents * rateBps / 10_000
}

// CartTotals recomputes all derived totals from the line items. Line
// totals are trusted as stored (they are themselves recomputed by the
// aggregate on every quantity change).
func CartTotals(items []domain.CartItem, taxRateBps int64, shipping ShippingRule, discountCents int64) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotalCents
	}

	var shippingCents int64
	if subtotal > 0 {
		shippingCents = shipping.Cost(subtotal)
	}

	tax := Tax(subtotal, taxRateBps)

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		ShippingCents: shippingCents,
		DiscountCents: discountCents,
		TotalCents:    subtotal + tax + shippingCents - discountCents,
	}
}
