// Package cart implements the in-memory cart aggregate: line
// merge/dedup, quantity rules, and derived-total recomputation. It
// performs no I/O; the service layer owns locking and persistence.
package cart

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/pricing"
)

// AddItem merges item into an existing line when the dedup rule allows
// it (same product and variant, neither line customized), otherwise
// appends a new line. The merged line keeps its originally captured
// unit price. Returns the affected line.
func AddItem(c *domain.Cart, item domain.CartItem) *domain.CartItem {
	if !item.Customized() {
		for i := range c.Items {
			line := &c.Items[i]
			if line.SameLine(&item) {
				line.Quantity += item.Quantity
				line.LineTotalCents = pricing.LineTotal(line.UnitPriceCents, line.SurchargeCents, line.Quantity)
				return line
			}
		}
	}

	if !item.ID.Valid {
		item.ID = newID()
	}
	item.LineTotalCents = pricing.LineTotal(item.UnitPriceCents, item.SurchargeCents, item.Quantity)
	c.Items = append(c.Items, item)
	return &c.Items[len(c.Items)-1]
}

// UpdateQuantity sets the quantity of an existing line and recomputes
// its line total. Rejects non-positive quantities.
func UpdateQuantity(c *domain.Cart, itemID pgtype.UUID, quantity int32) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	line := find(c, itemID)
	if line == nil {
		return nil, domain.ErrCartItemNotFound
	}

	line.Quantity = quantity
	line.LineTotalCents = pricing.LineTotal(line.UnitPriceCents, line.SurchargeCents, line.Quantity)
	return line, nil
}

// RemoveItem deletes a line and returns a copy of it so the caller can
// cascade customization cleanup.
func RemoveItem(c *domain.Cart, itemID pgtype.UUID) (domain.CartItem, error) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			removed := c.Items[i]
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return removed, nil
		}
	}
	return domain.CartItem{}, domain.ErrCartItemNotFound
}

// Clear removes every line and returns them for cleanup. The cart
// entity itself persists.
func Clear(c *domain.Cart) []domain.CartItem {
	removed := c.Items
	c.Items = nil
	return removed
}

// Recalculate rederives all cart totals from the current lines and the
// supplied pricing configuration, and snapshots the tax rate used.
// Invoked after every mutation; totals are never settable directly.
func Recalculate(c *domain.Cart, taxRateBps int64, shipping pricing.ShippingRule) {
	totals := pricing.CartTotals(c.Items, taxRateBps, shipping, c.DiscountCents)

	c.SubtotalCents = totals.SubtotalCents
	c.TaxCents = totals.TaxCents
	c.ShippingCents = totals.ShippingCents
	c.TotalCents = totals.TotalCents
	c.TaxRateBps = taxRateBps
}

// ItemCount returns the total unit count across lines.
func ItemCount(c *domain.Cart) int32 {
	var n int32
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func find(c *domain.Cart, itemID pgtype.UUID) *domain.CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}
