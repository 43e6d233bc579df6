package domain

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrEmptySyncBatch   = &Error{Code: EINVALID, Message: "Sync batch must contain at least one item"}
	ErrVariantMismatch  = &Error{Code: EINVALID, Message: "Variant does not belong to product"}
	ErrNoFieldsToUpdate = &Error{Code: EINVALID, Message: "No fields supplied for update"}
)

// CartService provides business logic for shopping cart operations.
// All mutating operations for one user are serialized behind a
// distributed per-user lock; concurrent calls either wait or fail
// with a retryable ELOCKTIMEOUT error.
type CartService interface {
	// AddItem adds a product (optionally a specific variant, optionally
	// with an inline customization) to the user's cart, merging into an
	// existing line when the dedup rule allows it.
	AddItem(ctx context.Context, userID pgtype.UUID, req AddItemRequest) (*CartView, error)

	// UpdateItem applies a partial update to one cart line. Absent patch
	// fields are left unchanged.
	UpdateItem(ctx context.Context, userID pgtype.UUID, itemID pgtype.UUID, patch ItemPatch) (*CartView, error)

	// RemoveItem deletes one cart line. A line carrying a customization
	// cascades to the customization record and its preview artifact.
	RemoveItem(ctx context.Context, userID pgtype.UUID, itemID pgtype.UUID) (*CartView, error)

	// Clear removes all lines from the cart. The cart record itself persists.
	Clear(ctx context.Context, userID pgtype.UUID) error

	// SyncLocalCart reconciles a client-side cart with the server cart
	// under a single lock acquisition, with one totals recomputation and
	// one persist for the whole batch.
	SyncLocalCart(ctx context.Context, userID pgtype.UUID, items []SyncItem) (*CartView, error)

	// GetCart returns the user's cart, repriced against the current
	// pricing configuration without persisting. Creates an empty cart on
	// first access.
	GetCart(ctx context.Context, userID pgtype.UUID) (*CartView, error)

	// GetSummary returns totals only, repriced like GetCart.
	GetSummary(ctx context.Context, userID pgtype.UUID) (*CartTotals, error)
}

// Cart is the persistent cart aggregate for one user. Exactly one cart
// exists per authenticated user; it is created lazily and survives Clear.
type Cart struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
	Items  []CartItem

	// Derived totals, cents. Never set directly; always recomputed
	// after a mutation.
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64

	// TaxRateBps is the tax rate snapshot (basis points) used for the
	// stored totals. Refreshed on every recomputation.
	TaxRateBps int64

	ExpiresAt pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartItem is one line in a cart: a product+variant(+customization) at
// a given quantity. Unit price is captured at add time, not re-read
// from the catalog on later mutations.
type CartItem struct {
	ID              pgtype.UUID
	ProductID       pgtype.UUID
	VariantID       pgtype.UUID // Valid=false when the product has no variant selected
	CustomizationID pgtype.UUID // Valid=false for plain lines
	Quantity        int32
	UnitPriceCents  int64
	SurchargeCents  int64
	LineTotalCents  int64
}

// Customized reports whether the line carries a customization.
// Customized lines never merge with other lines.
func (i *CartItem) Customized() bool {
	return i.CustomizationID.Valid
}

// SameLine reports whether other merges into this line under the dedup
// rule: product and variant match and neither line is customized.
func (i *CartItem) SameLine(other *CartItem) bool {
	if i.Customized() || other.Customized() {
		return false
	}
	if i.ProductID != other.ProductID {
		return false
	}
	return i.VariantID == other.VariantID
}

// AddItemRequest describes one add-to-cart mutation.
type AddItemRequest struct {
	ProductID     pgtype.UUID
	VariantID     pgtype.UUID // optional
	Quantity      int32
	Customization *CustomizationInput // optional inline customization
}

// SyncItem is one entry of a client-side cart being reconciled at login.
type SyncItem struct {
	ProductID     pgtype.UUID
	VariantID     pgtype.UUID
	Quantity      int32
	Customization *CustomizationInput
}

// ItemPatch is a partial update to a cart line. Nil fields mean
// "leave unchanged"; presence and absence are distinct.
type ItemPatch struct {
	Quantity *int32
}

// CartView is the read projection returned by mutating operations and GetCart.
type CartView struct {
	Cart      Cart
	ItemCount int32
}

// CartTotals is the totals-only projection returned by GetSummary.
type CartTotals struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	TaxRateBps    int64
	ItemCount     int32
}

// CartStore persists cart aggregates. LoadByUser returns ErrCartNotFound
// when the user has no cart yet. Create must tolerate a concurrent
// first access: when another request inserts the user's cart first, it
// returns that cart instead of failing on the uniqueness constraint.
// Save upserts the cart row and replaces its lines atomically.
type CartStore interface {
	LoadByUser(ctx context.Context, userID pgtype.UUID) (*Cart, error)
	Create(ctx context.Context, userID pgtype.UUID) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}
