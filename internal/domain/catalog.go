package domain

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrVariantNotFound = &Error{Code: ENOTFOUND, Message: "Variant not found"}
	ErrDesignNotFound  = &Error{Code: ENOTFOUND, Message: "Design not found"}
)

// Product is the catalog view the cart core needs: base price and flags.
// Catalog administration lives elsewhere; products are read-only here.
type Product struct {
	ID             pgtype.UUID
	Name           string
	Slug           string
	BasePriceCents int64
	Active         bool
}

// Variant is a concrete SKU of a product (size/color) with a price
// delta relative to the product base price.
type Variant struct {
	ID              pgtype.UUID
	ProductID       pgtype.UUID
	SKU             string
	Name            string
	PriceDeltaCents int64
	Active          bool
	InStock         bool
}

// Design is an embroidery/print design a customization references.
type Design struct {
	ID     pgtype.UUID
	Name   string
	Active bool
}

// CatalogStore looks up catalog entities referenced by cart mutations.
// Implementations return the package-level not-found errors above.
type CatalogStore interface {
	FindProduct(ctx context.Context, id pgtype.UUID) (*Product, error)
	FindVariant(ctx context.Context, id pgtype.UUID) (*Variant, error)
	FindDesign(ctx context.Context, id pgtype.UUID) (*Design, error)
}
