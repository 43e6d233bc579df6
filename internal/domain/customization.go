package domain

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrCustomizationNotFound = &Error{Code: ENOTFOUND, Message: "Customization not found"}
	ErrInvalidColor          = &Error{Code: EINVALID, Message: "Color must be a 6-digit hex value"}
)

// Customization is user content attached to a cart line: a design
// placed on a product/variant with a thread color and optional notes.
// A customization may exist independently of any cart line (saved for
// later); a line referencing one validates it at attach time.
type Customization struct {
	ID         pgtype.UUID
	UserID     pgtype.UUID
	ProductID  pgtype.UUID
	VariantID  pgtype.UUID // optional
	DesignID   pgtype.UUID
	ColorHex   string // normalized lowercase, no leading '#'
	Notes      string
	PreviewKey string // storage key of the rendered preview, empty when none
	Completed  bool
	CreatedAt  pgtype.Timestamptz
}

// AttachParams are the inputs for creating a customization.
type AttachParams struct {
	UserID     pgtype.UUID
	ProductID  pgtype.UUID
	VariantID  pgtype.UUID // optional
	DesignID   pgtype.UUID
	ColorHex   string
	Notes      string
	PreviewPNG []byte // optional rendered preview; upload is best-effort
}

// CustomizationInput is the inline form carried by AddItemRequest/SyncItem.
type CustomizationInput struct {
	DesignID   pgtype.UUID
	ColorHex   string
	Notes      string
	PreviewPNG []byte
}

// CustomizationService validates and creates customization records.
type CustomizationService interface {
	// Attach validates the referenced design and the color, persists a
	// customization, and uploads the preview as a non-fatal side effect.
	Attach(ctx context.Context, params AttachParams) (*Customization, error)

	// Get returns a customization by id.
	Get(ctx context.Context, id pgtype.UUID) (*Customization, error)
}

// CustomizationStore persists customization records.
type CustomizationStore interface {
	CreateCustomization(ctx context.Context, c *Customization) error
	GetCustomization(ctx context.Context, id pgtype.UUID) (*Customization, error)
	DeleteCustomization(ctx context.Context, id pgtype.UUID) error
}
