package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/storage"
)

// customizationService implements domain.CustomizationService.
type customizationService struct {
	store    domain.CustomizationStore
	catalog  domain.CatalogStore
	previews storage.Storage
	validate *validator.Validate
	logger   *slog.Logger
}

var _ domain.CustomizationService = (*customizationService)(nil)

// NewCustomizationService creates the customization attachment service.
func NewCustomizationService(store domain.CustomizationStore, catalog domain.CatalogStore, previews storage.Storage, logger *slog.Logger) domain.CustomizationService {
	if logger == nil {
		logger = slog.Default()
	}

	return &customizationService{
		store:    store,
		catalog:  catalog,
		previews: previews,
		validate: validator.New(),
		logger:   logger,
	}
}

// Attach validates the color and referenced entities, persists the
// customization, and uploads the preview as a non-fatal side effect.
func (s *customizationService) Attach(ctx context.Context, params domain.AttachParams) (*domain.Customization, error) {
	const op = "customization.attach"

	color, err := s.normalizeColor(params.ColorHex)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProduct(ctx, params.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.Invalid(op, "product is not available")
	}

	if params.VariantID.Valid {
		variant, err := s.catalog.FindVariant(ctx, params.VariantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != params.ProductID {
			return nil, domain.ErrVariantMismatch
		}
	}

	design, err := s.catalog.FindDesign(ctx, params.DesignID)
	if err != nil {
		return nil, err
	}
	if !design.Active {
		return nil, domain.ErrDesignNotFound
	}

	cust := &domain.Customization{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		UserID:    params.UserID,
		ProductID: params.ProductID,
		VariantID: params.VariantID,
		DesignID:  params.DesignID,
		ColorHex:  color,
		Notes:     params.Notes,
		Completed: true,
	}

	// Preview upload is a side effect: a failure is logged and the
	// customization persists without a preview.
	if len(params.PreviewPNG) > 0 {
		key := fmt.Sprintf("customizations/%s/%s.png", uuidString(params.UserID), uuidString(cust.ID))
		if _, err := s.previews.Put(ctx, key, bytes.NewReader(params.PreviewPNG), "image/png"); err != nil {
			s.logger.Warn("preview upload failed, continuing without preview",
				"customization_id", uuidString(cust.ID), "error", err)
		} else {
			cust.PreviewKey = key
		}
	}

	if err := s.store.CreateCustomization(ctx, cust); err != nil {
		return nil, domain.Internal(err, op, "failed to save customization")
	}

	return cust, nil
}

// Get returns a customization by id.
func (s *customizationService) Get(ctx context.Context, id pgtype.UUID) (*domain.Customization, error) {
	return s.store.GetCustomization(ctx, id)
}

// normalizeColor validates a strict 6-hex-digit color (an optional
// leading '#' is tolerated) and returns it lowercased without prefix.
func (s *customizationService) normalizeColor(colorHex string) (string, error) {
	color := strings.TrimPrefix(strings.TrimSpace(colorHex), "#")
	if err := s.validate.Var(color, "required,len=6,hexadecimal"); err != nil {
		return "", domain.ErrInvalidColor
	}
	return strings.ToLower(color), nil
}

// uuidString formats a pgtype.UUID for keys and log fields.
func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
