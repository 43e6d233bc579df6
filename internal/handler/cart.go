package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/middleware"
)

// CartHandler exposes the cart service as a JSON API. It is a thin
// translation layer: parsing, identity extraction, and error mapping;
// all business rules live in the service.
type CartHandler struct {
	carts  domain.CartService
	logger *slog.Logger
}

// NewCartHandler creates the cart HTTP handler.
func NewCartHandler(carts domain.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{carts: carts, logger: logger}
}

type customizationBody struct {
	DesignID   string `json:"design_id"`
	ColorHex   string `json:"color_hex"`
	Notes      string `json:"notes,omitempty"`
	PreviewPNG []byte `json:"preview_png,omitempty"`
}

type addItemRequest struct {
	ProductID     string             `json:"product_id"`
	VariantID     string             `json:"variant_id,omitempty"`
	Quantity      int32              `json:"quantity"`
	Customization *customizationBody `json:"customization,omitempty"`
}

type updateItemRequest struct {
	Quantity *int32 `json:"quantity"`
}

type syncRequest struct {
	Items []addItemRequest `json:"items"`
}

type cartItemResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id,omitempty"`
	CustomizationID string `json:"customization_id,omitempty"`
	Quantity        int32  `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	SurchargeCents  int64  `json:"surcharge_cents,omitempty"`
	LineTotalCents  int64  `json:"line_total_cents"`
}

type cartResponse struct {
	ID            string             `json:"id"`
	Items         []cartItemResponse `json:"items"`
	ItemCount     int32              `json:"item_count"`
	SubtotalCents int64              `json:"subtotal_cents"`
	TaxCents      int64              `json:"tax_cents"`
	ShippingCents int64              `json:"shipping_cents"`
	DiscountCents int64              `json:"discount_cents"`
	TotalCents    int64              `json:"total_cents"`
}

// GetCart handles GET /api/cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// GetSummary handles GET /api/cart/summary.
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := h.carts.GetSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.Invalid("cart.add_item", "invalid request body"))
		return
	}

	req, err := toAddItemRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.carts.AddItem(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// UpdateItem handles PATCH /api/cart/items/{id}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	itemID, err := parseUUID(r.PathValue("id"), "item id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.Invalid("cart.update_item", "invalid request body"))
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), userID, itemID, domain.ItemPatch{Quantity: body.Quantity})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// RemoveItem handles DELETE /api/cart/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	itemID, err := parseUUID(r.PathValue("id"), "item id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), userID, itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /api/cart/sync: reconciles a client-side cart.
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.Invalid("cart.sync", "invalid request body"))
		return
	}

	items := make([]domain.SyncItem, 0, len(body.Items))
	for _, entry := range body.Items {
		req, err := toAddItemRequest(entry)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items = append(items, domain.SyncItem{
			ProductID:     req.ProductID,
			VariantID:     req.VariantID,
			Quantity:      req.Quantity,
			Customization: req.Customization,
		})
	}

	view, err := h.carts.SyncLocalCart(r.Context(), userID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func toAddItemRequest(body addItemRequest) (domain.AddItemRequest, error) {
	productID, err := parseUUID(body.ProductID, "product id")
	if err != nil {
		return domain.AddItemRequest{}, err
	}

	req := domain.AddItemRequest{
		ProductID: productID,
		Quantity:  body.Quantity,
	}

	if body.VariantID != "" {
		if req.VariantID, err = parseUUID(body.VariantID, "variant id"); err != nil {
			return domain.AddItemRequest{}, err
		}
	}

	if body.Customization != nil {
		designID, err := parseUUID(body.Customization.DesignID, "design id")
		if err != nil {
			return domain.AddItemRequest{}, err
		}
		req.Customization = &domain.CustomizationInput{
			DesignID:   designID,
			ColorHex:   body.Customization.ColorHex,
			Notes:      body.Customization.Notes,
			PreviewPNG: body.Customization.PreviewPNG,
		}
	}

	return req, nil
}

func toCartResponse(view *domain.CartView) cartResponse {
	items := make([]cartItemResponse, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, cartItemResponse{
			ID:              uuidString(item.ID),
			ProductID:       uuidString(item.ProductID),
			VariantID:       uuidString(item.VariantID),
			CustomizationID: uuidString(item.CustomizationID),
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			SurchargeCents:  item.SurchargeCents,
			LineTotalCents:  item.LineTotalCents,
		})
	}

	return cartResponse{
		ID:            uuidString(view.Cart.ID),
		Items:         items,
		ItemCount:     view.ItemCount,
		SubtotalCents: view.Cart.SubtotalCents,
		TaxCents:      view.Cart.TaxCents,
		ShippingCents: view.Cart.ShippingCents,
		DiscountCents: view.Cart.DiscountCents,
		TotalCents:    view.Cart.TotalCents,
	}
}

func requestUserID(r *http.Request) (pgtype.UUID, error) {
	return parseUUID(middleware.GetUserID(r.Context()), "user id")
}

func parseUUID(value, field string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, domain.Invalid("request.parse", "invalid "+field)
	}
	return id, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
