package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/cart"
	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/events"
	"github.com/spoolworks/atelier/internal/lock"
	"github.com/spoolworks/atelier/internal/pricing"
	"github.com/spoolworks/atelier/internal/storage"
	"github.com/spoolworks/atelier/internal/telemetry"
)

// lockKeyPrefix namespaces per-user cart locks in the shared store.
const lockKeyPrefix = "cart-lock:"

// CartServiceConfig tunes the locking and expiry behavior.
type CartServiceConfig struct {
	// LockTTL bounds how long a crashed holder can block a user's cart.
	LockTTL time.Duration

	// LockWait bounds how long a mutation waits to acquire the lock
	// before failing with a retryable lock-timeout error.
	LockWait time.Duration

	// CartTTL sets the cart expiry refreshed on every write.
	CartTTL time.Duration
}

// CartServiceParams collects the collaborators of the cart service.
type CartServiceParams struct {
	Carts          domain.CartStore
	Catalog        domain.CatalogStore
	Customizations domain.CustomizationStore
	Attach         domain.CustomizationService
	Pricing        pricing.Config
	Locks          *lock.Manager
	Previews       storage.Storage
	Events         events.Publisher
	Metrics        *telemetry.CartMetrics
	Logger         *slog.Logger
	Config         CartServiceConfig
}

// cartService implements domain.CartService. Every mutation runs
// inside the per-user distributed lock: acquire, load, validate,
// mutate, recompute totals, persist, release. The lock is always
// released, success or failure.
type cartService struct {
	carts          domain.CartStore
	catalog        domain.CatalogStore
	customizations domain.CustomizationStore
	attach         domain.CustomizationService
	pricing        pricing.Config
	locks          *lock.Manager
	previews       storage.Storage
	events         events.Publisher
	metrics        *telemetry.CartMetrics
	logger         *slog.Logger
	cfg            CartServiceConfig
}

var _ domain.CartService = (*cartService)(nil)

// NewCartService creates the cart mutation service.
func NewCartService(p CartServiceParams) domain.CartService {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Events == nil {
		p.Events = events.NoopPublisher{}
	}
	if p.Config.LockTTL <= 0 {
		p.Config.LockTTL = 10 * time.Second
	}
	if p.Config.LockWait <= 0 {
		p.Config.LockWait = 3 * time.Second
	}
	if p.Config.CartTTL <= 0 {
		p.Config.CartTTL = 30 * 24 * time.Hour
	}

	return &cartService{
		carts:          p.Carts,
		catalog:        p.Catalog,
		customizations: p.Customizations,
		attach:         p.Attach,
		pricing:        p.Pricing,
		locks:          p.Locks,
		previews:       p.Previews,
		events:         p.Events,
		metrics:        p.Metrics,
		logger:         p.Logger,
		cfg:            p.Config,
	}
}

// AddItem adds a product to the user's cart under the per-user lock.
func (s *cartService) AddItem(ctx context.Context, userID pgtype.UUID, req domain.AddItemRequest) (*domain.CartView, error) {
	const op = "cart.add_item"

	var view *domain.CartView
	err := s.withLock(ctx, op, userID, func(ctx context.Context) error {
		c, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		item, err := s.resolveLine(ctx, userID, req.ProductID, req.VariantID, req.Quantity, req.Customization)
		if err != nil {
			return err
		}

		cart.AddItem(c, item)

		if err := s.repriceAndSave(ctx, op, c); err != nil {
			return err
		}

		view = s.view(c)
		s.publish(ctx, events.SubjectItemAdded, userID, c)
		if s.metrics != nil {
			s.metrics.ItemsAdded.Inc()
			s.metrics.CartValue.Observe(float64(c.TotalCents))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateItem applies a partial update to one cart line.
func (s *cartService) UpdateItem(ctx context.Context, userID pgtype.UUID, itemID pgtype.UUID, patch domain.ItemPatch) (*domain.CartView, error) {
	const op = "cart.update_item"

	if patch.Quantity == nil {
		return nil, domain.ErrNoFieldsToUpdate
	}

	var view *domain.CartView
	err := s.withLock(ctx, op, userID, func(ctx context.Context) error {
		c, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		if _, err := cart.UpdateQuantity(c, itemID, *patch.Quantity); err != nil {
			return err
		}

		if err := s.repriceAndSave(ctx, op, c); err != nil {
			return err
		}

		view = s.view(c)
		s.publish(ctx, events.SubjectItemUpdated, userID, c)
		if s.metrics != nil {
			s.metrics.ItemsUpdated.Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem deletes one cart line, cascading to its customization.
func (s *cartService) RemoveItem(ctx context.Context, userID pgtype.UUID, itemID pgtype.UUID) (*domain.CartView, error) {
	const op = "cart.remove_item"

	var view *domain.CartView
	err := s.withLock(ctx, op, userID, func(ctx context.Context) error {
		c, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		removed, err := cart.RemoveItem(c, itemID)
		if err != nil {
			return err
		}

		if removed.Customized() {
			if err := s.cleanupCustomization(ctx, op, removed.CustomizationID); err != nil {
				return err
			}
		}

		if err := s.repriceAndSave(ctx, op, c); err != nil {
			return err
		}

		view = s.view(c)
		s.publish(ctx, events.SubjectItemRemoved, userID, c)
		if s.metrics != nil {
			s.metrics.ItemsRemoved.Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Clear removes all lines from the cart. The cart record persists.
func (s *cartService) Clear(ctx context.Context, userID pgtype.UUID) error {
	const op = "cart.clear"

	return s.withLock(ctx, op, userID, func(ctx context.Context) error {
		c, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		for _, removed := range cart.Clear(c) {
			if !removed.Customized() {
				continue
			}
			if err := s.cleanupCustomization(ctx, op, removed.CustomizationID); err != nil {
				return err
			}
		}

		if err := s.repriceAndSave(ctx, op, c); err != nil {
			return err
		}

		s.publish(ctx, events.SubjectCleared, userID, c)
		if s.metrics != nil {
			s.metrics.CartsCleared.Inc()
		}
		return nil
	})
}

// SyncLocalCart reconciles a client-side cart against the server cart.
// The lock is held once for the whole batch; items are merged in
// memory and the cart is repriced and persisted exactly once, so a
// login-time sync cannot interleave with other mutations mid-batch.
func (s *cartService) SyncLocalCart(ctx context.Context, userID pgtype.UUID, items []domain.SyncItem) (*domain.CartView, error) {
	const op = "cart.sync"

	if len(items) == 0 {
		return nil, domain.ErrEmptySyncBatch
	}

	var view *domain.CartView
	err := s.withLock(ctx, op, userID, func(ctx context.Context) error {
		c, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		for _, incoming := range items {
			item, err := s.resolveLine(ctx, userID, incoming.ProductID, incoming.VariantID, incoming.Quantity, incoming.Customization)
			if err != nil {
				return err
			}
			cart.AddItem(c, item)
		}

		if err := s.repriceAndSave(ctx, op, c); err != nil {
			return err
		}

		view = s.view(c)
		s.publish(ctx, events.SubjectSynced, userID, c)
		if s.metrics != nil {
			s.metrics.SyncBatches.Inc()
			s.metrics.SyncItems.Add(float64(len(items)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetCart returns the user's cart repriced against the current pricing
// configuration, without taking the lock or persisting. A read may
// observe a cart mid-mutation by another request; clients re-fetch
// after their own mutations.
func (s *cartService) GetCart(ctx context.Context, userID pgtype.UUID) (*domain.CartView, error) {
	c, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.reprice(ctx, "cart.get", c); err != nil {
		return nil, err
	}

	return s.view(c), nil
}

// GetSummary returns repriced totals only.
func (s *cartService) GetSummary(ctx context.Context, userID pgtype.UUID) (*domain.CartTotals, error) {
	c, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.reprice(ctx, "cart.summary", c); err != nil {
		return nil, err
	}

	return &domain.CartTotals{
		SubtotalCents: c.SubtotalCents,
		TaxCents:      c.TaxCents,
		ShippingCents: c.ShippingCents,
		DiscountCents: c.DiscountCents,
		TotalCents:    c.TotalCents,
		TaxRateBps:    c.TaxRateBps,
		ItemCount:     cart.ItemCount(c),
	}, nil
}

// withLock runs fn inside the per-user cart lock. The lock is released
// on every path out of fn; release uses a detached context so a
// canceled request cannot leak the lock.
func (s *cartService) withLock(ctx context.Context, op string, userID pgtype.UUID, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + uuidString(userID)

	start := time.Now()
	token, err := s.locks.TryAcquireWithWait(ctx, key, s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		return domain.Internal(err, op, "failed to acquire cart lock")
	}
	if s.metrics != nil {
		s.metrics.LockWait.Observe(time.Since(start).Seconds())
	}
	if token == "" {
		if s.metrics != nil {
			s.metrics.LockTimeouts.Inc()
		}
		return domain.LockTimeout(op, uuidString(userID))
	}

	defer func() {
		released, rerr := s.locks.Release(context.WithoutCancel(ctx), key, token)
		if rerr != nil {
			s.logger.Error("cart lock release failed", "key", key, "error", rerr)
		} else if !released {
			s.logger.Warn("cart lock expired before release", "key", key, "op", op)
		}
	}()

	return fn(ctx)
}

// loadOrCreate fetches the user's cart, creating an empty one on first
// access.
func (s *cartService) loadOrCreate(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	c, err := s.carts.LoadByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if domain.IsCode(err, domain.ENOTFOUND) {
		return s.carts.Create(ctx, userID)
	}
	return nil, err
}

// resolveLine validates the referenced catalog entities and builds a
// cart line with its price captured now. Inline customization data is
// materialized into a customization record here.
func (s *cartService) resolveLine(ctx context.Context, userID, productID, variantID pgtype.UUID, quantity int32, custInput *domain.CustomizationInput) (domain.CartItem, error) {
	if quantity <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.FindProduct(ctx, productID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if !product.Active {
		return domain.CartItem{}, domain.Invalid("cart.resolve", "product is not available")
	}

	var variantDelta int64
	if variantID.Valid {
		variant, err := s.catalog.FindVariant(ctx, variantID)
		if err != nil {
			return domain.CartItem{}, err
		}
		if variant.ProductID != productID {
			return domain.CartItem{}, domain.ErrVariantMismatch
		}
		variantDelta = variant.PriceDeltaCents
	}

	item := domain.CartItem{
		ProductID:      productID,
		VariantID:      variantID,
		Quantity:       quantity,
		UnitPriceCents: pricing.UnitPrice(product.BasePriceCents, variantDelta),
	}

	if custInput != nil {
		cust, err := s.attach.Attach(ctx, domain.AttachParams{
			UserID:     userID,
			ProductID:  productID,
			VariantID:  variantID,
			DesignID:   custInput.DesignID,
			ColorHex:   custInput.ColorHex,
			Notes:      custInput.Notes,
			PreviewPNG: custInput.PreviewPNG,
		})
		if err != nil {
			return domain.CartItem{}, err
		}

		surcharge, err := s.pricing.CustomizationSurchargeCents(ctx)
		if err != nil {
			return domain.CartItem{}, domain.Internal(err, "cart.resolve", "failed to load pricing configuration")
		}

		item.CustomizationID = cust.ID
		item.SurchargeCents = surcharge
	}

	return item, nil
}

// reprice recomputes cart totals against the current pricing
// configuration, fetched fresh for every computation.
func (s *cartService) reprice(ctx context.Context, op string, c *domain.Cart) error {
	rateBps, err := s.pricing.TaxRateBps(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to load tax rate")
	}

	rule, err := s.pricing.Shipping(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to load shipping rule")
	}

	cart.Recalculate(c, rateBps, rule)
	return nil
}

// repriceAndSave recomputes totals, refreshes expiry, and persists.
func (s *cartService) repriceAndSave(ctx context.Context, op string, c *domain.Cart) error {
	if err := s.reprice(ctx, op, c); err != nil {
		return err
	}

	c.ExpiresAt = pgtype.Timestamptz{Time: time.Now().Add(s.cfg.CartTTL), Valid: true}

	if err := s.carts.Save(ctx, c); err != nil {
		return domain.Internal(err, op, "failed to save cart")
	}
	return nil
}

// cleanupCustomization deletes a customization record and best-effort
// deletes its preview artifact. A preview-store failure is logged and
// never fails the parent mutation.
func (s *cartService) cleanupCustomization(ctx context.Context, op string, id pgtype.UUID) error {
	cust, err := s.customizations.GetCustomization(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil
		}
		return err
	}

	if err := s.customizations.DeleteCustomization(ctx, id); err != nil {
		return domain.Internal(err, op, "failed to delete customization")
	}

	if cust.PreviewKey != "" {
		if derr := s.previews.Delete(ctx, cust.PreviewKey); derr != nil {
			s.logger.Warn("preview artifact cleanup failed",
				"customization_id", uuidString(id), "key", cust.PreviewKey, "error", derr)
		}
	}

	return nil
}

func (s *cartService) view(c *domain.Cart) *domain.CartView {
	return &domain.CartView{Cart: *c, ItemCount: cart.ItemCount(c)}
}

func (s *cartService) publish(ctx context.Context, subject string, userID pgtype.UUID, c *domain.Cart) {
	evt := events.CartEvent{
		UserID:     uuidString(userID),
		CartID:     uuidString(c.ID),
		ItemCount:  cart.ItemCount(c),
		TotalCents: c.TotalCents,
	}
	if err := s.events.Publish(ctx, subject, evt); err != nil {
		s.logger.Debug("cart event publish failed", "subject", subject, "error", err)
	}
}
