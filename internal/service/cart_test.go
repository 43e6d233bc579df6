package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/events"
	"github.com/spoolworks/atelier/internal/lock"
	"github.com/spoolworks/atelier/internal/pricing"
	"github.com/spoolworks/atelier/internal/storage"
)

// cartFixture wires a cart service against in-memory collaborators.
// Pricing: 10% tax, free shipping at 5000 cents else 500, surcharge 750.
type cartFixture struct {
	svc      domain.CartService
	carts    *memCarts
	catalog  *memCatalog
	custs    *memCustomizations
	previews *storage.MemoryStorage
	pricing  *pricing.StaticConfig
	locks    *lock.Manager
	events   *recPublisher

	userID    pgtype.UUID
	productID pgtype.UUID
	variantID pgtype.UUID
	designID  pgtype.UUID
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	f := &cartFixture{
		carts:    newMemCarts(),
		catalog:  newMemCatalog(),
		custs:    newMemCustomizations(),
		previews: storage.NewMemoryStorage(),
		pricing: pricing.NewStaticConfig(1000,
			pricing.ShippingRule{FreeThresholdCents: 5000, FlatFeeCents: 500}, 750),
		locks:  lock.NewManagerWithPoll(lock.NewMemoryBackend(), time.Millisecond),
		events: &recPublisher{},

		userID:    newUUID(),
		productID: newUUID(),
		variantID: newUUID(),
		designID:  newUUID(),
	}

	f.catalog.products[f.productID] = &domain.Product{
		ID: f.productID, Name: "Canvas Tote", BasePriceCents: 2000, Active: true,
	}
	f.catalog.variants[f.variantID] = &domain.Variant{
		ID: f.variantID, ProductID: f.productID, SKU: "TOTE-L", PriceDeltaCents: 500, Active: true, InStock: true,
	}
	f.catalog.designs[f.designID] = &domain.Design{ID: f.designID, Name: "Monogram", Active: true}

	f.svc = f.serviceOver(f.carts)

	return f
}

// serviceOver builds the service with an alternate cart store, so
// tests can wrap the store to orchestrate races.
func (f *cartFixture) serviceOver(carts domain.CartStore) domain.CartService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	attach := NewCustomizationService(f.custs, f.catalog, f.previews, logger)

	return NewCartService(CartServiceParams{
		Carts:          carts,
		Catalog:        f.catalog,
		Customizations: f.custs,
		Attach:         attach,
		Pricing:        f.pricing,
		Locks:          f.locks,
		Previews:       f.previews,
		Events:         f.events,
		Logger:         logger,
		Config: CartServiceConfig{
			LockTTL:  time.Second,
			LockWait: 200 * time.Millisecond,
			CartTTL:  time.Hour,
		},
	})
}

func (f *cartFixture) add(t *testing.T, quantity int32) *domain.CartView {
	t.Helper()
	view, err := f.svc.AddItem(context.Background(), f.userID, domain.AddItemRequest{
		ProductID: f.productID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return view
}

func TestCartService_AddItem(t *testing.T) {
	f := newCartFixture(t)

	// 2 x 2000: subtotal 4000, tax 400, shipping 500 -> 4900.
	view := f.add(t, 2)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, int32(2), view.ItemCount)
	assert.Equal(t, int64(4000), view.Cart.SubtotalCents)
	assert.Equal(t, int64(400), view.Cart.TaxCents)
	assert.Equal(t, int64(500), view.Cart.ShippingCents)
	assert.Equal(t, int64(4900), view.Cart.TotalCents)

	// One more unit merges into the same line; subtotal 6000 clears the
	// free-shipping threshold: tax 600, shipping 0 -> 6600.
	view = f.add(t, 1)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, int32(3), view.Cart.Items[0].Quantity)
	assert.Equal(t, int64(6000), view.Cart.SubtotalCents)
	assert.Equal(t, int64(600), view.Cart.TaxCents)
	assert.Equal(t, int64(0), view.Cart.ShippingCents)
	assert.Equal(t, int64(6600), view.Cart.TotalCents)

	assert.True(t, view.Cart.ExpiresAt.Valid)
	assert.Equal(t,
		[]string{events.SubjectItemAdded, events.SubjectItemAdded},
		f.events.Subjects())
}

func TestCartService_AddItem_VariantPrice(t *testing.T) {
	f := newCartFixture(t)

	view, err := f.svc.AddItem(context.Background(), f.userID, domain.AddItemRequest{
		ProductID: f.productID,
		VariantID: f.variantID,
		Quantity:  1,
	})
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, int64(2500), view.Cart.Items[0].UnitPriceCents)
}

func TestCartService_AddItem_Validation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{ProductID: f.productID, Quantity: 0})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{ProductID: newUUID(), Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("inactive product", func(t *testing.T) {
		f.catalog.products[f.productID].Active = false
		defer func() { f.catalog.products[f.productID].Active = true }()

		_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{ProductID: f.productID, Quantity: 1})
		assert.True(t, domain.IsCode(err, domain.EINVALID))
	})

	t.Run("variant of another product", func(t *testing.T) {
		otherProduct := newUUID()
		f.catalog.products[otherProduct] = &domain.Product{ID: otherProduct, BasePriceCents: 1000, Active: true}

		_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{
			ProductID: otherProduct, VariantID: f.variantID, Quantity: 1,
		})
		assert.ErrorIs(t, err, domain.ErrVariantMismatch)
	})

	t.Run("nothing persisted on validation failure", func(t *testing.T) {
		assert.Equal(t, 0, f.carts.SaveCalls)
	})
}

func TestCartService_AddItem_WithCustomization(t *testing.T) {
	f := newCartFixture(t)

	view, err := f.svc.AddItem(context.Background(), f.userID, domain.AddItemRequest{
		ProductID: f.productID,
		Quantity:  1,
		Customization: &domain.CustomizationInput{
			DesignID:   f.designID,
			ColorHex:   "#1A2B3C",
			Notes:      "left chest",
			PreviewPNG: []byte("png-bytes"),
		},
	})
	require.NoError(t, err)

	require.Len(t, view.Cart.Items, 1)
	line := view.Cart.Items[0]
	require.True(t, line.Customized())
	assert.Equal(t, int64(750), line.SurchargeCents)
	// (2000 + 750) * 1 = 2750, tax 275, shipping 500.
	assert.Equal(t, int64(2750), line.LineTotalCents)
	assert.Equal(t, int64(3525), view.Cart.TotalCents)

	cust, err := f.custs.GetCustomization(context.Background(), line.CustomizationID)
	require.NoError(t, err)
	assert.Equal(t, "1a2b3c", cust.ColorHex)
	assert.NotEmpty(t, cust.PreviewKey)
	assert.True(t, f.previews.Has(cust.PreviewKey))

	// A second identical add stays a separate line.
	view, err = f.svc.AddItem(context.Background(), f.userID, domain.AddItemRequest{
		ProductID: f.productID,
		Quantity:  1,
		Customization: &domain.CustomizationInput{
			DesignID: f.designID,
			ColorHex: "1a2b3c",
		},
	})
	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 2)
}

func TestCartService_UpdateItem(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	view := f.add(t, 2)
	itemID := view.Cart.Items[0].ID

	t.Run("empty patch", func(t *testing.T) {
		_, err := f.svc.UpdateItem(ctx, f.userID, itemID, domain.ItemPatch{})
		assert.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)
	})

	t.Run("quantity change reprices", func(t *testing.T) {
		qty := int32(3)
		updated, err := f.svc.UpdateItem(ctx, f.userID, itemID, domain.ItemPatch{Quantity: &qty})
		require.NoError(t, err)
		assert.Equal(t, int32(3), updated.Cart.Items[0].Quantity)
		assert.Equal(t, int64(6600), updated.Cart.TotalCents)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		qty := int32(0)
		_, err := f.svc.UpdateItem(ctx, f.userID, itemID, domain.ItemPatch{Quantity: &qty})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("unknown line", func(t *testing.T) {
		qty := int32(1)
		_, err := f.svc.UpdateItem(ctx, f.userID, newUUID(), domain.ItemPatch{Quantity: &qty})
		assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
	})
}

func TestCartService_RemoveItem_CascadesCustomization(t *testing.T) {
	ctx := context.Background()

	addCustomized := func(t *testing.T, f *cartFixture) domain.CartItem {
		t.Helper()
		view, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{
			ProductID: f.productID,
			Quantity:  1,
			Customization: &domain.CustomizationInput{
				DesignID:   f.designID,
				ColorHex:   "aabbcc",
				PreviewPNG: []byte("png-bytes"),
			},
		})
		require.NoError(t, err)
		return view.Cart.Items[0]
	}

	t.Run("deletes record and preview", func(t *testing.T) {
		f := newCartFixture(t)
		line := addCustomized(t, f)
		key := mustPreviewKey(t, f, line.CustomizationID)

		view, err := f.svc.RemoveItem(ctx, f.userID, line.ID)
		require.NoError(t, err)

		assert.Empty(t, view.Cart.Items)
		assert.False(t, f.custs.Has(line.CustomizationID))
		assert.False(t, f.previews.Has(key))
		assert.Equal(t, []pgtype.UUID{line.CustomizationID}, f.custs.DeleteCalls)
	})

	t.Run("preview delete failure is non-fatal and not retried", func(t *testing.T) {
		f := newCartFixture(t)
		line := addCustomized(t, f)
		key := mustPreviewKey(t, f, line.CustomizationID)

		f.previews.FailDelete = true
		_, err := f.svc.RemoveItem(ctx, f.userID, line.ID)
		require.NoError(t, err)

		assert.False(t, f.custs.Has(line.CustomizationID))
		assert.Equal(t, []string{key}, f.previews.DeleteCalls)
	})

	t.Run("customization row delete failure aborts", func(t *testing.T) {
		f := newCartFixture(t)
		line := addCustomized(t, f)

		f.custs.FailDelete = true
		_, err := f.svc.RemoveItem(ctx, f.userID, line.ID)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.EINTERNAL))

		// Nothing was persisted; the line survives.
		stored := f.carts.Stored(f.userID)
		require.NotNil(t, stored)
		assert.Len(t, stored.Items, 1)
	})
}

func mustPreviewKey(t *testing.T, f *cartFixture, custID pgtype.UUID) string {
	t.Helper()
	cust, err := f.custs.GetCustomization(context.Background(), custID)
	require.NoError(t, err)
	require.NotEmpty(t, cust.PreviewKey)
	return cust.PreviewKey
}

func TestCartService_Clear(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	f.add(t, 2)
	view, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{
		ProductID: f.productID,
		Quantity:  1,
		Customization: &domain.CustomizationInput{
			DesignID: f.designID,
			ColorHex: "ffffff",
		},
	})
	require.NoError(t, err)
	cartID := view.Cart.ID
	var custID pgtype.UUID
	for _, item := range view.Cart.Items {
		if item.Customized() {
			custID = item.CustomizationID
		}
	}
	require.True(t, custID.Valid)

	require.NoError(t, f.svc.Clear(ctx, f.userID))

	// The cart entity survives with zeroed totals; customizations are gone.
	after, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, cartID, after.Cart.ID)
	assert.Empty(t, after.Cart.Items)
	assert.Equal(t, int64(0), after.Cart.TotalCents)
	assert.False(t, f.custs.Has(custID))
}

func TestCartService_SyncLocalCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	t.Run("empty batch rejected", func(t *testing.T) {
		_, err := f.svc.SyncLocalCart(ctx, f.userID, nil)
		assert.ErrorIs(t, err, domain.ErrEmptySyncBatch)
		assert.Equal(t, 0, f.carts.SaveCalls)
	})

	t.Run("batch merges and persists once", func(t *testing.T) {
		view, err := f.svc.SyncLocalCart(ctx, f.userID, []domain.SyncItem{
			{ProductID: f.productID, Quantity: 1},
			{ProductID: f.productID, Quantity: 2},
			{ProductID: f.productID, VariantID: f.variantID, Quantity: 1},
		})
		require.NoError(t, err)

		require.Len(t, view.Cart.Items, 2)
		assert.Equal(t, int32(4), view.ItemCount)
		assert.Equal(t, 1, f.carts.SaveCalls)
		assert.Equal(t, []string{events.SubjectSynced}, f.events.Subjects())
	})

	t.Run("merges into existing server cart", func(t *testing.T) {
		view, err := f.svc.SyncLocalCart(ctx, f.userID, []domain.SyncItem{
			{ProductID: f.productID, Quantity: 1},
		})
		require.NoError(t, err)
		require.Len(t, view.Cart.Items, 2)
		assert.Equal(t, int32(5), view.ItemCount)
	})

	t.Run("invalid entry fails the whole batch", func(t *testing.T) {
		saves := f.carts.SaveCalls
		_, err := f.svc.SyncLocalCart(ctx, f.userID, []domain.SyncItem{
			{ProductID: f.productID, Quantity: 1},
			{ProductID: newUUID(), Quantity: 1},
		})
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
		assert.Equal(t, saves, f.carts.SaveCalls)
	})
}

func TestCartService_Reads(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	t.Run("first access creates an empty cart", func(t *testing.T) {
		view, err := f.svc.GetCart(ctx, f.userID)
		require.NoError(t, err)
		assert.True(t, view.Cart.ID.Valid)
		assert.Empty(t, view.Cart.Items)
		assert.Equal(t, int64(0), view.Cart.TotalCents)
	})

	f.add(t, 2)
	savesAfterAdd := f.carts.SaveCalls

	t.Run("reads reprice without persisting", func(t *testing.T) {
		// Tax rate drops to zero after the add; reads must reflect it.
		f.pricing.RateBps = 0

		view, err := f.svc.GetCart(ctx, f.userID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), view.Cart.TaxCents)
		assert.Equal(t, int64(4500), view.Cart.TotalCents)

		summary, err := f.svc.GetSummary(ctx, f.userID)
		require.NoError(t, err)
		assert.Equal(t, int64(4500), summary.TotalCents)
		assert.Equal(t, int32(2), summary.ItemCount)

		// The stored snapshot still carries the totals from the last write.
		assert.Equal(t, savesAfterAdd, f.carts.SaveCalls)
		assert.Equal(t, int64(400), f.carts.Stored(f.userID).TaxCents)
	})
}

func TestCartService_LockTimeout(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	// Another holder pins this user's lock past the service's max wait.
	key := lockKeyPrefix + uuidString(f.userID)
	token, err := f.locks.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{ProductID: f.productID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ELOCKTIMEOUT))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 0, f.carts.SaveCalls)

	// Once released, the same mutation goes through.
	_, err = f.locks.Release(ctx, key, token)
	require.NoError(t, err)
	f.add(t, 1)
}

func TestCartService_LockReleasedAfterFailure(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	f.carts.FailSave = true
	_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{ProductID: f.productID, Quantity: 1})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))

	// The lock must not leak: the next mutation acquires it immediately.
	f.carts.FailSave = false
	f.add(t, 1)
}

// firstAccessGate holds every caller that observed "no cart" at a
// barrier until all expected callers have, forcing the worst-case
// interleaving of a user's first accesses.
type firstAccessGate struct {
	domain.CartStore
	barrier *sync.WaitGroup
}

func (g *firstAccessGate) LoadByUser(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	c, err := g.CartStore.LoadByUser(ctx, userID)
	if domain.IsCode(err, domain.ENOTFOUND) {
		g.barrier.Done()
		g.barrier.Wait()
	}
	return c, err
}

func TestCartService_ConcurrentFirstAccess(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	// A login-time read races the local-cart sync: the read path holds
	// no lock, so both observe "no cart" before either creates one.
	var barrier sync.WaitGroup
	barrier.Add(2)
	svc := f.serviceOver(&firstAccessGate{CartStore: f.carts, barrier: &barrier})

	var (
		wg       sync.WaitGroup
		readView *domain.CartView
		readErr  error
		syncView *domain.CartView
		syncErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		readView, readErr = svc.GetCart(ctx, f.userID)
	}()
	go func() {
		defer wg.Done()
		syncView, syncErr = svc.SyncLocalCart(ctx, f.userID, []domain.SyncItem{
			{ProductID: f.productID, Quantity: 1},
		})
	}()
	wg.Wait()

	require.NoError(t, readErr, "a concurrent first read must not fail")
	require.NoError(t, syncErr)
	assert.Equal(t, syncView.Cart.ID, readView.Cart.ID, "both requests must land on the same cart")

	stored := f.carts.Stored(f.userID)
	require.NotNil(t, stored)
	assert.Equal(t, syncView.Cart.ID, stored.ID)
}

func TestCartService_ConcurrentAddsSerialize(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	const adds = 8
	var wg sync.WaitGroup
	errs := make(chan error, adds)

	for range adds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(ctx, f.userID, domain.AddItemRequest{
				ProductID: f.productID,
				Quantity:  1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Without the per-user lock, read-modify-write races would lose
	// increments; serialized, every add lands.
	view, err := f.svc.GetCart(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, int32(adds), view.Cart.Items[0].Quantity)
	assert.Equal(t, adds, f.carts.SaveCalls)
}
