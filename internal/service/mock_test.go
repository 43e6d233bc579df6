package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/spoolworks/atelier/internal/domain"
	"github.com/spoolworks/atelier/internal/events"
)

func newUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

var errStoreDown = errors.New("store unavailable")

// memCarts stands in for the database in service tests. Load and Save
// deep-copy so two in-flight mutations see independent snapshots, the
// way two pool connections would.
type memCarts struct {
	mu        sync.Mutex
	byUser    map[pgtype.UUID]*domain.Cart
	SaveCalls int
	FailSave  bool
}

var _ domain.CartStore = (*memCarts)(nil)

func newMemCarts() *memCarts {
	return &memCarts{byUser: make(map[pgtype.UUID]*domain.Cart)}
}

func (s *memCarts) LoadByUser(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byUser[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (s *memCarts) Create(ctx context.Context, userID pgtype.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// user_id is unique: the loser of a concurrent first access gets
	// the row the winner inserted, like the ON CONFLICT path in the
	// real store.
	if existing, ok := s.byUser[userID]; ok {
		return copyCart(existing), nil
	}

	c := &domain.Cart{ID: newUUID(), UserID: userID}
	s.byUser[userID] = copyCart(c)
	return c, nil
}

func (s *memCarts) Save(ctx context.Context, c *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SaveCalls++
	if s.FailSave {
		return errStoreDown
	}
	s.byUser[c.UserID] = copyCart(c)
	return nil
}

// Stored returns the persisted snapshot for assertions.
func (s *memCarts) Stored(userID pgtype.UUID) *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	return copyCart(c)
}

func copyCart(c *domain.Cart) *domain.Cart {
	dup := *c
	dup.Items = make([]domain.CartItem, len(c.Items))
	copy(dup.Items, c.Items)
	return &dup
}

// memCatalog serves fixture products, variants, and designs.
type memCatalog struct {
	products map[pgtype.UUID]*domain.Product
	variants map[pgtype.UUID]*domain.Variant
	designs  map[pgtype.UUID]*domain.Design
}

var _ domain.CatalogStore = (*memCatalog)(nil)

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products: make(map[pgtype.UUID]*domain.Product),
		variants: make(map[pgtype.UUID]*domain.Variant),
		designs:  make(map[pgtype.UUID]*domain.Design),
	}
}

func (s *memCatalog) FindProduct(ctx context.Context, id pgtype.UUID) (*domain.Product, error) {
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

func (s *memCatalog) FindVariant(ctx context.Context, id pgtype.UUID) (*domain.Variant, error) {
	if v, ok := s.variants[id]; ok {
		return v, nil
	}
	return nil, domain.ErrVariantNotFound
}

func (s *memCatalog) FindDesign(ctx context.Context, id pgtype.UUID) (*domain.Design, error) {
	if d, ok := s.designs[id]; ok {
		return d, nil
	}
	return nil, domain.ErrDesignNotFound
}

// memCustomizations records deletes so cascade behavior can be asserted.
type memCustomizations struct {
	mu          sync.Mutex
	byID        map[pgtype.UUID]*domain.Customization
	DeleteCalls []pgtype.UUID
	FailDelete  bool
}

var _ domain.CustomizationStore = (*memCustomizations)(nil)

func newMemCustomizations() *memCustomizations {
	return &memCustomizations{byID: make(map[pgtype.UUID]*domain.Customization)}
}

func (s *memCustomizations) CreateCustomization(ctx context.Context, c *domain.Customization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dup := *c
	s.byID[c.ID] = &dup
	return nil
}

func (s *memCustomizations) GetCustomization(ctx context.Context, id pgtype.UUID) (*domain.Customization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrCustomizationNotFound
	}
	dup := *c
	return &dup, nil
}

func (s *memCustomizations) DeleteCustomization(ctx context.Context, id pgtype.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls = append(s.DeleteCalls, id)
	if s.FailDelete {
		return errStoreDown
	}
	delete(s.byID, id)
	return nil
}

func (s *memCustomizations) Has(id pgtype.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// recPublisher records published subjects.
type recPublisher struct {
	mu       sync.Mutex
	subjects []string
}

var _ events.Publisher = (*recPublisher)(nil)

func (p *recPublisher) Publish(ctx context.Context, subject string, event events.CartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}
