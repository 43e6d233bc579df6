// Package repository implements the domain store contracts on
// PostgreSQL via pgx. The cart save path replaces a cart's lines
// atomically inside one transaction; correctness under concurrency
// comes from the per-user lock in the service layer, not from row
// versioning.
package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL-backed implementation of the cart, catalog,
// customization, and pricing-configuration contracts.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an established connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
