package storage

import (
	"context"
	"io"
)

// Storage stores customization preview artifacts. Failures here must
// never fail a cart mutation: callers treat upload and delete as
// best-effort side effects and log errors instead of raising them.
type Storage interface {
	// Put stores content under key and returns the public URL.
	// The key should be unique (e.g., "previews/<user>/<customization>.png").
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Delete removes a stored artifact. Returns nil when the key does
	// not exist (idempotent).
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for a stored key.
	URL(key string) string
}

// Config selects and configures a storage provider.
type Config struct {
	Provider  string // "local" or "memory"
	LocalPath string
	LocalURL  string
}

// New creates a Storage implementation from configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}
