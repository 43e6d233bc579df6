// Package lock provides a distributed, TTL-guarded mutual-exclusion
// lock keyed by an arbitrary string. It serializes cart mutations for
// one user across processes and instances; the backend is a shared
// key-value store, never an in-process map.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Backend is the minimal key-value contract the manager needs:
// an atomic conditional set with TTL and an atomic delete-if-value-matches.
type Backend interface {
	// SetIfAbsent stores value under key with a TTL only if the key is
	// currently absent. Returns true when the set happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// DeleteIfValue deletes key only if its current value equals value.
	// Returns true when the delete happened.
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)

	// Get returns the current value for key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)
}

// DefaultPollInterval is how often TryAcquireWithWait retries.
const DefaultPollInterval = 50 * time.Millisecond

// Manager acquires and releases per-key locks against a Backend.
type Manager struct {
	backend Backend
	poll    time.Duration
}

// NewManager creates a lock manager with the default poll interval.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend, poll: DefaultPollInterval}
}

// NewManagerWithPoll creates a lock manager with a custom poll interval,
// mainly for tests that want tight retry loops.
func NewManagerWithPoll(backend Backend, poll time.Duration) *Manager {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Manager{backend: backend, poll: poll}
}

// TryAcquire attempts a single acquisition of key with the given TTL.
// On success it returns an opaque token proving ownership; when the
// lock is held elsewhere it returns "" with a nil error.
func (m *Manager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := m.backend.SetIfAbsent(ctx, key, token, ttl)
	if err != nil {
		return "", fmt.Errorf("lock acquire %q: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// TryAcquireWithWait polls TryAcquire at the manager's poll interval
// until it succeeds or maxWait elapses. Returns "" with a nil error on
// timeout; the caller decides how to surface that.
func (m *Manager) TryAcquireWithWait(ctx context.Context, key string, ttl, maxWait time.Duration) (string, error) {
	deadline := time.Now().Add(maxWait)

	for {
		token, err := m.TryAcquire(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.poll):
		}
	}
}

// Release deletes key only while it still holds the caller's token.
// Returns false (not an error) when the key is absent or held under a
// different token, which happens after TTL expiry and reacquisition.
func (m *Manager) Release(ctx context.Context, key, token string) (bool, error) {
	ok, err := m.backend.DeleteIfValue(ctx, key, token)
	if err != nil {
		return false, fmt.Errorf("lock release %q: %w", key, err)
	}
	return ok, nil
}
