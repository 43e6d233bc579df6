package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"sync"
)

// MemoryStorage keeps artifacts in a map. Used in tests, where it also
// records calls so cleanup behavior can be asserted, and can be made
// to fail on demand to exercise best-effort paths.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutCalls    []string
	DeleteCalls []string

	// FailPut / FailDelete force the next calls to error.
	FailPut    bool
	FailDelete bool
}

var _ Storage = (*MemoryStorage)(nil)

var errForcedFailure = errors.New("storage failure injected")

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (s *MemoryStorage) Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PutCalls = append(s.PutCalls, key)
	if s.FailPut {
		return "", errForcedFailure
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	return s.URL(key), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls = append(s.DeleteCalls, key)
	if s.FailDelete {
		return errForcedFailure
	}

	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) URL(key string) string {
	return path.Join("/previews", key)
}

// Has reports whether an artifact exists, for test assertions.
func (s *MemoryStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}
