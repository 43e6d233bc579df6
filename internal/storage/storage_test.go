package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProviderSelection(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := New(Config{Provider: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStorage{}, s)
	})

	t.Run("local", func(t *testing.T) {
		s, err := New(Config{Provider: "local", LocalPath: t.TempDir(), LocalURL: "/previews"})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("empty defaults to local", func(t *testing.T) {
		s, err := New(Config{LocalPath: t.TempDir(), LocalURL: "/previews"})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "s3"})
		require.Error(t, err)

		var serr *StorageError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, codeInvalid, serr.ErrorCode())
		assert.Contains(t, serr.Error(), "s3")
	})
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewLocalStorage(dir, "/previews")
	require.NoError(t, err)

	key := "customizations/u1/c1.png"

	url, err := s.Put(ctx, key, strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/previews/customizations/u1/c1.png", url)
	assert.Equal(t, url, s.URL(key))

	data, err := os.ReadFile(filepath.Join(dir, "customizations", "u1", "c1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "customizations", "u1", "c1.png"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an absent key is idempotent.
	assert.NoError(t, s.Delete(ctx, key))
}
