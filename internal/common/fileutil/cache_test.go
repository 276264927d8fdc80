package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0600))

	cache := NewCache[string](10, time.Hour)
	calls := 0
	loader := func() (string, error) {
		calls++
		data, err := os.ReadFile(path)
		return string(data), err
	}

	got, err := cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Len())

	// Unchanged file served from cache.
	got, err = cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, 1, calls)

	// A grown file is stale and reloads.
	require.NoError(t, os.WriteFile(path, []byte("v2+more"), 0600))
	got, err = cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "v2+more", got)
	assert.Equal(t, 2, calls)
}

func TestCacheLoadLatestMissingFile(t *testing.T) {
	t.Parallel()

	cache := NewCache[string](10, time.Hour)
	_, err := cache.LoadLatest(filepath.Join(t.TempDir(), "absent"), func() (string, error) {
		t.Fatal("loader must not run for a missing file")
		return "", nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestCacheLoaderError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	cache := NewCache[string](10, time.Hour)
	boom := errors.New("parse failed")
	_, err := cache.LoadLatest(path, func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len(), "failed loads are not cached")
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	cache := NewCache[int](10, time.Hour)
	calls := 0
	loader := func() (int, error) { calls++; return calls, nil }

	_, err := cache.LoadLatest(path, loader)
	require.NoError(t, err)
	cache.Invalidate(path)

	got, err := cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "invalidation forces a reload")
}
