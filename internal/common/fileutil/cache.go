package fileutil

import (
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry holds parsed data alongside file metadata for staleness detection.
type entry[T any] struct {
	data         T
	size         int64
	lastModified int64
}

// Cache memoizes parsed file contents keyed by path. Entries expire by LRU
// and TTL, and are re-read when the file's size or modification time change
// on disk.
type Cache[T any] struct {
	lru *expirable.LRU[string, entry[T]]
}

// NewCache creates a cache with the given capacity and time-to-live.
// A capacity of 0 means unlimited size.
func NewCache[T any](capacity int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		lru: expirable.NewLRU[string, entry[T]](capacity, nil, ttl),
	}
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	return c.lru.Len()
}

// Invalidate removes an entry from the cache.
func (c *Cache[T]) Invalidate(path string) {
	c.lru.Remove(path)
}

// LoadLatest returns the cached data for path, re-running loader when the
// entry is missing or stale relative to the file on disk.
func (c *Cache[T]) LoadLatest(path string, loader func() (T, error)) (T, error) {
	stale, fi, err := c.isStale(path)
	if err != nil {
		var zero T
		return zero, err
	}
	if !stale {
		if e, ok := c.lru.Get(path); ok {
			return e.data, nil
		}
	}
	data, err := loader()
	if err != nil {
		var zero T
		return zero, err
	}
	c.lru.Add(path, entry[T]{
		data:         data,
		size:         fi.Size(),
		lastModified: fi.ModTime().Unix(),
	})
	return data, nil
}

func (c *Cache[T]) isStale(path string) (bool, os.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return true, fi, err
	}
	e, ok := c.lru.Peek(path)
	if !ok {
		return true, fi, nil
	}
	return e.lastModified < fi.ModTime().Unix() || e.size != fi.Size(), fi, nil
}
