package frontmatter

import (
	"os"
	"sync"
	"time"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

// ReadFile reads and parses one document from disk.
func ReadFile(path string) (Meta, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, "", err
	}
	m, body, err := Parse(string(raw))
	if err != nil {
		return Meta{}, "", apperr.Wrap(err, "frontmatter.read", path)
	}
	return m, body, nil
}

type cacheEntry struct {
	mtime time.Time
	size  int64
	meta  Meta
	body  string
}

// Cache memoizes parsed documents keyed on path plus file modification
// time, so an edited artefact is never served stale. Safe for concurrent
// use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache returns an empty document cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// ReadFile is the cached equivalent of the package-level ReadFile.
func (c *Cache) ReadFile(path string) (Meta, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Meta{}, "", err
	}

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && entry.mtime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.meta, entry.body, nil
	}

	meta, body, err := ReadFile(path)
	if err != nil {
		return Meta{}, "", err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{mtime: info.ModTime(), size: info.Size(), meta: meta, body: body}
	c.mu.Unlock()

	return meta, body, nil
}
