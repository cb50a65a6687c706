package acquire

import (
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long an entry stays in a Cache built with ttl <= 0.
const DefaultCacheTTL = 5 * time.Minute

// Cache keeps the raw bytes of recently read files, keyed by path, so repeated
// requests for the same image skip the disk. Each entry remembers the Version
// it was read at; a lookup for any other version misses, so an edited file is
// read again.
//
// Cache is safe for concurrent use by multiple goroutines. Cached slices are
// shared; callers must not modify them.
//
// Expired entries are dropped on the next Put rather than by a background
// goroutine, so a Cache never outlives its last user.
type Cache struct {
	items *cache.Cache
}

// NewCache creates an empty cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{items: cache.New(ttl, 0)}
}

// Version identifies one revision of a file by its modification time and size.
type Version struct {
	ModTime time.Time
	Size    int64
}

// VersionOf returns the Version described by info.
func VersionOf(info os.FileInfo) Version {
	return Version{ModTime: info.ModTime(), Size: info.Size()}
}

type entry struct {
	version Version
	data    []byte
}

// Get returns the bytes cached for path if they were read at version v.
func (c *Cache) Get(path string, v Version) ([]byte, bool) {
	item, ok := c.items.Get(path)
	if !ok {
		return nil, false
	}
	e := item.(entry)
	if !e.version.ModTime.Equal(v.ModTime) || e.version.Size != v.Size {
		return nil, false
	}
	return e.data, true
}

// Put stores data read from path at version v, replacing any older entry.
func (c *Cache) Put(path string, v Version, data []byte) {
	c.items.DeleteExpired()
	c.items.SetDefault(path, entry{version: v, data: data})
}

// Evict removes path from the cache. Unknown paths are ignored.
func (c *Cache) Evict(path string) {
	c.items.Delete(path)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.items.Flush()
}

// Len is the number of entries, including expired ones not yet dropped.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
