// Package emote keeps the process-wide cache of chat emote thumbnails and
// loads them from the URLs the chat server advertises on join.
package emote

import (
	"image"
	"sync"
)

// Emote is a loaded emote thumbnail. Data holds the PNG encoding of Image.
type Emote struct {
	Code  string
	Data  []byte
	Image image.Image
}

// Cache maps emote codes to loaded emotes. Entries are never evicted.
type Cache struct {
	mu     sync.RWMutex
	emotes map[string]Emote
}

// Shared is the cache used for the lifetime of the process.
var Shared = NewCache()

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{emotes: make(map[string]Emote)}
}

func (c *Cache) Get(code string) (Emote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.emotes[code]
	return e, ok
}

func (c *Cache) Has(code string) bool {
	_, ok := c.Get(code)
	return ok
}

func (c *Cache) Put(e Emote) {
	c.mu.Lock()
	c.emotes[e.Code] = e
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.emotes)
}

// Snapshot copies the cache so callers can read it without holding the lock.
func (c *Cache) Snapshot() map[string]Emote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Emote, len(c.emotes))
	for k, v := range c.emotes {
		out[k] = v
	}
	return out
}
