package chat_apps

import "sync"

// DedupCache suppresses redelivered updates. It remembers the last capacity
// update ids and evicts the oldest first, so memory stays bounded no matter
// how long the process runs.
type DedupCache struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
	next     int
}

// NewDedupCache creates a cache remembering up to capacity ids. A capacity
// below 1 is treated as 1.
func NewDedupCache(capacity int) *DedupCache {
	if capacity < 1 {
		capacity = 1
	}
	return &DedupCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
	}
}

// Seen records id and reports whether it was already present. The first call
// for an id returns false, every later call returns true until the id is
// evicted.
func (c *DedupCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	if evicted := c.order[c.next]; evicted != "" {
		delete(c.seen, evicted)
	}
	c.order[c.next] = id
	c.next = (c.next + 1) % c.capacity
	c.seen[id] = struct{}{}

	return false
}

// Len returns the number of ids currently remembered.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
