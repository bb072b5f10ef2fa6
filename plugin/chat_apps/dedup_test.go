package chat_apps

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupCacheSeen(t *testing.T) {
	cache := NewDedupCache(4)

	assert.False(t, cache.Seen("a"))
	assert.True(t, cache.Seen("a"))
	assert.False(t, cache.Seen("b"))
	assert.True(t, cache.Seen("a"))
}

func TestDedupCacheEvictsOldest(t *testing.T) {
	cache := NewDedupCache(2)

	assert.False(t, cache.Seen("a"))
	assert.False(t, cache.Seen("b"))
	assert.False(t, cache.Seen("c")) // evicts a

	assert.False(t, cache.Seen("a"))
	assert.Equal(t, 2, cache.Len())
}

func TestDedupCacheMinimumCapacity(t *testing.T) {
	cache := NewDedupCache(0)

	assert.False(t, cache.Seen("a"))
	assert.True(t, cache.Seen("a"))
	assert.False(t, cache.Seen("b"))
	assert.False(t, cache.Seen("a"))
}

func TestDedupCacheConcurrent(t *testing.T) {
	cache := NewDedupCache(128)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Seen(fmt.Sprintf("%d-%d", worker, j%32))
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 128)
}
