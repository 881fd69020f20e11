package speechsvc

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes synthesized audio keyed by the exact input text. Entries
// never expire; the set of distinct utterances an app speaks is small.
// Two goroutines racing on a cold key may both hit upstream; use DedupCache
// when that matters.
type Cache struct {
	next Synthesizer

	mu    sync.RWMutex
	audio map[string][]byte
}

var _ Synthesizer = (*Cache)(nil)

func NewCache(next Synthesizer) *Cache {
	return &Cache{next: next, audio: make(map[string][]byte)}
}

func (c *Cache) Speak(ctx context.Context, text string) ([]byte, error) {
	c.mu.RLock()
	audio, ok := c.audio[text]
	c.mu.RUnlock()
	if ok {
		return audio, nil
	}

	audio, err := c.next.Speak(ctx, text)
	if err != nil {
		// a failed call must not poison the cache
		return nil, err
	}

	c.mu.Lock()
	c.audio[text] = audio
	c.mu.Unlock()
	return audio, nil
}

// Len reports the number of cached utterances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.audio)
}

// DedupCache is a Cache that additionally collapses concurrent first access
// to the same text into a single upstream call.
type DedupCache struct {
	cache *Cache
	group singleflight.Group
}

var _ Synthesizer = (*DedupCache)(nil)

func NewDedupCache(next Synthesizer) *DedupCache {
	return &DedupCache{cache: NewCache(next)}
}

func (c *DedupCache) Speak(ctx context.Context, text string) ([]byte, error) {
	v, err, _ := c.group.Do(text, func() (interface{}, error) {
		return c.cache.Speak(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *DedupCache) Len() int { return c.cache.Len() }
