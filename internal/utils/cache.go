package utils

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// VectorCache is a bounded, expiring cache of embedding vectors with hit accounting.
// It is safe for concurrent use.
type VectorCache struct {
	items  *expirable.LRU[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewVectorCache(size int, ttl time.Duration) *VectorCache {
	return &VectorCache{
		items: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Lookup returns one slot per key, nil where the key is not cached, together
// with the indexes of the missing keys in key order.
func (c *VectorCache) Lookup(keys []string) ([][]float32, []int) {
	vectors := make([][]float32, len(keys))
	var missing []int

	for i, key := range keys {
		if v, ok := c.items.Get(key); ok {
			vectors[i] = cloneVector(v)
			c.hits.Add(1)
			continue
		}
		missing = append(missing, i)
		c.misses.Add(1)
	}

	return vectors, missing
}

func (c *VectorCache) Add(key string, vector []float32) {
	c.items.Add(key, cloneVector(vector))
}

func (c *VectorCache) Size() int {
	return c.items.Len()
}

func (c *VectorCache) Hits() int64 {
	return c.hits.Load()
}

func (c *VectorCache) Misses() int64 {
	return c.misses.Load()
}

func (c *VectorCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
