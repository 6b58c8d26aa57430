package engine

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// workingSetTTL bounds staleness when an invalidation is missed, e.g.
// writes from another process against the same database.
const workingSetTTL = time.Minute

// Cache holds per-tenant working sets so conscious-mode context
// assembly does not requery on every prompt. All methods are safe on a
// nil *Cache, which behaves as a miss.
type Cache struct {
	inner *ristretto.Cache
}

// NewCache builds a working-set cache sized for a handful of tenants.
func NewCache() (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 12,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func (c *Cache) get(key tenant.Key) ([]model.ContextRecord, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.inner.Get(key.String())
	if !ok {
		return nil, false
	}
	records, ok := v.([]model.ContextRecord)
	return records, ok
}

func (c *Cache) set(key tenant.Key, records []model.ContextRecord) {
	if c == nil {
		return
	}
	c.inner.SetWithTTL(key.String(), records, 1, workingSetTTL)
}

func (c *Cache) invalidate(key tenant.Key) {
	if c == nil {
		return
	}
	c.inner.Del(key.String())
}

// Wait blocks until pending writes are applied. Ristretto admits
// entries asynchronously; tests call this before asserting hits.
func (c *Cache) Wait() {
	if c != nil {
		c.inner.Wait()
	}
}

// Close releases the cache.
func (c *Cache) Close() {
	if c != nil {
		c.inner.Close()
	}
}
