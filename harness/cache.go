package harness

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 32

// CacheStore is a TTL memoization layer with request coalescing. Callers go
// through Fill: a fresh entry is returned as-is, otherwise exactly one
// underlying fill runs per key no matter how many callers arrive
// concurrently, and all of them observe the same resolved value. Failed
// fills are never cached, so a transient error cannot masquerade as a
// persistent one.
type CacheStore[V any] struct {
	mu       sync.Mutex
	entries  *expirable.LRU[string, V]
	inflight map[string]*inflightFill[V]
}

type inflightFill[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewCacheStore creates a store whose entries expire ttl after insertion.
func NewCacheStore[V any](ttl time.Duration) *CacheStore[V] {
	return &CacheStore[V]{
		entries:  expirable.NewLRU[string, V](defaultCacheSize, nil, ttl),
		inflight: make(map[string]*inflightFill[V]),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *CacheStore[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Put stores value under key, resetting its expiry.
func (c *CacheStore[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, value)
}

// Invalidate drops the entry for key, if any. In-flight fills are not
// affected; their result still lands in the cache when they resolve.
func (c *CacheStore[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Fill returns the cached value for key, or runs fill to produce one. At
// most one fill per key is in flight at a time; latecomers block until it
// resolves and share its outcome. A caller whose context expires while
// waiting gets the context error, but the fill itself keeps running for the
// remaining waiters.
func (c *CacheStore[V]) Fill(ctx context.Context, key string, fill func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if value, ok := c.entries.Get(key); ok {
		c.mu.Unlock()
		return value, nil
	}

	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	call := &inflightFill[V]{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.value, call.err = fill(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if call.err == nil {
		c.entries.Add(key, call.value)
	}
	c.mu.Unlock()
	close(call.done)

	return call.value, call.err
}
