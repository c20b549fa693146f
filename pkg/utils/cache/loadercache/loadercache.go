// Package loadercache provides a cache that loads missing entries on demand.
package loadercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/utils/cache"
)

type (
	Option[K comparable, V any] func(*config[K, V])
	item[T any]                 struct {
		data    T
		expires time.Time
	}
	LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)
	config[K comparable, V any]     struct {
		expiration time.Duration
		maxItems   int
		loader     LoaderFunc[K, V]
		l          *log.Logger
		now        func() time.Time
	}
	loaderCache[K comparable, V any] struct {
		mutex  sync.Mutex
		items  map[K]item[*V]
		gen    uint64 // bumped on invalidation
		group  singleflight.Group
		config *config[K, V]
	}
)

// WithExpiration sets the time to live of loaded entries. 0 disables expiry.
func WithExpiration[K comparable, V any](expiration time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.expiration = expiration
	}
}

// WithMaxItems limits the number of entries. Expired entries are dropped
// first, then the entry expiring next.
func WithMaxItems[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		c.maxItems = n
	}
}

func WithLoader[K comparable, V any](lf LoaderFunc[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = lf
	}
}

func WithLogger[K comparable, V any](arg *log.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.l = arg
	}
}

func withClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *config[K, V]) {
		c.now = now
	}
}

func New[K comparable, V any](opts ...Option[K, V]) cache.Cache[K, V] {
	c := &config[K, V]{
		expiration: 5 * time.Minute,
		l:          log.Default().Named("cache"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &loaderCache[K, V]{
		items:  make(map[K]item[*V]),
		config: c,
	}
}

// Get returns the cached entry or loads it. Errors of the loader are
// returned and not cached. Concurrent requests for the same missing key
// share a single load. The lock is not held while loading and waiting
// callers give up when ctx is done.
func (c *loaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mutex.Lock()
	if cacheItem, ok := c.items[key]; ok {
		if !c.expired(cacheItem) {
			c.mutex.Unlock()
			return cacheItem.data, nil
		}
		delete(c.items, key)
	}
	gen := c.gen
	c.mutex.Unlock()

	if c.config.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	ch := c.group.DoChan(flightKey(gen, key), func() (any, error) {
		return c.load(ctx, key, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v, _ := res.Val.(*V)
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loads started before an invalidation must not be joined afterwards
func flightKey[K comparable](gen uint64, key K) string {
	return fmt.Sprintf("%d/%#v", gen, key)
}

func (c *loaderCache[K, V]) expired(i item[*V]) bool {
	return !i.expires.IsZero() && i.expires.Before(c.config.now())
}

func (c *loaderCache[K, V]) load(ctx context.Context, key K, gen uint64) (*V, error) {
	v, err := c.config.loader(ctx, key)
	c.config.l.Debug("loaderCache.load", log.Any("key", key))
	if err != nil {
		c.config.l.Warn("error loading entry", log.ErrorField(err))
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if gen != c.gen {
		c.config.l.Debug("entry invalidated while loading", log.Any("key", key))
		return v, nil
	}
	var expires time.Time
	if c.config.expiration > 0 {
		expires = c.config.now().Add(c.config.expiration)
	}
	c.evict()
	c.items[key] = item[*V]{data: v, expires: expires}
	return v, nil
}

// evict makes room for one more entry
func (c *loaderCache[K, V]) evict() {
	if c.config.maxItems <= 0 || len(c.items) < c.config.maxItems {
		return
	}
	for k, v := range c.items {
		if c.expired(v) {
			delete(c.items, k)
		}
	}
	for len(c.items) >= c.config.maxItems {
		var victim K
		var victimExp time.Time
		first := true
		for k, v := range c.items {
			if first || v.expires.Before(victimExp) {
				victim, victimExp, first = k, v.expires, false
			}
		}
		delete(c.items, victim)
	}
}

func (c *loaderCache[K, V]) Invalidate(ctx context.Context, key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	c.gen++
	c.config.l.Debug("Invalidate",
		log.Any("key", key), log.Int("remain items", len(c.items)))
}

func (c *loaderCache[K, V]) InvalidateAll(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[K]item[*V])
	c.gen++
}
