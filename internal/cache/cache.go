package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader returns up to limit of the most recent values for warming.
type Loader[V any] func(ctx context.Context, limit int) ([]V, error)

// Cache is a fixed-size LRU of values indexed by a key derived from the value.
// Values are stored as given: slices and pointers inside them stay shared with
// the caller, so cached values must not be mutated.
type Cache[K comparable, V any] struct {
	size int
	key  func(V) K
	lru  *lru.Cache[K, V]
}

func New[K comparable, V any](size int, key func(V) K) (*Cache[K, V], error) {
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{
		size: size,
		key:  key,
		lru:  c,
	}, nil
}

// Warm fills the cache from load. It returns the number of values stored.
func (c *Cache[K, V]) Warm(ctx context.Context, load Loader[V]) (int, error) {
	values, err := load(ctx, c.size)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		c.Set(v)
	}
	return len(values), nil
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *Cache[K, V]) Set(v V) {
	c.lru.Add(c.key(v), v)
}
