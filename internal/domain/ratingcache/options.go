package ratingcache

// Option applies a configuration option to the cache.
type Option func(*lruCache)

// WithMaxSize sets the maximum number of entries. Zero or negative disables caching.
func WithMaxSize(maxSize int) Option {
	return func(c *lruCache) {
		c.maxSize = maxSize
	}
}
