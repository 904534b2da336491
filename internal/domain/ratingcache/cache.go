// Package ratingcache memoizes the rating a user gave a ranking.
//
// Writers must call Invalidate before acknowledging a rating change. Readers
// take a Token before going to the store and pass it to Fill; a fill whose
// token predates an invalidation of the same ranking is discarded, so a slow
// reader cannot put a stale value back after a write.
package ratingcache

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	defaultMaxSize = 10000
	stripes        = 64
)

// Key identifies one (ranking, user) pair.
type Key struct {
	RankingID int64
	UserID    int64
}

// Entry is a cached lookup. Found is false when the user has not rated the ranking.
type Entry struct {
	Stars int
	Found bool
}

// Token snapshots the invalidation state of a key's ranking.
type Token struct {
	stripe int
	epoch  uint64
}

// Cache is a bounded (ranking, user) -> rating memo.
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Token(key Key) Token
	// Fill stores e unless key's ranking was invalidated after tok was taken.
	Fill(ctx context.Context, key Key, e Entry, tok Token) bool
	Invalidate(ctx context.Context, key Key)
	InvalidateRanking(ctx context.Context, rankingID int64)
	Size() int64
}

type node struct {
	key        Key
	entry      Entry
	prev, next *node
}

func (n *node) reset() {
	*n = node{}
}

// lruCache keeps entries in a doubly linked list, most recently used at head.
type lruCache struct {
	mu       sync.Mutex
	entries  map[Key]*node
	head     *node
	tail     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
	epochs   [stripes]atomic.Uint64
}

// New creates a cache with configuration options.
func New(opts ...Option) Cache {
	c := &lruCache{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = make(map[Key]*node)
	c.nodePool = sync.Pool{New: func() interface{} { return &node{} }}
	return c
}

func stripeOf(rankingID int64) int {
	return int(uint64(rankingID) % stripes)
}

// Get returns the cached entry and marks it recently used.
func (c *lruCache) Get(_ context.Context, key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	c.moveToFront(n)
	return n.entry, true
}

// Token records the current epoch of key's ranking stripe.
func (c *lruCache) Token(key Key) Token {
	s := stripeOf(key.RankingID)
	return Token{stripe: s, epoch: c.epochs[s].Load()}
}

// Fill inserts or refreshes an entry, evicting the least recently used one when full.
func (c *lruCache) Fill(_ context.Context, key Key, e Entry, tok Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// epochs only move under mu, so this check cannot race an Invalidate.
	if tok.stripe != stripeOf(key.RankingID) || c.epochs[tok.stripe].Load() != tok.epoch {
		return false
	}
	if c.maxSize <= 0 {
		return false
	}

	if n, ok := c.entries[key]; ok {
		n.entry = e
		c.moveToFront(n)
		return true
	}
	if len(c.entries) >= c.maxSize {
		c.evictTail()
	}

	n := c.nodePool.Get().(*node)
	n.key = key
	n.entry = e
	c.pushFront(n)
	c.entries[key] = n
	c.size.Add(1)
	return true
}

// Invalidate drops one entry and fences in-flight fills for its ranking.
func (c *lruCache) Invalidate(_ context.Context, key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs[stripeOf(key.RankingID)].Add(1)
	if n, ok := c.entries[key]; ok {
		c.remove(n)
	}
}

// InvalidateRanking drops every entry of a ranking.
func (c *lruCache) InvalidateRanking(_ context.Context, rankingID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs[stripeOf(rankingID)].Add(1)
	for k, n := range c.entries {
		if k.RankingID == rankingID {
			c.remove(n)
		}
	}
}

// Size returns the current number of entries.
func (c *lruCache) Size() int64 {
	return c.size.Load()
}

// list helpers; callers hold mu.

func (c *lruCache) pushFront(n *node) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *lruCache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *lruCache) moveToFront(n *node) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *lruCache) remove(n *node) {
	c.unlink(n)
	delete(c.entries, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

func (c *lruCache) evictTail() {
	if c.tail != nil {
		c.remove(c.tail)
	}
}
