// Package cache holds recently computed detection results with a per-category
// time-to-live. Expiry is lazy: stale entries are ignored on read and replaced
// on the next write, and nothing sweeps them in the background.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

// Default TTLs per category
const (
	DefaultDNSLeakTTL = 10 * time.Minute
	DefaultPurityTTL  = 5 * time.Minute
	DefaultPrivacyTTL = 5 * time.Minute
)

// Entry is a single cached result
type Entry struct {
	Key      string
	Value    *models.DetectionResult
	StoredAt time.Time
}

// ResultCache maps a category-scoped key to its most recent result
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     map[models.Category]time.Duration
	now     func() time.Time
}

// Option customises a ResultCache
type Option func(*ResultCache)

// WithClock replaces time.Now, letting tests advance time deterministically
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// WithTTL overrides the TTL of one category
func WithTTL(category models.Category, ttl time.Duration) Option {
	return func(c *ResultCache) {
		if ttl > 0 {
			c.ttl[category] = ttl
		}
	}
}

// New creates an empty cache with the default category TTLs
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]Entry),
		ttl: map[models.Category]time.Duration{
			models.CategoryDNSLeak: DefaultDNSLeakTTL,
			models.CategoryPurity:  DefaultPurityTTL,
			models.CategoryPrivacy: DefaultPrivacyTTL,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key for a request. DNS-leak has no subject, so its key
// is constant.
func Key(category models.Category, ip string) string {
	if category == models.CategoryDNSLeak {
		return string(models.CategoryDNSLeak)
	}
	return string(category) + ":" + ip
}

// TTL returns the validity window for the category owning key
func (c *ResultCache) TTL(key string) time.Duration {
	category, _, _ := strings.Cut(key, ":")
	if ttl, ok := c.ttl[models.Category(category)]; ok {
		return ttl
	}
	return DefaultPrivacyTTL
}

// Get returns a copy of the cached result, or false when absent or expired
func (c *ResultCache) Get(key string) (*models.DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.StoredAt) >= c.TTL(key) {
		return nil, false
	}
	return entry.Value.Clone(), true
}

// Put stores a copy of value under key, superseding any previous entry
func (c *ResultCache) Put(key string, value *models.DetectionResult) {
	if value == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Key:      key,
		Value:    value.Clone(),
		StoredAt: c.now(),
	}
}

// Len reports the number of stored entries, expired ones included
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
