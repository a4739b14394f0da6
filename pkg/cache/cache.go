// Package cache provides the expiring key/value store used by every read path.
//
// Entries are evicted lazily: a Get at or after an entry's expiry reports the
// key as absent and removes it. There is no background sweeper; keys are
// bounded by the number of distinct items looked up during a process
// lifetime. Long-running processes can call Purge to drop expired entries.
package cache

import (
	"sync"
	"time"
)

// Domain namespaces keys that share one cache instance.
type Domain string

const (
	DomainListing  Domain = "listing"
	DomainMetadata Domain = "meta"
	DomainIdentity Domain = "identity"
)

// Key identifies an entry by (domain, id).
type Key struct {
	Domain Domain
	ID     string
}

// String renders the key as "domain:id" for logs.
func (k Key) String() string {
	return string(k.Domain) + ":" + k.ID
}

// ListingKey is the key for a user's watchlist.
func ListingKey(user string) Key { return Key{Domain: DomainListing, ID: user} }

// MetadataKey is the key for a film's metadata.
func MetadataKey(slug string) Key { return Key{Domain: DomainMetadata, ID: slug} }

// IdentityKey is the key for an external identifier's slug mapping.
func IdentityKey(externalID string) Key { return Key{Domain: DomainIdentity, ID: externalID} }

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache for values of type V. It is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[Key]entry[V]
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries: make(map[Key]entry[V]),
		now:     o.now,
	}
}

// Set stores value under key until now+ttl, replacing any previous entry and its expiry.
func (c *Cache[V]) Set(key Key, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Delete removes key.
func (c *Cache[V]) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteDomain removes every key in domain and returns how many were removed.
func (c *Cache[V]) DeleteDomain(domain Domain) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if k.Domain == domain {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Purge drops all expired entries and returns how many were removed.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
