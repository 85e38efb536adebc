package cache

import (
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
)

// CollectionEntry is the cached, fully fetched content of one resource.
type CollectionEntry struct {
	// Resource is the catalog resource path the items were fetched from
	Resource string `json:"resource"`

	// Items in fetch order, non-comparable items included
	Items []collection.Item `json:"items"`

	// Total as reported by the catalog
	Total int `json:"total"`

	// CachedAt is when we cached this entry
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`
}

// NewEntry flattens fetched pages into an entry expiring after ttl.
func NewEntry(resource string, pages []*collection.Page, ttl time.Duration) *CollectionEntry {
	now := time.Now()
	entry := &CollectionEntry{
		Resource: resource,
		Items:    collection.Items(pages),
		CachedAt: now,
		Expires:  now.Add(ttl),
	}
	if len(pages) > 0 && pages[0] != nil {
		entry.Total = pages[0].Total
	}
	return entry
}

// Pages returns the entry as a single page so it can be folded like a
// fresh fetch.
func (e *CollectionEntry) Pages() []*collection.Page {
	return []*collection.Page{{
		Items: e.Items,
		Total: e.Total,
		Limit: len(e.Items),
	}}
}

// IsExpired returns true if the cache entry has expired.
func (e *CollectionEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CollectionEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
