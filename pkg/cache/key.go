package cache

import (
	"fmt"
	"strings"
)

// keyPrefix namespaces all cache keys in Redis.
const keyPrefix = "overlap:collection"

// CollectionKey identifies the cached items of one resource.
type CollectionKey struct {
	// Resource is the catalog resource path (e.g. "playlists/{id}/tracks").
	Resource string

	// PageSize is part of the key since page boundaries differ per size.
	PageSize int
}

// String generates a deterministic cache key string.
// Format: overlap:collection:<resource>:limit=<page size>
//
// Example:
//
//	overlap:collection:playlists/abc/tracks:limit=100
func (k CollectionKey) String() string {
	resource := strings.Trim(k.Resource, "/")
	return fmt.Sprintf("%s:%s:limit=%d", keyPrefix, resource, k.PageSize)
}
