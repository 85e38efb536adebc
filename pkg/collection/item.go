// Package collection holds the item, page and collection types shared by the
// fetcher and the overlap engine, and folds fetched pages into collections.
package collection

import "sort"

// Descriptor is the display information of an item.
type Descriptor struct {
	// Name is the item title (e.g. the track name).
	Name string `json:"name"`

	// Creator is the primary attribution (e.g. the first artist).
	Creator string `json:"creator"`
}

// String renders the descriptor as "Name by Creator".
func (d Descriptor) String() string {
	if d.Creator == "" {
		return d.Name
	}
	return d.Name + " by " + d.Creator
}

// Item is one entry of a remote collection.
type Item struct {
	// ID is the globally unique identifier. Empty for local items.
	ID string `json:"id"`

	Descriptor Descriptor `json:"descriptor"`

	// Credits lists every attribution in listing order (e.g. all artists of
	// a track). Empty when the listing carries only the primary creator.
	Credits []string `json:"credits,omitempty"`

	// Comparable is false for locally scoped items that have no global
	// identifier. Such items never enter a Collection.
	Comparable bool `json:"comparable"`
}

// Page is one slice of a paginated resource.
type Page struct {
	Items []Item `json:"items"`

	// Total is the item count of the whole resource, not of this page.
	Total int `json:"total"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Collection maps item identifiers to descriptors. Keys are unique.
type Collection map[string]Descriptor

// Len returns the number of distinct items.
func (c Collection) Len() int {
	return len(c)
}

// Has reports whether id is present.
func (c Collection) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// Keys returns the identifiers in ascending order.
func (c Collection) Keys() []string {
	keys := make([]string, 0, len(c))
	for id := range c {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
