// Package overlap computes comparison metrics across collections: the exact
// intersection with an overlap percentage, and a majority consensus set.
package overlap

import (
	"errors"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
)

// Precision is the number of significant figures used for percentages.
const Precision = 3

var (
	// ErrEmptyDenominator is returned by Intersect when the summed size of
	// all collections is zero.
	ErrEmptyDenominator = errors.New("overlap: all collections are empty")

	// ErrNoCollections is returned by Consensus when no collection is given.
	ErrNoCollections = errors.New("overlap: no collections given")
)

// Entry is an identifier paired with its descriptor.
type Entry struct {
	ID         string                `json:"id"`
	Descriptor collection.Descriptor `json:"descriptor"`
}

// OverlapResult is the exact intersection of several collections.
type OverlapResult struct {
	// Entries are the shared items, ordered by ID.
	Entries []Entry `json:"entries"`

	// Count is len(Entries).
	Count int `json:"count"`

	// Total is the sum of all collection sizes (not the union size).
	Total int `json:"total"`

	// Percentage is Count/Total*100 rounded to Precision significant figures.
	Percentage float64 `json:"percentage"`

	// PercentageText is Percentage formatted for display, e.g. "33.3".
	PercentageText string `json:"percentage_text"`
}

// Intersect returns the identifiers present in every collection.
//
// The percentage denominator is the sum of the collection sizes, so two
// identical collections report 50%, not 100%. A shared item takes its
// descriptor from the last collection.
func Intersect(cols []collection.Collection) (*OverlapResult, error) {
	total := 0
	for _, col := range cols {
		total += col.Len()
	}
	if total == 0 {
		return nil, ErrEmptyDenominator
	}

	keys := make(map[string]struct{}, cols[0].Len())
	for id := range cols[0] {
		keys[id] = struct{}{}
	}
	for _, col := range cols[1:] {
		for id := range keys {
			if !col.Has(id) {
				delete(keys, id)
			}
		}
	}

	last := cols[len(cols)-1]
	shared := make(collection.Collection, len(keys))
	for id := range keys {
		shared[id] = last[id]
	}

	entries := make([]Entry, 0, len(shared))
	for _, id := range shared.Keys() {
		entries = append(entries, Entry{ID: id, Descriptor: shared[id]})
	}

	pct := float64(len(entries)) / float64(total) * 100
	return &OverlapResult{
		Entries:        entries,
		Count:          len(entries),
		Total:          total,
		Percentage:     RoundSigFigs(pct, Precision),
		PercentageText: FormatSigFigs(pct, Precision),
	}, nil
}

// Keys returns the shared identifiers.
func (r *OverlapResult) Keys() []string {
	keys := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.ID
	}
	return keys
}
