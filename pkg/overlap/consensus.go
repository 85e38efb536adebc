package overlap

import (
	"math"
	"sort"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
)

// MinCutoff keeps a two-collection majority from degrading to "any one".
const MinCutoff = 2.0

// ConsensusEntry is an identifier that met the cutoff.
type ConsensusEntry struct {
	ID          string                `json:"id"`
	Descriptor  collection.Descriptor `json:"descriptor"`
	Occurrences int                   `json:"occurrences"`
}

// ConsensusResult lists identifiers shared by a majority of collections.
type ConsensusResult struct {
	// Entries are ordered by Occurrences descending. Ties keep the order in
	// which the identifiers were first seen.
	Entries []ConsensusEntry `json:"entries"`

	// Cutoff is the minimum occurrence count for inclusion.
	Cutoff float64 `json:"cutoff"`

	// Collections is the number of input collections.
	Collections int `json:"collections"`
}

// Cutoff returns max(n/2, MinCutoff) using real division, so five
// collections require three occurrences.
func Cutoff(n int) float64 {
	return math.Max(float64(n)/2, MinCutoff)
}

// Consensus counts, for every identifier, how many collections contain it
// and keeps those at or above Cutoff(len(cols)).
func Consensus(cols []collection.Collection) (*ConsensusResult, error) {
	if len(cols) == 0 {
		return nil, ErrNoCollections
	}

	cutoff := Cutoff(len(cols))
	counts := make(map[string]int)
	descriptors := make(map[string]collection.Descriptor)
	var order []string

	for _, col := range cols {
		for _, id := range col.Keys() {
			if _, seen := counts[id]; !seen {
				order = append(order, id)
				descriptors[id] = col[id]
			}
			counts[id]++
		}
	}

	entries := make([]ConsensusEntry, 0)
	for _, id := range order {
		if float64(counts[id]) < cutoff {
			continue
		}
		entries = append(entries, ConsensusEntry{
			ID:          id,
			Descriptor:  descriptors[id],
			Occurrences: counts[id],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Occurrences > entries[j].Occurrences
	})

	return &ConsensusResult{
		Entries:     entries,
		Cutoff:      cutoff,
		Collections: len(cols),
	}, nil
}

// Keys returns the qualifying identifiers in result order.
func (r *ConsensusResult) Keys() []string {
	keys := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.ID
	}
	return keys
}
