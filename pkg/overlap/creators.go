package overlap

import (
	"sort"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
)

// DefaultCreatorLimit is the number of creators returned when no limit is set.
const DefaultCreatorLimit = 10

// CreatorShare is one creator's portion of a playlist.
type CreatorShare struct {
	Creator        string  `json:"creator"`
	Items          int     `json:"items"`
	Percentage     float64 `json:"percentage"`
	PercentageText string  `json:"percentage_text"`
}

// CreatorBreakdown is the top creators of a set of items.
type CreatorBreakdown struct {
	Shares []CreatorShare `json:"shares"`

	// Total is the number of credits counted, repeated items included.
	Total int `json:"total"`
}

// CreatorShares counts how often each creator is credited across items. Every
// credit of an item counts; items without credits fall back to the primary
// creator. Unlike collection building, repeated and local items are counted.
// Shares are ordered by count descending, then creator name.
func CreatorShares(items []collection.Item, limit int) *CreatorBreakdown {
	if limit <= 0 {
		limit = DefaultCreatorLimit
	}

	counts := make(map[string]int)
	total := 0
	for _, item := range items {
		credits := item.Credits
		if len(credits) == 0 && item.Descriptor.Creator != "" {
			credits = []string{item.Descriptor.Creator}
		}
		for _, creator := range credits {
			counts[creator]++
			total++
		}
	}

	shares := make([]CreatorShare, 0, len(counts))
	for creator, n := range counts {
		pct := float64(n) / float64(total) * 100
		shares = append(shares, CreatorShare{
			Creator:        creator,
			Items:          n,
			Percentage:     RoundSigFigs(pct, Precision),
			PercentageText: FormatSigFigs(pct, Precision),
		})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Items != shares[j].Items {
			return shares[i].Items > shares[j].Items
		}
		return shares[i].Creator < shares[j].Creator
	})
	if len(shares) > limit {
		shares = shares[:limit]
	}

	return &CreatorBreakdown{Shares: shares, Total: total}
}
