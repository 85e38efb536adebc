package compare

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Sternrassler/playlist-overlap/pkg/overlap"
)

// DefaultMessageLimit is the maximum length of one chat message.
const DefaultMessageLimit = 2000

const fence = "```"

// FormatLines packs lines into code-fenced blocks no longer than limit.
// A line too long for an empty block is truncated.
func FormatLines(lines []string, limit int) []string {
	if limit <= 2*len(fence)+1 {
		limit = DefaultMessageLimit
	}
	maxLine := limit - 2*len(fence) - 1

	var blocks []string
	var b strings.Builder
	for _, line := range lines {
		line = truncate(line, maxLine)

		if b.Len() > 0 && b.Len()+len(line)+1+len(fence) > limit {
			b.WriteString(fence)
			blocks = append(blocks, b.String())
			b.Reset()
		}
		if b.Len() == 0 {
			b.WriteString(fence)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		b.WriteString(fence)
		blocks = append(blocks, b.String())
	}
	return blocks
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// OverlapSummary is the headline of an exact comparison.
func OverlapSummary(r *overlap.OverlapResult) string {
	return fmt.Sprintf("You have a %s%% overlap, or %d songs", r.PercentageText, r.Count)
}

// OverlapLines renders one line per shared item.
func OverlapLines(r *overlap.OverlapResult) []string {
	lines := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		lines = append(lines, e.Descriptor.String())
	}
	return lines
}

// ConsensusSummary is the headline of a consensus comparison.
func ConsensusSummary(r *overlap.ConsensusResult) string {
	return fmt.Sprintf("%d songs appear in at least %g of %d playlists",
		len(r.Entries), r.Cutoff, r.Collections)
}

// ConsensusLines renders one line per item with its occurrence count.
func ConsensusLines(r *overlap.ConsensusResult) []string {
	lines := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		lines = append(lines, fmt.Sprintf("%s (%d/%d)", e.Descriptor.String(), e.Occurrences, r.Collections))
	}
	return lines
}

// CreatorLines renders one line per creator share.
func CreatorLines(b *overlap.CreatorBreakdown) []string {
	lines := make([]string, 0, len(b.Shares))
	for _, s := range b.Shares {
		lines = append(lines, fmt.Sprintf("%s: %s%%", s.Creator, s.PercentageText))
	}
	return lines
}
