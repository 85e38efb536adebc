package compare

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/playlist-overlap/pkg/overlap"
)

// Mode selects how playlists are compared.
type Mode string

const (
	// ModeExact keeps items present in every playlist.
	ModeExact Mode = "exact"

	// ModeConsensus keeps items present in at least max(N/2, 2) playlists.
	ModeConsensus Mode = "consensus"
)

// ParseMode reads a mode name. The empty string selects ModeExact.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExact:
		return ModeExact, nil
	case ModeConsensus:
		return ModeConsensus, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Result is the outcome of ComparePlaylists. Exactly one of Overlap and
// Consensus is set, matching Mode.
type Result struct {
	Mode      Mode                     `json:"mode"`
	Resources []string                 `json:"resources"`
	Overlap   *overlap.OverlapResult   `json:"overlap,omitempty"`
	Consensus *overlap.ConsensusResult `json:"consensus,omitempty"`
}
