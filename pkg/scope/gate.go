// Package scope checks that a caller has granted the permissions a
// comparison needs before any catalog request is made on their behalf.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ScopePlaylistReadPrivate allows reading a user's private playlists.
const ScopePlaylistReadPrivate = "playlist-read-private"

var (
	// ErrNotAuthorized is returned when the granted scopes do not cover
	// the required ones.
	ErrNotAuthorized = errors.New("caller not authorized")

	// ErrUnknownCaller is returned by stores that have no grant for a caller.
	ErrUnknownCaller = errors.New("unknown caller")
)

// Store yields the scopes a caller has granted.
type Store interface {
	// GrantedScopes returns ErrUnknownCaller when the caller never
	// authorized the application.
	GrantedScopes(ctx context.Context, callerID string) ([]string, error)
}

// ScopeError reports which required scopes a caller is missing.
type ScopeError struct {
	CallerID string
	Missing  []string
	Err      error
}

// Error implements the error interface.
func (e *ScopeError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("caller %s: %v", e.CallerID, e.Err)
	}
	return fmt.Sprintf("caller %s missing scopes [%s]: %v",
		e.CallerID, strings.Join(e.Missing, " "), e.Err)
}

// Unwrap returns ErrNotAuthorized, plus the store error when there is one.
func (e *ScopeError) Unwrap() []error {
	if e.Err == nil || errors.Is(e.Err, ErrNotAuthorized) {
		return []error{ErrNotAuthorized}
	}
	return []error{ErrNotAuthorized, e.Err}
}

// Gate is the precondition check in front of every comparison.
type Gate struct {
	store  Store
	logger zerolog.Logger
}

// NewGate creates a gate backed by store.
func NewGate(store Store) *Gate {
	return &Gate{
		store:  store,
		logger: log.With().Str("component", "scope-gate").Logger(),
	}
}

// HasRequiredScope reports whether the caller's granted scopes are a
// superset of required. Store failures other than an unknown caller are
// returned as errors.
func (g *Gate) HasRequiredScope(ctx context.Context, callerID string, required []string) (bool, error) {
	missing, err := g.missing(ctx, callerID, required)
	if err != nil {
		if errors.Is(err, ErrUnknownCaller) {
			return false, nil
		}
		return false, err
	}
	return len(missing) == 0, nil
}

// Check returns nil when the caller holds every required scope and a
// *ScopeError wrapping ErrNotAuthorized otherwise.
func (g *Gate) Check(ctx context.Context, callerID string, required ...string) error {
	missing, err := g.missing(ctx, callerID, required)
	switch {
	case errors.Is(err, ErrUnknownCaller):
		g.logger.Info().Str("caller_id", callerID).Msg("Unknown caller rejected")
		return &ScopeError{CallerID: callerID, Missing: Normalize(required), Err: ErrUnknownCaller}
	case err != nil:
		return fmt.Errorf("load scopes for %s: %w", callerID, err)
	case len(missing) > 0:
		g.logger.Info().
			Str("caller_id", callerID).
			Strs("missing", missing).
			Msg("Caller lacks required scopes")
		return &ScopeError{CallerID: callerID, Missing: missing, Err: ErrNotAuthorized}
	}
	return nil
}

func (g *Gate) missing(ctx context.Context, callerID string, required []string) ([]string, error) {
	granted, err := g.store.GrantedScopes(ctx, callerID)
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}

	var missing []string
	for _, s := range Normalize(required) {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing, nil
}

// ParseScopes splits a space separated scope string.
func ParseScopes(raw string) []string {
	return Normalize(strings.Fields(raw))
}

// Normalize returns the distinct non-empty scopes in sorted order.
func Normalize(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// JoinScopes renders scopes in the stored space separated form.
func JoinScopes(scopes []string) string {
	return strings.Join(Normalize(scopes), " ")
}
