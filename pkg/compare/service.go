// Package compare implements the comparison operations: it checks the
// caller's scopes, fetches every resource, folds the pages into collections
// and runs the overlap engine.
package compare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/cache"
	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/overlap"
	"github.com/Sternrassler/playlist-overlap/pkg/scope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlap_comparisons_total",
		Help: "Total comparison operations by operation and outcome kind",
	}, []string{"operation", "kind"})

	comparisonDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlap_comparison_duration_seconds",
		Help:    "Comparison duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"operation"})
)

// Fetcher retrieves every page of a resource.
type Fetcher interface {
	FetchAll(ctx context.Context, resourceID string, pageSize int) ([]*collection.Page, error)
}

// Authorizer is the scope precondition. *scope.Gate implements it.
type Authorizer interface {
	Check(ctx context.Context, callerID string, required ...string) error
}

// Config holds the service configuration.
type Config struct {
	// PlaylistPageSize is the page size for playlist tracks.
	PlaylistPageSize int

	// ListingPageSize is the page size for a user's playlist listing.
	ListingPageSize int

	// ResourceConcurrency bounds how many resources are fetched at once.
	// 1 fetches one resource after another.
	ResourceConcurrency int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		PlaylistPageSize:    100,
		ListingPageSize:     50,
		ResourceConcurrency: 1,
	}
}

// Service runs comparisons.
type Service struct {
	gate    Authorizer
	fetcher Fetcher
	cache   *cache.Manager
	config  Config
	logger  zerolog.Logger
}

// NewService creates a service. cacheManager may be nil to disable caching.
func NewService(gate Authorizer, fetcher Fetcher, cacheManager *cache.Manager, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.PlaylistPageSize <= 0 {
		cfg.PlaylistPageSize = def.PlaylistPageSize
	}
	if cfg.ListingPageSize <= 0 {
		cfg.ListingPageSize = def.ListingPageSize
	}
	if cfg.ResourceConcurrency <= 0 {
		cfg.ResourceConcurrency = def.ResourceConcurrency
	}

	return &Service{
		gate:    gate,
		fetcher: fetcher,
		cache:   cacheManager,
		config:  cfg,
		logger:  log.With().Str("component", "compare").Logger(),
	}
}

// Compare intersects the music of several users. A user's collection is
// every track across all of their playlists. Each user must have granted
// playlist-read-private.
func (s *Service) Compare(ctx context.Context, userIDs []string) (result *overlap.OverlapResult, err error) {
	defer s.observe("compare", time.Now(), &err)

	if len(userIDs) < 2 {
		return nil, fmt.Errorf("%w: got %d users", ErrTooFewResources, len(userIDs))
	}

	for _, userID := range userIDs {
		if err := s.gate.Check(ctx, userID, scope.ScopePlaylistReadPrivate); err != nil {
			return nil, err
		}
	}

	cols, err := s.collectAll(ctx, userIDs, s.userCollection)
	if err != nil {
		return nil, err
	}

	result, err = overlap.Intersect(cols)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Strs("users", userIDs).
		Int("overlap", result.Count).
		Int("total", result.Total).
		Str("percentage", result.PercentageText).
		Msg("Compared users")

	return result, nil
}

// ComparePlaylists compares playlists on behalf of callerID. References
// may be share links, URIs or bare ids.
func (s *Service) ComparePlaylists(ctx context.Context, callerID string, playlistRefs []string, mode Mode) (result *Result, err error) {
	defer s.observe("compare_playlists", time.Now(), &err)

	if mode != ModeExact && mode != ModeConsensus {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if len(playlistRefs) < 2 {
		return nil, fmt.Errorf("%w: got %d playlists", ErrTooFewResources, len(playlistRefs))
	}

	ids := make([]string, len(playlistRefs))
	for i, ref := range playlistRefs {
		id, err := collection.ParseResourceID(ref)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	if err := s.gate.Check(ctx, callerID, scope.ScopePlaylistReadPrivate); err != nil {
		return nil, err
	}

	cols, err := s.collectAll(ctx, ids, s.playlistCollection)
	if err != nil {
		return nil, err
	}

	result = &Result{Mode: mode, Resources: ids}
	switch mode {
	case ModeConsensus:
		result.Consensus, err = overlap.Consensus(cols)
	default:
		result.Overlap, err = overlap.Intersect(cols)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("caller_id", callerID).
		Strs("playlists", ids).
		Str("mode", string(mode)).
		Msg("Compared playlists")

	return result, nil
}

// CreatorBreakdown returns the most frequent creators of a playlist.
func (s *Service) CreatorBreakdown(ctx context.Context, callerID, playlistRef string, limit int) (breakdown *overlap.CreatorBreakdown, err error) {
	defer s.observe("creator_breakdown", time.Now(), &err)

	id, err := collection.ParseResourceID(playlistRef)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Check(ctx, callerID, scope.ScopePlaylistReadPrivate); err != nil {
		return nil, err
	}

	pages, err := s.fetch(ctx, collection.PlaylistTracks(id), s.config.PlaylistPageSize)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", id, err)
	}

	return overlap.CreatorShares(collection.Items(pages), limit), nil
}

// collectAll builds one collection per id with at most
// ResourceConcurrency builds running. The first failure cancels the rest
// and no partial result is returned.
func (s *Service) collectAll(ctx context.Context, ids []string, build func(context.Context, string) (collection.Collection, error)) ([]collection.Collection, error) {
	cols := make([]collection.Collection, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ResourceConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			col, err := build(gctx, id)
			if err != nil {
				return err
			}
			cols[i] = col
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *Service) playlistCollection(ctx context.Context, playlistID string) (collection.Collection, error) {
	pages, err := s.fetch(ctx, collection.PlaylistTracks(playlistID), s.config.PlaylistPageSize)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, err)
	}
	return collection.Build(pages...), nil
}

// userCollection folds the tracks of every playlist the user lists.
func (s *Service) userCollection(ctx context.Context, userID string) (collection.Collection, error) {
	listing, err := s.fetch(ctx, collection.UserPlaylists(userID), s.config.ListingPageSize)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}

	playlists := collection.Build(listing...)

	var pages []*collection.Page
	for _, playlistID := range playlists.Keys() {
		tracks, err := s.fetch(ctx, collection.PlaylistTracks(playlistID), s.config.PlaylistPageSize)
		if err != nil {
			return nil, fmt.Errorf("user %s playlist %s: %w", userID, playlistID, err)
		}
		pages = append(pages, tracks...)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Int("playlists", playlists.Len()).
		Int("pages", len(pages)).
		Msg("Collected user tracks")

	return collection.Build(pages...), nil
}

// fetch returns the pages of resource from the cache or the fetcher.
func (s *Service) fetch(ctx context.Context, resource string, pageSize int) ([]*collection.Page, error) {
	key := cache.CollectionKey{Resource: resource, PageSize: pageSize}

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.logger.Debug().Str("resource", resource).Bool("cache_hit", true).Msg("Using cached collection")
			return entry.Pages(), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn().Err(err).Str("resource", resource).Msg("Cache get error")
		}
	}

	pages, err := s.fetcher.FetchAll(ctx, resource, pageSize)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, key, pages); err != nil {
			s.logger.Warn().Err(err).Str("resource", resource).Msg("Failed to cache collection")
		}
	}
	return pages, nil
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	comparisonDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	kind := Kind(*errp)
	if kind == KindNone {
		kind = "ok"
	}
	comparisonsTotal.WithLabelValues(operation, string(kind)).Inc()

	if *errp != nil {
		s.logger.Warn().Err(*errp).Str("operation", operation).Str("kind", string(kind)).Msg("Comparison failed")
	}
}
