// Package pagination provides batched parallel fetching of paginated catalog resources
package pagination

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for paginated fetching.
var (
	fetchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlap_fetch_pages_total",
		Help: "Total number of pages accepted into fetch results",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlap_fetch_duration_seconds",
		Help:    "Duration of complete resource fetches",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	batchRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlap_throttle_retries_total",
		Help: "Total number of whole-batch retries caused by throttle signals",
	})

	batchBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlap_throttle_backoff_seconds",
		Help:    "Backoff slept before re-issuing a throttled batch",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	throttleExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlap_throttle_exhausted_total",
		Help: "Total number of fetches abandoned after too many throttled attempts",
	})
)

// Config holds fetcher configuration
type Config struct {
	// PageSize is the default number of items requested per page
	PageSize int
	// MaxConcurrency is the maximum number of page requests in one batch,
	// and so the peak number of concurrent requests per resource
	MaxConcurrency int
	// MaxThrottleRetries is how often a throttled batch is re-issued before
	// ErrThrottleExhausted. A negative value retries without limit.
	MaxThrottleRetries int
	// InitialBackoff is used when a throttle signal carries no wait hint;
	// it doubles per attempt up to MaxBackoff
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for the catalog API
func DefaultConfig() Config {
	return Config{
		PageSize:           100,
		MaxConcurrency:     10,
		MaxThrottleRetries: 8,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         60 * time.Second,
		Timeout:            15 * time.Second,
	}
}

// PageClient is the contract the remote catalog client must implement.
type PageClient interface {
	// FetchPage fetches limit items of resourceID starting at offset.
	// A throttled request returns an error implementing ThrottleSignal.
	FetchPage(ctx context.Context, resourceID string, limit, offset int) (*collection.Page, error)
}

// ThrottleSignal is implemented by errors meaning "rate limited, retry later".
type ThrottleSignal interface {
	error
	RetryAfter() time.Duration
}

// AsThrottle reports whether err carries a throttle signal.
func AsThrottle(err error) (ThrottleSignal, bool) {
	var sig ThrottleSignal
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}

// Fetcher retrieves every page of a resource in bounded parallel batches.
type Fetcher struct {
	client PageClient
	config Config
	logger zerolog.Logger

	// sleep waits between throttled attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a new fetcher
func NewFetcher(client PageClient, config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.MaxThrottleRetries == 0 {
		config.MaxThrottleRetries = defaults.MaxThrottleRetries
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Fetcher{
		client: client,
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
		sleep:  sleepContext,
	}
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

// FetchAll fetches every page of resourceID using pageSize items per page
// (the configured default when pageSize <= 0). Pages are returned in offset
// order.
//
// The first page is fetched alone to learn the total. Remaining pages are
// requested in batches of at most MaxConcurrency. If any request of a batch is
// throttled the whole batch is discarded and re-issued after the signalled
// wait. Cancellation is honored between batches and during backoff.
func (f *Fetcher) FetchAll(ctx context.Context, resourceID string, pageSize int) ([]*collection.Page, error) {
	if pageSize <= 0 {
		pageSize = f.config.PageSize
	}
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	first, err := f.fetchBatch(ctx, resourceID, pageSize, []int{0})
	if err != nil {
		return nil, firstPageError(resourceID, err)
	}
	total := first[0].Total

	offsets := pageOffsets(total, pageSize)

	f.logger.Info().
		Str("resource", resourceID).
		Int("total_items", total).
		Int("pages", len(offsets)+1).
		Msg("Starting batched page fetch")

	pages := make([]*collection.Page, 0, len(offsets)+1)
	pages = append(pages, first...)

	batchSize := f.config.MaxConcurrency
	for i := 0; i < len(offsets); i += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s cancelled: %w", resourceID, err)
		}

		end := min(i+batchSize, len(offsets))
		batch, err := f.fetchBatch(ctx, resourceID, pageSize, offsets[i:end])
		if err != nil {
			return nil, err
		}
		pages = append(pages, batch...)

		f.logger.Debug().
			Str("resource", resourceID).
			Int("fetched", len(pages)).
			Int("total_pages", len(offsets)+1).
			Msg("Batch complete")
	}

	f.logger.Info().
		Str("resource", resourceID).
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return pages, nil
}

// pageOffsets lists the offsets after the first page needed to cover total.
func pageOffsets(total, pageSize int) []int {
	var offsets []int
	for off := pageSize; off < total; off += pageSize {
		offsets = append(offsets, off)
	}
	return offsets
}

// firstPageError classifies a failure of the probing request.
func firstPageError(resourceID string, err error) error {
	switch {
	case errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrThrottleExhausted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("fetch %s: %w", resourceID, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrResourceUnavailable, resourceID, err)
	}
}

type pageResult struct {
	page *collection.Page
	err  error
}

// fetchBatch issues every offset concurrently and repeats the whole batch
// while any request is throttled.
func (f *Fetcher) fetchBatch(ctx context.Context, resourceID string, pageSize int, offsets []int) ([]*collection.Page, error) {
	for attempt := 1; ; attempt++ {
		results := f.attemptBatch(ctx, resourceID, pageSize, offsets)

		var wait time.Duration
		throttled := false
		for i, res := range results {
			if res.err == nil {
				if err := validatePage(res.page, pageSize); err != nil {
					return nil, fmt.Errorf("fetch %s offset %d: %w", resourceID, offsets[i], err)
				}
				continue
			}
			if sig, ok := AsThrottle(res.err); ok {
				throttled = true
				wait = max(wait, sig.RetryAfter())
				continue
			}
			return nil, fmt.Errorf("fetch %s offset %d: %w", resourceID, offsets[i], res.err)
		}

		if !throttled {
			pages := make([]*collection.Page, len(results))
			for i, res := range results {
				pages[i] = res.page
			}
			fetchPagesTotal.Add(float64(len(pages)))
			if attempt > 1 {
				f.logger.Info().
					Str("resource", resourceID).
					Int("attempt", attempt).
					Msg("Batch succeeded after throttle retry")
			}
			return pages, nil
		}

		if f.config.MaxThrottleRetries >= 0 && attempt > f.config.MaxThrottleRetries {
			throttleExhaustedTotal.Inc()
			f.logger.Warn().
				Str("resource", resourceID).
				Int("attempts", attempt).
				Msg("Throttle retries exhausted")
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrThrottleExhausted, resourceID, attempt)
		}

		backoff := f.backoff(wait, attempt)
		batchRetriesTotal.Inc()
		batchBackoffSeconds.Observe(backoff.Seconds())

		f.logger.Warn().
			Str("resource", resourceID).
			Int("batch_size", len(offsets)).
			Int("attempt", attempt).
			Dur("wait", backoff).
			Msg("Batch throttled - discarding and retrying")

		if err := f.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("fetch %s cancelled during backoff: %w", resourceID, err)
		}
	}
}

// attemptBatch runs one attempt of a batch. Every request is awaited; results
// are written by index and read only after Wait returns.
func (f *Fetcher) attemptBatch(ctx context.Context, resourceID string, pageSize int, offsets []int) []pageResult {
	results := make([]pageResult, len(offsets))

	var g errgroup.Group
	g.SetLimit(f.config.MaxConcurrency)

	for i, offset := range offsets {
		g.Go(func() error {
			pageCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
			defer cancel()

			page, err := f.client.FetchPage(pageCtx, resourceID, pageSize, offset)
			results[i] = pageResult{page: page, err: err}
			// Siblings keep running; failures are inspected after Wait.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// backoff honors the server hint, falling back to exponential backoff with
// ±20% jitter when the hint is zero.
func (f *Fetcher) backoff(hint time.Duration, attempt int) time.Duration {
	if hint > 0 {
		return hint
	}

	d := f.config.InitialBackoff
	for i := 1; i < attempt && d < f.config.MaxBackoff; i++ {
		d *= 2
	}
	if d > f.config.MaxBackoff {
		d = f.config.MaxBackoff
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

func validatePage(page *collection.Page, pageSize int) error {
	switch {
	case page == nil:
		return fmt.Errorf("%w: nil page", ErrMalformedResponse)
	case page.Total < 0:
		return fmt.Errorf("%w: negative total %d", ErrMalformedResponse, page.Total)
	case len(page.Items) > pageSize:
		return fmt.Errorf("%w: %d items exceed page size %d", ErrMalformedResponse, len(page.Items), pageSize)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
