// Package pagination provides batched parallel fetching of paginated catalog resources.
//
// The catalog reports the total item count with every page and throttles
// callers that send too many requests. This package fetches all pages of a
// resource while bounding concurrent requests and absorbing throttle signals.
//
// Example usage:
//
//	config := pagination.DefaultConfig()
//	fetcher := pagination.NewFetcher(catalogClient, config)
//	pages, err := fetcher.FetchAll(ctx, collection.PlaylistTracks(id), 100)
//
// The fetcher:
//   - Fetches the first page to learn the total item count
//   - Splits the remaining offsets into batches of MaxConcurrency
//   - Dispatches each batch concurrently and waits for all of it
//   - Discards and re-issues a whole batch when any request is throttled
//   - Gives up with ErrThrottleExhausted after MaxThrottleRetries
//   - Fails fast on unavailable resources and malformed pages
package pagination
