// Package cache provides a Redis cache of fetched catalog resources.
//
// Assembling a large collection costs one request per page, and every
// request counts against the catalog's throttle budget. The cache stores
// the fetched items of a resource for a fixed TTL so that repeated
// comparisons over the same playlists do not re-fetch them.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CollectionKey{
//		Resource: collection.PlaylistTracks("37i9dQZF1DXcBWIGoYBM5M"),
//		PageSize: 100,
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch all pages
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - overlap_cache_hits_total{layer="redis"} - Cache hits
//   - overlap_cache_misses_total - Cache misses
//   - overlap_cache_size_bytes{layer="redis"} - Size of the last written entry
//   - overlap_cache_errors_total{operation} - Cache operation errors
package cache
