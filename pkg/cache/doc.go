// Package cache provides the permanent response cache of the KOS downloader.
//
// The cache maps an exact request URL to the raw response body captured the
// first time that URL was fetched successfully. There is no expiry and no
// eviction: an entry, once written, is never overwritten or removed.
//
// # Backends
//
//   - DiskStore keeps one file per URL, named by Key(url), under a directory.
//   - RedisStore keeps one string per URL under "<prefix>:<Key(url)>".
//   - Disabled always misses and ignores writes.
//
// # Basic Usage
//
//	store := cache.NewDiskStore("/var/cache/kos", logger)
//
//	if body, ok := store.Lookup(ctx, pageURL); ok {
//		// serve from cache, no request is made
//	}
//
//	// after a successful fetch
//	store.Store(ctx, pageURL, body)
//
// # Failure Handling
//
// Cache failures are never fatal. A directory that cannot be created disables
// the disk cache; read and write errors are logged, counted and treated as a
// miss or a skipped write.
//
// # Metrics
//
//   - kos_cache_hits_total{backend} - Cache hits
//   - kos_cache_misses_total{backend} - Cache misses
//   - kos_cache_writes_total{backend} - Entries written
//   - kos_cache_errors_total{backend,operation} - Cache operation errors
package cache
