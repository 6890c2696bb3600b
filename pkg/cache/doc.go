// Package cache maps deterministic request keys to previously fetched
// Bitbucket API payloads with time-based expiry.
//
// A cache key is derived from the endpoint plus the sorted, non-empty
// query parameters of the initial request, so the same logical query
// always maps to the same key and distinct queries never collide:
//
//	key := cache.Key{
//		Endpoint: "/repositories/acme/api/commits",
//		Params:   url.Values{"page": []string{"1"}},
//	}
//
// Every read-side failure degrades to a miss. Expired entries, corrupt
// records, storage errors, and validator rejections are all reported as
// cache.ErrMiss and logged at warning level; they are never surfaced as
// errors to the fetch path:
//
//	payload, err := store.Get(ctx, key, nil)
//	if err == cache.ErrMiss {
//		// fetch from the API, then store.Put(ctx, key, payload)
//	}
//
// Write failures are non-fatal: a failed Put degrades the key to
// always-miss behavior but does not fail the fetch that produced the
// payload.
//
// # Backends
//
//   - FileStore: one JSON record per key ({data, cached_at, metadata})
//     in a local directory, filenames derived by hashing the key.
//   - RedisStore: entry JSON stored under the canonical key string with
//     a Redis TTL matching the expiry window.
//   - Memory: bounded LRU front layer.
//   - Tiered: Memory in front of a persistent store.
//
// Expiry is always computed from the entry's embedded cached_at
// timestamp against a fixed TTL (default 24h), regardless of backend.
package cache
