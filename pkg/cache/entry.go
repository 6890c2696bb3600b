// Package cache provides time-expiring payload caching for Bitbucket API
// responses, keyed by request identity.
package cache

import (
	"encoding/json"
	"time"
)

// DefaultTTL is the expiry window applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Entry is the persisted representation of a cached payload.
type Entry struct {
	// Data is the cached JSON payload.
	Data json.RawMessage `json:"data"`

	// CachedAt is when the payload was fetched.
	CachedAt time.Time `json:"cached_at"`

	// Metadata carries optional bookkeeping (endpoint, item count).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the entry's age exceeds ttl.
func (e *Entry) Expired(ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return time.Since(e.CachedAt) > ttl
}
