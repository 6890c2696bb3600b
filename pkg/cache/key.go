package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a logical API query for cache lookup.
type Key struct {
	// Endpoint is the request path (e.g. "/repositories/acme/api/commits").
	Endpoint string

	// Params are the query parameters of the initial request.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: bb:endpoint:param1=val1:param2=val2
//
// Parameters are sorted by name and empty values are skipped, so two
// logically identical queries always map to the same key and two distinct
// queries never collide.
func (k Key) String() string {
	parts := []string{"bb"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			for _, value := range k.Params[name] {
				if value == "" {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s=%s", name, value))
			}
		}
	}

	return strings.Join(parts, ":")
}

// Filename returns a filesystem-safe identifier for the key: the SHA-256
// hex digest of the canonical key string.
func (k Key) Filename() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:]) + ".json"
}
