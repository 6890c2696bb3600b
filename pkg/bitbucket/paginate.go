package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/nfriedli/bitbucket-stats/pkg/cache"
)

// page is the upstream pagination envelope: a values array plus an
// optional next link. Absence of next terminates collection.
type page struct {
	Values []json.RawMessage `json:"values"`
	Next   string            `json:"next"`
}

// collectAll walks the next-link pagination protocol to completion and
// returns all items in upstream order. The full sequence is cached as one
// unit under a key derived from the initial request; individual pages are
// never cached, because a partial page set cannot express "pagination
// complete". A failure on any page discards the partial result so a
// re-run retries cleanly.
func (c *Client) collectAll(ctx context.Context, rawURL string, params url.Values) ([]json.RawMessage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	key := cache.Key{Endpoint: u.Path, Params: params}

	if payload, err := c.store.Get(ctx, key, nil); err == nil {
		var items []json.RawMessage
		if err := json.Unmarshal(payload, &items); err == nil {
			c.logger.Debug().
				Str("endpoint", u.Path).
				Int("items", len(items)).
				Msg("Serving collection from cache")
			return items, nil
		}
		c.logger.Warn().Str("endpoint", u.Path).Msg("Corrupt cached collection, refetching")
	}

	var items []json.RawMessage
	next := rawURL
	pageParams := params

	for next != "" {
		body, err := c.fetch(ctx, next, pageParams)
		if err != nil {
			return nil, err
		}
		// The next link embeds the original query.
		pageParams = nil

		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}

		items = append(items, pg.Values...)
		next = pg.Next
	}

	payload, err := json.Marshal(items)
	if err == nil {
		if err := c.store.Put(ctx, key, payload); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", u.Path).Msg("Failed to cache collection")
		}
	}

	c.logger.Debug().Str("endpoint", u.Path).Int("items", len(items)).Msg("Collection complete")
	return items, nil
}
