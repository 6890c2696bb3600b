package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/nfriedli/bitbucket-stats/internal/testutil"
)

func numberedItems(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"index": %d}`, i))
	}
	return items
}

func TestCollectAll_WalksAllPagesInOrder(t *testing.T) {
	mock := testutil.NewMockBitbucket()
	defer mock.Close()

	// 117 items over pages of 50: 50 + 50 + 17.
	mock.SetPaginated("/repositories/acme", 50, numberedItems(117))

	client := newTestClient(t, mock.URL())

	items, err := client.collectAll(context.Background(), mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("collectAll failed: %v", err)
	}
	if len(items) != 117 {
		t.Fatalf("items = %d, want 117", len(items))
	}
	if got := mock.PathCount("/repositories/acme"); got != 3 {
		t.Errorf("pages fetched = %d, want 3", got)
	}

	// Upstream order preserved across page boundaries.
	for i, item := range items {
		var doc struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(item, &doc); err != nil {
			t.Fatalf("item %d: %v", i, err)
		}
		if doc.Index != i {
			t.Fatalf("item %d has index %d, want %d", i, doc.Index, i)
		}
	}
}

func TestCollectAll_CachesWholeSequence(t *testing.T) {
	mock := testutil.NewMockBitbucket()
	defer mock.Close()
	mock.SetPaginated("/repositories/acme", 50, numberedItems(117))

	client := newTestClient(t, mock.URL())
	ctx := context.Background()

	first, err := client.collectAll(ctx, mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("first collectAll failed: %v", err)
	}
	after := mock.RequestCount()

	second, err := client.collectAll(ctx, mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("second collectAll failed: %v", err)
	}

	if mock.RequestCount() != after {
		t.Errorf("second call made %d network requests, want 0", mock.RequestCount()-after)
	}
	if len(second) != len(first) {
		t.Errorf("cached items = %d, want %d", len(second), len(first))
	}
}

func TestCollectAll_FailedPageDiscardsPartialResult(t *testing.T) {
	mock := testutil.NewMockBitbucket()
	defer mock.Close()

	items := numberedItems(10)
	failing := true
	mock.SetHandler("/repositories/acme", func(w http.ResponseWriter, r *http.Request) {
		pageNum := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &pageNum)

		if pageNum >= 2 && failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "Service unavailable"}}`))
			return
		}

		start := (pageNum - 1) * 5
		end := start + 5
		if end > len(items) {
			end = len(items)
		}
		envelope := map[string]interface{}{"values": items[start:end]}
		if end < len(items) {
			envelope["next"] = fmt.Sprintf("%s/repositories/acme?page=%d", mock.URL(), pageNum+1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	})

	client := newTestClient(t, mock.URL())
	ctx := context.Background()

	if _, err := client.collectAll(ctx, mock.URL()+"/repositories/acme", nil); err == nil {
		t.Fatal("collectAll should fail when a page keeps erroring")
	}

	// Nothing was cached: once the endpoint recovers, a re-run walks the
	// network again and sees the complete sequence.
	failing = false
	before := mock.RequestCount()

	got, err := client.collectAll(ctx, mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("collectAll after recovery failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("items = %d, want 10", len(got))
	}
	if mock.RequestCount() == before {
		t.Error("re-run served from cache, want network fetch after failed collection")
	}
}

func TestCollectAll_SinglePageWithoutNext(t *testing.T) {
	mock := testutil.NewMockBitbucket()
	defer mock.Close()
	mock.SetResponse("/repositories/acme", testutil.NewValuesResponse(`{"slug": "api"}`, `{"slug": "web"}`))

	client := newTestClient(t, mock.URL())

	items, err := client.collectAll(context.Background(), mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("collectAll failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}
	if got := mock.PathCount("/repositories/acme"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestCollectAll_EmptyCollection(t *testing.T) {
	mock := testutil.NewMockBitbucket()
	defer mock.Close()
	mock.SetResponse("/repositories/acme", testutil.NewValuesResponse())

	client := newTestClient(t, mock.URL())

	items, err := client.collectAll(context.Background(), mock.URL()+"/repositories/acme", nil)
	if err != nil {
		t.Fatalf("collectAll failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}
