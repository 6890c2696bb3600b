// Package testutil provides testing utilities for the Bitbucket client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock Bitbucket endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBitbucket is a configurable mock Bitbucket API server.
type MockBitbucket struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int
	total    int
}

// NewMockBitbucket creates a new mock server.
func NewMockBitbucket() *MockBitbucket {
	mock := &MockBitbucket{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.total++
		mock.counts[r.URL.Path]++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"message": "Resource not found"}}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBitbucket) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBitbucket) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path.
func (m *MockBitbucket) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockBitbucket) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSequence configures a path to serve the given responses in order,
// repeating the last one once the sequence is exhausted. Useful for
// retry scenarios (n failures followed by success).
func (m *MockBitbucket) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	idx := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[idx]
		if idx < len(responses)-1 {
			idx++
		}
		mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPaginated serves the items under path as fixed-size pages linked by
// next URLs in the standard values/next envelope.
func (m *MockBitbucket) SetPaginated(path string, pageSize int, items []json.RawMessage) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		pageNum := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &pageNum)
		}

		start := (pageNum - 1) * pageSize
		if start > len(items) {
			start = len(items)
		}
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}

		envelope := map[string]interface{}{
			"values": items[start:end],
		}
		if end < len(items) {
			envelope["next"] = fmt.Sprintf("%s%s?page=%d", m.URL(), path, pageNum+1)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(envelope)
	})
}

// RequestCount returns the total number of requests served.
func (m *MockBitbucket) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// PathCount returns the number of requests served for one path.
func (m *MockBitbucket) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// Reset clears all request counters.
func (m *MockBitbucket) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.counts = make(map[string]int)
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": {"message": "Service unavailable"}}`,
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After hint in
// seconds.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": {"message": "Rate limit exceeded"}}`,
		Headers:    map[string]string{"Retry-After": fmt.Sprintf("%d", retryAfterSeconds)},
	}
}

// NewValuesResponse creates a single-page 200 response wrapping the given
// JSON items in a values envelope with no next link.
func NewValuesResponse(items ...string) MockResponse {
	body := `{"values": [`
	for i, item := range items {
		if i > 0 {
			body += ","
		}
		body += item
	}
	body += `]}`
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// DiffStatBody builds a diffstat payload with one file entry.
func DiffStatBody(linesAdded, linesRemoved int) string {
	return fmt.Sprintf(`{"values": [{"lines_added": %d, "lines_removed": %d}]}`, linesAdded, linesRemoved)
}
