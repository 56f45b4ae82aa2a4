// Package testutil provides testing utilities for the catalog mirror.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock catalog API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	Requests          []string
	ArrivedAt         []time.Time
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.Requests = append(mock.Requests, r.URL.RequestURI())
		mock.ArrivedAt = append(mock.ArrivedAt, time.Now())
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
	m.ArrivedAt = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves v as a 200 JSON response wrapped in a data envelope.
func (m *MockAPI) SetJSON(path string, data any) {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal %s: %v", path, err))
	}
	m.SetResponse(path, NewJSONResponse(string(body)))
}

// SetPaginated serves items through the index/pageSize pagination contract.
func (m *MockAPI) SetPaginated(path string, items []any) {
	m.SetHandler(path, PaginatedHandler(items))
}

// SetBytes serves raw bytes, e.g. a downloadable asset.
func (m *MockAPI) SetBytes(path string, data []byte) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequests returns the request URIs seen so far, in order.
func (m *MockAPI) GetRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Requests...)
}

// CountRequests returns how many requests hit the given path.
func (m *MockAPI) CountRequests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, uri := range m.Requests {
		if uri == path || (len(uri) > len(path) && uri[:len(path)] == path && uri[len(path)] == '?') {
			n++
		}
	}
	return n
}

// PaginatedHandler returns a handler that pages through items using the
// index and pageSize query parameters.
func PaginatedHandler(items []any) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		index, _ := strconv.Atoi(q.Get("index"))
		pageSize, err := strconv.Atoi(q.Get("pageSize"))
		if err != nil || pageSize <= 0 {
			pageSize = 50
		}

		start := min(index, len(items))
		end := min(start+pageSize, len(items))
		page := items[start:end]

		body, _ := json.Marshal(map[string]any{
			"data": page,
			"pagination": map[string]int{
				"index":       index,
				"pageSize":    pageSize,
				"resultCount": len(page),
				"totalCount":  len(items),
			},
		})

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewDroppingHandler creates a handler that closes the connection without
// answering, which the client sees as a transport failure.
func NewDroppingHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}
}
