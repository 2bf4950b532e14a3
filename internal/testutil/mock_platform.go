// Package testutil provides testing utilities for the DataRobot client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mocked platform endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPlatform is a configurable mock of the platform's /api/v2 surface.
type MockPlatform struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	pathCounts        map[string]int
}

// NewMockPlatform creates a mock platform server.
func NewMockPlatform() *MockPlatform {
	mock := &MockPlatform{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server's base URL.
func (m *MockPlatform) URL() string {
	return m.server.URL
}

// Endpoint returns the mock's API base, suitable for client.Config.
func (m *MockPlatform) Endpoint() string {
	return m.server.URL + "/api/v2"
}

// AbsoluteURL joins an API path under the mock endpoint, the way the
// platform embeds absolute URLs in Location headers and next links.
func (m *MockPlatform) AbsoluteURL(path string) string {
	return m.Endpoint() + "/" + strings.TrimPrefix(path, "/")
}

// Close shuts down the mock server.
func (m *MockPlatform) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPlatform) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.pathCounts = make(map[string]int)
}

// Requests returns how many times an API path was hit, across all
// methods and query strings.
func (m *MockPlatform) Requests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[m.apiPath(path)]
}

// GetRequestCount returns the total number of requests served.
func (m *MockPlatform) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockPlatform) apiPath(path string) string {
	return "/api/v2/" + strings.TrimPrefix(path, "/")
}

// SetHandler sets a custom handler for an API path (relative to the
// /api/v2 base).
func (m *MockPlatform) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[m.apiPath(path)] = handler
}

// SetResponse configures a fixed response for an API path.
func (m *MockPlatform) SetResponse(path string, resp MockResponse) {
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

// SetJSON configures a fixed JSON response for an API path.
func (m *MockPlatform) SetJSON(path string, statusCode int, body string) {
	m.SetResponse(path, MockResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetAsyncCreate answers writes on path with 202 Accepted and a Location
// header naming statusPath, the platform's submit-then-poll shape.
func (m *MockPlatform) SetAsyncCreate(path, statusPath string) {
	location := m.AbsoluteURL(statusPath)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusAccepted)
	})
}

// SetAsyncFlow scripts a status resource: pendingPolls documents with a
// RUNNING status, then a 303 redirect to finalLocation. A relative
// finalLocation is made absolute under the mock endpoint.
func (m *MockPlatform) SetAsyncFlow(statusPath string, pendingPolls int, finalLocation string) {
	if !strings.HasPrefix(finalLocation, "http") {
		finalLocation = m.AbsoluteURL(finalLocation)
	}

	var mu sync.Mutex
	polls := 0
	m.SetHandler(statusPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		if n <= pendingPolls {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status": "RUNNING", "message": "poll %d"}`, n)
			return
		}
		w.Header().Set("Location", finalLocation)
		w.WriteHeader(http.StatusSeeOther)
	})
}

// SetFailingFlow scripts a status resource that reports pendingPolls
// RUNNING documents and then a terminal failure status.
func (m *MockPlatform) SetFailingFlow(statusPath string, pendingPolls int, status, message string) {
	var mu sync.Mutex
	polls := 0
	m.SetHandler(statusPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n <= pendingPolls {
			fmt.Fprintf(w, `{"status": "RUNNING", "message": "poll %d"}`, n)
			return
		}
		fmt.Fprintf(w, `{"status": %q, "message": %q}`, status, message)
	})
}

// SetPaginated serves records (raw JSON fragments) under path in pages
// of pageSize, with absolute next links carrying the continuation
// offset.
func (m *MockPlatform) SetPaginated(path string, pageSize int, records []string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset < 0 || offset > len(records) {
			offset = len(records)
		}
		end := len(records)
		if pageSize > 0 && offset+pageSize < end {
			end = offset + pageSize
		}

		next := "null"
		if end < len(records) {
			next = strconv.Quote(m.AbsoluteURL(path) + "?offset=" + strconv.Itoa(end))
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": [%s], "next": %s}`, strings.Join(records[offset:end], ", "), next)
	})
}

// defaultHandler answers unscripted paths the way the platform answers
// unknown resources.
func (m *MockPlatform) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message": "Not Found"}`))
}

// NewRateLimitResponse creates a 429 response with a Retry-After window.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Request was throttled"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
