package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// newTestClient builds a client pointed at a test server, with fast
// retry backoffs.
func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	cfg := DefaultConfig(endpoint, "test-token")
	cfg.InitialBackoff = 10 * time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// flakyTransport fails the first n round trips at the connection level,
// then delegates to the default transport.
type flakyTransport struct {
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	f.mu.Unlock()

	if n <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://app.example.com/api/v2", "tok-123"),
			expectError: false,
		},
		{
			name:        "empty endpoint",
			config:      Config{Token: "tok-123"},
			expectError: true,
			errorMsg:    "endpoint is required",
		},
		{
			name:        "relative endpoint",
			config:      Config{Endpoint: "app.example.com/api/v2", Token: "tok-123"},
			expectError: true,
		},
		{
			name:        "unsupported scheme",
			config:      Config{Endpoint: "ftp://app.example.com/api/v2", Token: "tok-123"},
			expectError: true,
		},
		{
			name:        "missing token",
			config:      Config{Endpoint: "https://app.example.com/api/v2"},
			expectError: true,
			errorMsg:    "api token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestNew_NormalizesZeroValues(t *testing.T) {
	c, err := New(Config{Endpoint: "https://app.example.com/api/v2", Token: "tok"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.config.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", c.config.UserAgent, DefaultUserAgent)
	}
	if c.config.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %v, want 60s", c.config.HTTPTimeout)
	}
	if c.config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", c.config.MaxRetries)
	}
	if c.config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", c.config.InitialBackoff)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("https://app.example.com/api/v2", "tok-123")

	if cfg.Endpoint != "https://app.example.com/api/v2" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Token != "tok-123" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, DefaultUserAgent)
	}
	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries = %d, should be > 0", cfg.MaxRetries)
	}
	if cfg.HTTPTimeout <= 0 {
		t.Errorf("HTTPTimeout = %v, should be > 0", cfg.HTTPTimeout)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		input    string
		expected string
	}{
		{
			name:     "relative path",
			endpoint: "https://app.example.com/api/v2",
			input:    "projects/",
			expected: "https://app.example.com/api/v2/projects/",
		},
		{
			name:     "leading slash",
			endpoint: "https://app.example.com/api/v2",
			input:    "/projects/abc/",
			expected: "https://app.example.com/api/v2/projects/abc/",
		},
		{
			name:     "endpoint with trailing slash",
			endpoint: "https://app.example.com/api/v2/",
			input:    "projects/",
			expected: "https://app.example.com/api/v2/projects/",
		},
		{
			name:     "absolute https url unmodified",
			endpoint: "https://app.example.com/api/v2",
			input:    "https://other.example.com/api/v2/status/xyz/",
			expected: "https://other.example.com/api/v2/status/xyz/",
		},
		{
			name:     "absolute http url unmodified",
			endpoint: "https://app.example.com/api/v2",
			input:    "http://127.0.0.1:8080/status/xyz/",
			expected: "http://127.0.0.1:8080/status/xyz/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.endpoint)
			if got := c.BuildURL(tt.input); got != tt.expected {
				t.Errorf("BuildURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGet_SendsAuthHeaders(t *testing.T) {
	var auth, userAgent, requestID, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		userAgent = r.Header.Get("User-Agent")
		requestID = r.Header.Get("X-Request-ID")
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Get(context.Background(), "projects/", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if auth != "Token test-token" {
		t.Errorf("Authorization = %q, want %q", auth, "Token test-token")
	}
	if userAgent != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgent, DefaultUserAgent)
	}
	if requestID == "" {
		t.Error("X-Request-ID header missing")
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestGet_RequestIDsAreUnique(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	for i := 0; i < 2; i++ {
		resp, err := c.Get(context.Background(), "projects/", nil)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		resp.Body.Close()
	}

	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("Expected two distinct request IDs, got %v", ids)
	}
}

func TestGet_JoinsRelativeAndPassesAbsolute(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/api/v2")

	// Relative path is joined under the endpoint.
	resp, err := c.Get(context.Background(), "status/abc123/", nil)
	if err != nil {
		t.Fatalf("Get(relative) error = %v", err)
	}
	resp.Body.Close()

	// Absolute URL bypasses the endpoint entirely.
	resp, err = c.Get(context.Background(), server.URL+"/elsewhere/", nil)
	if err != nil {
		t.Fatalf("Get(absolute) error = %v", err)
	}
	resp.Body.Close()

	if len(paths) != 2 {
		t.Fatalf("requests made = %d, want 2", len(paths))
	}
	if paths[0] != "/api/v2/status/abc123/" {
		t.Errorf("relative request path = %q, want %q", paths[0], "/api/v2/status/abc123/")
	}
	if paths[1] != "/elsewhere/" {
		t.Errorf("absolute request path = %q, want %q", paths[1], "/elsewhere/")
	}
}

func TestGet_EncodesParams(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Get(context.Background(), "projects/", url.Values{
		"limit":  {"50"},
		"offset": {"100"},
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if query.Get("limit") != "50" || query.Get("offset") != "100" {
		t.Errorf("query = %v, want limit=50 offset=100", query)
	}
}

func TestGet_AppendsParamsToExistingQuery(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Get(context.Background(), server.URL+"/projects/?order=asc", url.Values{
		"limit": {"5"},
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if query.Get("order") != "asc" || query.Get("limit") != "5" {
		t.Errorf("query = %v, want both order=asc and limit=5", query)
	}
}

func TestGet_ReturnsAPIErrorWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "project not found"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Get(context.Background(), "projects/missing/", nil)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message != "project not found" {
		t.Errorf("Message = %q, want platform message", apiErr.Message)
	}
	if !strings.Contains(apiErr.Body, "project not found") {
		t.Errorf("Body = %q, want captured response body", apiErr.Body)
	}
	if apiErr.RequestID == "" {
		t.Error("RequestID missing from APIError")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
}

func TestGetNoRedirect_DoesNotFollowRedirects(t *testing.T) {
	finishedCalls := 0
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/status/abc/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", server.URL+"/projects/p1/")
		w.WriteHeader(http.StatusSeeOther)
	})
	mux.HandleFunc("/projects/p1/", func(w http.ResponseWriter, r *http.Request) {
		finishedCalls++
		w.Write([]byte(`{}`))
	})

	c := newTestClient(t, server.URL)
	resp, err := c.GetNoRedirect(context.Background(), "status/abc/")
	if err != nil {
		t.Fatalf("GetNoRedirect() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("StatusCode = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != server.URL+"/projects/p1/" {
		t.Errorf("Location = %q, want redirect target", loc)
	}
	if finishedCalls != 0 {
		t.Errorf("redirect target fetched %d times, want 0", finishedCalls)
	}
}

func TestGetNoRedirect_PassesThroughErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.GetNoRedirect(context.Background(), "status/abc/")
	if err != nil {
		t.Fatalf("GetNoRedirect() error = %v, raw statuses are the caller's to classify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestGet_DoesNotRetryHTTPStatuses(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Get(context.Background(), "projects/", nil)

	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (HTTP statuses are never retried)", attempts)
	}
}

func TestGet_RetriesConnectionFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ft := &flakyTransport{failures: 2}
	c.httpClient = &http.Client{Transport: ft, Timeout: 10 * time.Second}

	resp, err := c.Get(context.Background(), "projects/", nil)
	if err != nil {
		t.Fatalf("Get() error = %v, want success after connection retries", err)
	}
	resp.Body.Close()

	if ft.attempts != 3 {
		t.Errorf("attempts = %d, want 3 (2 failures + 1 success)", ft.attempts)
	}
}

func TestGet_RetryExhausted(t *testing.T) {
	c := newTestClient(t, "https://app.example.com/api/v2")
	ft := &flakyTransport{failures: 99}
	c.httpClient = &http.Client{Transport: ft, Timeout: 10 * time.Second}

	_, err := c.Get(context.Background(), "projects/", nil)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if ft.attempts != 3 {
		t.Errorf("attempts = %d, want MaxRetries (3)", ft.attempts)
	}
}

func TestPost_NotRetriedOnConnectionFailure(t *testing.T) {
	c := newTestClient(t, "https://app.example.com/api/v2")
	ft := &flakyTransport{failures: 99}
	c.httpClient = &http.Client{Transport: ft, Timeout: 10 * time.Second}

	_, err := c.Post(context.Background(), "projects/", map[string]string{"projectName": "x"})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("writes must not be retried, got ErrRetryExhausted")
	}
	if ft.attempts != 1 {
		t.Errorf("attempts = %d, want 1", ft.attempts)
	}
}

func TestPost_SendsJSONBody(t *testing.T) {
	var contentType, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	resp, err := c.Post(context.Background(), "projects/", map[string]string{"projectName": "churn"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if body != `{"projectName":"churn"}` {
		t.Errorf("body = %q, want JSON payload", body)
	}
}

func TestUpload_StreamsBody(t *testing.T) {
	var method, contentType, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	csv := "a,b\n1,2\n"
	resp, err := c.Upload(context.Background(), http.MethodPut, "batchPredictions/job1/csvUpload/", strings.NewReader(csv), "text/csv")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	resp.Body.Close()

	if method != http.MethodPut {
		t.Errorf("method = %q, want PUT", method)
	}
	if contentType != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", contentType)
	}
	if body != csv {
		t.Errorf("body = %q, want streamed csv", body)
	}
}

func TestGetJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "p1", "projectName": "churn"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	var out struct {
		ID   string `json:"id"`
		Name string `json:"projectName"`
	}
	if err := c.GetJSON(context.Background(), "projects/p1/", nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if out.ID != "p1" || out.Name != "churn" {
		t.Errorf("decoded = %+v, want id=p1 projectName=churn", out)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	clone := c.Clone()

	if clone == c {
		t.Fatal("Clone() returned the same instance")
	}
	if clone.httpClient == c.httpClient || clone.noRedirect == c.noRedirect {
		t.Error("Clone() shares HTTP client state with the original")
	}
	if clone.Endpoint() != c.Endpoint() {
		t.Errorf("Clone endpoint = %q, want %q", clone.Endpoint(), c.Endpoint())
	}

	// Breaking the original's transport must not affect the clone.
	c.httpClient = &http.Client{Transport: &flakyTransport{failures: 99}}
	resp, err := clone.Get(context.Background(), "projects/", nil)
	if err != nil {
		t.Fatalf("clone Get() error = %v", err)
	}
	resp.Body.Close()
}

func TestRateLimit_429DefersNextRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Get(context.Background(), "projects/", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("first Get() = %v, want 429 APIError", err)
	}

	start := time.Now()
	resp, err := c.Get(context.Background(), "projects/", nil)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	resp.Body.Close()

	if waited := time.Since(start); waited < 900*time.Millisecond {
		t.Errorf("second request waited %v, want roughly the 1s Retry-After window", waited)
	}
}
