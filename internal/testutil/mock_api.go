// Package testutil provides testing utilities for the exchange rate client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockAPIResponse defines the behavior for a mock endpoint response.
type MockAPIResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock exchange rate API for testing.
//
// Handlers are registered by path without the API key segment, e.g.
// "/latest/USD". Requests using in-URL authentication ("/{key}/latest/USD")
// are routed to the same handler.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	apiKey   string

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
	LastRawPath       string
}

// NewMockAPI creates a new mock API server that accepts apiKey.
func NewMockAPI(apiKey string) *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		apiKey:     apiKey,
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, authorized := mock.authorize(r)

		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRawPath = r.URL.Path
		mock.mu.Unlock()

		if !authorized {
			writeJSON(w, http.StatusForbidden, ErrorBody("invalid-key"))
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, ErrorBody("unsupported-code"))
	}))

	return mock
}

// authorize strips the key path segment if present and checks either form of auth.
func (m *MockAPI) authorize(r *http.Request) (string, bool) {
	prefix := "/" + m.apiKey + "/"
	if m.apiKey != "" && strings.HasPrefix(r.URL.Path, prefix) {
		return "/" + strings.TrimPrefix(r.URL.Path, prefix), true
	}
	return r.URL.Path, r.Header.Get("Authorization") == "Bearer "+m.apiKey
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
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
	m.LastRawPath = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockAPIResponse) {
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

// SetJSON configures a 200 response whose body is v encoded as JSON.
func (m *MockAPI) SetJSON(path string, v any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	})
}

// SetLatest serves a rate table for base.
func (m *MockAPI) SetLatest(base string, nextUpdate time.Time, rates map[string]float64) {
	m.SetJSON("/latest/"+base, LatestBody(base, nextUpdate, rates))
}

// SetPair serves a pair conversion rate.
func (m *MockAPI) SetPair(from, to string, rate float64) {
	m.SetJSON(fmt.Sprintf("/pair/%s/%s", from, to), map[string]any{
		"result":          "success",
		"base_code":       from,
		"target_code":     to,
		"conversion_rate": rate,
	})
}

// SetCodes serves the supported codes list.
func (m *MockAPI) SetCodes(codes [][]string) {
	m.SetJSON("/codes", map[string]any{
		"result":          "success",
		"supported_codes": codes,
	})
}

// SetError makes path fail with the given status and error-type.
func (m *MockAPI) SetError(path string, status int, errorType string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, ErrorBody(errorType))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made for path (key segment removed).
func (m *MockAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetLastRawPath returns the unmodified path of the most recent request.
func (m *MockAPI) GetLastRawPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRawPath
}

// LatestBody builds a successful "latest" response body.
func LatestBody(base string, nextUpdate time.Time, rates map[string]float64) map[string]any {
	body := map[string]any{
		"result":           "success",
		"base_code":        base,
		"conversion_rates": rates,
	}
	if !nextUpdate.IsZero() {
		body["time_next_update_unix"] = nextUpdate.Unix()
	}
	return body
}

// ErrorBody builds an API error body.
func ErrorBody(errorType string) map[string]string {
	return map[string]string{
		"result":     "error",
		"error-type": errorType,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
