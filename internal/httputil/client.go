// Package httputil provides the HTTP client abstraction used by the transport
// package, with a path-routed mock for tests.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPClient is the one method of *http.Client the transport needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c, or http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// NewTimeoutClient returns a StandardClient whose whole-request deadline is
// timeout. UAVSAR archives run to several GB, so callers pass generous values.
// Zero means no deadline.
func NewTimeoutClient(timeout time.Duration) *StandardClient {
	return NewStandardClient(&http.Client{Timeout: timeout})
}

// MockHTTPClient answers requests from responses registered per URL path.
// Unregistered paths get 404.
type MockHTTPClient struct {
	mu       sync.Mutex
	routes   map[string]mockRoute
	requests []*http.Request
}

type mockRoute struct {
	status int
	body   []byte
	err    error
}

// NewMockHTTPClient creates a mock with no routes.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{routes: make(map[string]mockRoute)}
}

// Handle registers a response for requests whose URL path equals path.
// A later call for the same path replaces the earlier one.
func (m *MockHTTPClient) Handle(path string, status int, body []byte) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = mockRoute{status: status, body: body}
	return m
}

// Fail makes requests for path return err without a response.
func (m *MockHTTPClient) Fail(path string, err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = mockRoute{err: err}
	return m
}

// Do records req and answers it from the route table.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	route, ok := m.routes[req.URL.Path]
	if !ok {
		route = mockRoute{status: http.StatusNotFound, body: []byte(fmt.Sprintf("no route for %s\n", req.URL.Path))}
	}
	if route.err != nil {
		return nil, route.err
	}
	return &http.Response{
		StatusCode:    route.status,
		Status:        fmt.Sprintf("%d %s", route.status, http.StatusText(route.status)),
		Body:          io.NopCloser(bytes.NewReader(route.body)),
		ContentLength: int64(len(route.body)),
		Header:        make(http.Header),
		Request:       req,
	}, nil
}

// Requests returns the recorded requests in arrival order.
func (m *MockHTTPClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
