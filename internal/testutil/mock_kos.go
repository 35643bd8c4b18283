// Package testutil provides testing utilities for the KOS downloader.
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

// APIPath is the path prefix the mock serves resources under.
const APIPath = "/api/3"

// MockKOSResponse defines a canned response for one request.
type MockKOSResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockKOS is a configurable mock KOS API server. Resources are lists of entry
// codes served as Atom feeds paged by offset and limit.
type MockKOS struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	resources map[string][]string
	scripted  map[string][]MockKOSResponse
	delay     time.Duration
	username  string
	password  string

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	requestsByPage    map[string]int
	inFlight          int
	peakInFlight      int
}

// NewMockKOS creates a new mock KOS server.
func NewMockKOS() *MockKOS {
	mock := &MockKOS{
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		resources:      make(map[string][]string),
		scripted:       make(map[string][]MockKOSResponse),
		requestsByPage: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the API base URL of the mock, including APIPath.
func (m *MockKOS) URL() string {
	return m.server.URL + APIPath
}

// Close shuts down the mock server.
func (m *MockKOS) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockKOS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.requestsByPage = make(map[string]int)
	m.peakInFlight = 0
}

// SetCredentials makes the server demand HTTP Basic authentication.
func (m *MockKOS) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = username
	m.password = password
}

// SetDelay delays every response, which makes concurrency observable.
func (m *MockKOS) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetResource serves codes as the entries of resource.
func (m *MockKOS) SetResource(resource string, codes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resource] = codes
}

// Script queues responses for the page of resource starting at offset. Each
// request for that page consumes one response; once they run out, the page
// is served normally.
func (m *MockKOS) Script(resource string, offset int, responses ...MockKOSResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey(resource, offset)
	m.scripted[key] = append(m.scripted[key], responses...)
}

// SetHandler sets a custom handler for a specific path below APIPath.
func (m *MockKOS) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[APIPath+"/"+strings.TrimLeft(path, "/")] = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockKOS) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockKOS) GetLastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequestHeader
}

// GetPageRequestCount returns the number of requests for one page.
func (m *MockKOS) GetPageRequestCount(resource string, offset int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestsByPage[pageKey(resource, offset)]
}

// GetPeakInFlight returns the highest number of requests served at once.
func (m *MockKOS) GetPeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakInFlight
}

func (m *MockKOS) serve(w http.ResponseWriter, r *http.Request) {
	resource := strings.Trim(strings.TrimPrefix(r.URL.Path, APIPath), "/")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	key := pageKey(resource, offset)

	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	m.requestsByPage[key]++
	m.inFlight++
	if m.inFlight > m.peakInFlight {
		m.peakInFlight = m.inFlight
	}
	delay := m.delay
	handler, hasHandler := m.handlers[r.URL.Path]
	var scripted *MockKOSResponse
	if queue := m.scripted[key]; len(queue) > 0 {
		scripted = &queue[0]
		m.scripted[key] = queue[1:]
	}
	username, password := m.username, m.password
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	if username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != username || pass != password {
			writeResponse(w, NewUnauthorizedResponse())
			return
		}
	}

	if scripted != nil {
		writeResponse(w, *scripted)
		return
	}

	if hasHandler {
		handler(w, r)
		return
	}

	m.defaultHandler(w, r, resource, offset)
}

// defaultHandler pages through the configured resource.
func (m *MockKOS) defaultHandler(w http.ResponseWriter, r *http.Request, resource string, offset int) {
	m.mu.Lock()
	codes, ok := m.resources[resource]
	m.mu.Unlock()

	if !ok {
		writeResponse(w, MockKOSResponse{StatusCode: http.StatusNotFound, Body: "Not Found"})
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 1000
	}

	start := min(offset, len(codes))
	end := min(start+limit, len(codes))

	next := ""
	if end < len(codes) {
		next = fmt.Sprintf("%s?offset=%d&limit=%d", resource, end, limit)
	}

	writeResponse(w, NewFeedResponse(AtomFeed(resource, codes[start:end], next)))
}

func writeResponse(w http.ResponseWriter, resp MockKOSResponse) {
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
}

func pageKey(resource string, offset int) string {
	return resource + "@" + strconv.Itoa(offset)
}

// AtomFeed renders a KOS-style Atom feed with one entry per code. A non-empty
// next adds a rel="next" link.
func AtomFeed(resource string, codes []string, next string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<atom:feed xmlns:atom="http://www.w3.org/2005/Atom" xmlns="http://kosapi.feld.cvut.cz/schema/3" xmlns:xlink="http://www.w3.org/1999/xlink">` + "\n")
	fmt.Fprintf(&b, "  <atom:id>%s</atom:id>\n", resource)
	b.WriteString("  <atom:updated>2024-02-01T10:00:00Z</atom:updated>\n")
	if next != "" {
		fmt.Fprintf(&b, "  <atom:link rel=\"next\" href=\"%s\"/>\n", strings.ReplaceAll(next, "&", "&amp;"))
	}
	for _, code := range codes {
		b.WriteString("  <atom:entry>\n")
		fmt.Fprintf(&b, "    <atom:id>urn:cvut:kos:%s:%s</atom:id>\n", strings.TrimSuffix(resource, "s"), code)
		fmt.Fprintf(&b, "    <atom:title>%s</atom:title>\n", code)
		b.WriteString("    <atom:updated>2024-01-15T08:30:00Z</atom:updated>\n")
		b.WriteString("  </atom:entry>\n")
	}
	b.WriteString("</atom:feed>\n")
	return b.String()
}

// NewFeedResponse creates a 200 OK Atom response.
func NewFeedResponse(body string) MockKOSResponse {
	return MockKOSResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/atom+xml;charset=UTF-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not a feed.
func NewMalformedResponse() MockKOSResponse {
	return MockKOSResponse{
		StatusCode: http.StatusOK,
		Body:       "<atom:feed",
		Headers: map[string]string{
			"Content-Type": "application/atom+xml;charset=UTF-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockKOSResponse {
	return MockKOSResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockKOSResponse {
	return MockKOSResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       "Unauthorized",
		Headers: map[string]string{
			"WWW-Authenticate": `Basic realm="KOSapi"`,
		},
	}
}
