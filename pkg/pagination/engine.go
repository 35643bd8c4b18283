package pagination

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JanTvrdik/kos-api/pkg/feed"
)

const (
	// DefaultLimit is the page size used unless a request sets "limit".
	DefaultLimit = 1000

	// Language is the fixed lang parameter.
	Language = "cs"
)

// PendingAttempt is a network-ready unit of work: a fully parameterized URL
// plus the request and page number it was built from. Retries reuse the same
// attempt with Attempt incremented.
type PendingAttempt struct {
	URL      string
	Resource string
	Page     int
	Offset   int
	Limit    int

	// Request is the caller's originating request, carried opaquely.
	Request any

	// Attempt counts resolutions of this page, starting at 1.
	Attempt int
}

// Retry returns a copy of the attempt for the next resolution of the same page.
func (a *PendingAttempt) Retry() *PendingAttempt {
	next := *a
	next.Attempt++
	return &next
}

// Engine builds page URLs and owns the per-resource page cursors.
// It is not safe for concurrent use.
type Engine struct {
	baseURL  string
	semester string
	cursors  map[string]int
}

// NewEngine creates an engine for the API rooted at baseURL, fetching data of
// the given semester (e.g. "B232").
func NewEngine(baseURL, semester string) *Engine {
	return &Engine{
		baseURL:  strings.TrimRight(baseURL, "/"),
		semester: semester,
		cursors:  make(map[string]int),
	}
}

// BuildAttempt assigns the next page of resource and builds its URL.
// The page size comes from params["limit"] when it is a positive integer,
// DefaultLimit otherwise. The fixed parameters sem, lang and multilang always
// win over caller-supplied values.
func (e *Engine) BuildAttempt(resource string, params map[string]string, request any) *PendingAttempt {
	page := e.cursors[resource]
	e.cursors[resource] = page + 1

	limit := DefaultLimit
	if raw, ok := params["limit"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	offset := page * limit

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("sem", e.semester)
	query.Set("lang", Language)
	query.Set("multilang", "false")

	return &PendingAttempt{
		URL:      e.baseURL + "/" + strings.TrimLeft(resource, "/") + "?" + query.Encode(),
		Resource: resource,
		Page:     page,
		Offset:   offset,
		Limit:    limit,
		Request:  request,
		Attempt:  1,
	}
}

// Cursor returns the page number the next attempt for resource will use.
func (e *Engine) Cursor(resource string) int {
	return e.cursors[resource]
}

// HasNext reports whether doc signals a following page. A nil document has none.
func (e *Engine) HasNext(doc *feed.Document) bool {
	return doc.HasNext()
}
