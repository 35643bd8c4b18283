package downloader

import (
	"context"
	"fmt"

	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/feed"
)

// Handler receives one accepted page: the parsed payload, the request it
// belongs to and the page number used to build its URL.
//
// Handlers run on the goroutine that called Run and may call Submit.
type Handler func(doc *feed.Document, req *ResourceRequest, page int)

// ResourceRequest describes a paginated resource to fetch. It must not be
// modified after Submit; following pages reuse the same request.
type ResourceRequest struct {
	// Resource is the API path below the base URL, e.g. "courses".
	Resource string

	// Params are extra query parameters. "limit" sets the page size.
	Params map[string]string

	// Handler is invoked once per accepted page.
	Handler Handler

	// Meta is opaque caller data, handed back through the request.
	Meta map[string]any
}

// Transport performs a single GET. It is called from worker goroutines and
// must be safe for concurrent use. *client.Client implements it.
type Transport interface {
	Fetch(ctx context.Context, url string) (*client.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string) (*client.Response, error)

// Fetch calls f(ctx, url).
func (f TransportFunc) Fetch(ctx context.Context, url string) (*client.Response, error) {
	return f(ctx, url)
}

// Config holds the downloader configuration.
type Config struct {
	// BaseURL of the API, e.g. "https://kos.example.com/api/3" (REQUIRED)
	BaseURL string

	// Semester tag sent with every request, e.g. "B232" (REQUIRED)
	Semester string

	// MaxConnections caps the fetches awaiting a response at once (REQUIRED, >= 1)
	MaxConnections int

	// MaxRetries is the attempt budget per URL; 0 selects retry.MaxRetries
	MaxRetries int
}

// Validate checks that all required fields are set.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Semester == "" {
		return fmt.Errorf("semester is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max connections must be at least 1, got %d", c.MaxConnections)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// Stats counts attempt outcomes over the lifetime of a Downloader.
type Stats struct {
	Issued       int // network fetches started
	Cached       int // attempts resolved from the cache
	Accepted     int
	Retried      int
	Abandoned    int
	PeakInFlight int
}
