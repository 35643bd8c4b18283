// Package client provides the KOS API HTTP transport with Basic authentication,
// request metrics and error classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for KOS transport operations.
var (
	kosRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_requests_total",
		Help: "Total KOS requests by resource and status",
	}, []string{"resource", "status"})

	kosRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kos_request_duration_seconds",
		Help:    "KOS request duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"resource"})

	kosErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_errors_total",
		Help: "Total KOS transport errors by class",
	}, []string{"class"})
)

const (
	// FeedMediaType is the Accept header sent with every request.
	FeedMediaType = "application/atom+xml"

	// DefaultTimeout is the per-request socket timeout.
	DefaultTimeout = 300 * time.Second

	// DefaultUserAgent identifies the downloader when no User-Agent is configured.
	DefaultUserAgent = "kos-api/0.1.0"
)

// Response is a completed HTTP exchange with the body fully read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs authenticated GET requests against the KOS API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Credentials for HTTP Basic authentication (REQUIRED)
	Username string
	Password string

	// User-Agent header
	UserAgent string

	// Timeout per request, covering connect, headers and body
	Timeout time.Duration

	// MaxConnsPerHost mirrors the downloader connection ceiling on the transport pool
	MaxConnsPerHost int
}

// DefaultConfig returns a default configuration for the given credentials.
func DefaultConfig(username, password string) Config {
	return Config{
		Username:        username,
		Password:        password,
		UserAgent:       DefaultUserAgent,
		Timeout:         DefaultTimeout,
		MaxConnsPerHost: 10,
	}
}

// New creates a new KOS client.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf("password is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = cfg.MaxConnsPerHost
		transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: log.With().Str("component", "kos-client").Logger(),
	}, nil
}

// Fetch performs a GET request for rawURL and reads the whole body.
// Any HTTP status is returned as a Response; only connection, timeout and
// body read failures produce an error, always a *TransportError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	resource := resourceLabel(rawURL)

	startTime := time.Now()
	defer func() {
		kosRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}

	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", FeedMediaType)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		kosErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		kosRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		kosErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		kosRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("read response body: %w", err)}
	}

	kosRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// resourceLabel keeps metric cardinality bounded to the last path segment.
func resourceLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	path := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "root"
	}
	return path
}
