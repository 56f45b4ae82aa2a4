// Package client provides the catalog API HTTP client with request spacing
// and bounded retries.
package client

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog API request duration in seconds, excluding spacing waits",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// DefaultUserAgent is the browser string the catalog API expects from its
// launcher clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.141 Safari/537.36 OverwolfClient/0.204.0.1"

// DefaultBaseURL is the public catalog API endpoint.
const DefaultBaseURL = "https://api.curseforge.com/v1"

// Client issues spaced, retried GET requests against the catalog API.
type Client struct {
	httpClient *http.Client
	spacer     *ratelimit.Spacer
	header     http.Header
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// APIKey is sent as the x-api-key header (REQUIRED).
	APIKey string

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// Interval is the minimum spacing between consecutive requests.
	Interval time.Duration

	// RetryLimit is the number of retries after the initial attempt.
	RetryLimit int

	// RetryBackoff is an optional pause between attempts, on top of spacing.
	RetryBackoff time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// Spacer is shared with other clients when set; otherwise one is created
	// from Interval.
	Spacer *ratelimit.Spacer
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		UserAgent:  DefaultUserAgent,
		Interval:   time.Second,
		RetryLimit: 4,
		Timeout:    30 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.RetryLimit < 0 {
		return nil, fmt.Errorf("retry_limit must be >= 0 (got %d)", cfg.RetryLimit)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "client").Logger()

	spacer := cfg.Spacer
	if spacer == nil {
		spacer = ratelimit.NewSpacer(cfg.Interval, logger.With().Str("component", "ratelimit").Logger())
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		spacer: spacer,
		header: fixedHeaders(cfg),
		config: cfg,
		logger: logger,
	}, nil
}

// fixedHeaders builds the headers attached to every request. The service
// validates them, so names and values are kept exactly as its own clients send them.
func fixedHeaders(cfg Config) http.Header {
	h := http.Header{}
	h.Set("User-Agent", cfg.UserAgent)
	h.Set("Accept", "application/json")
	h.Set("Accept-Encoding", "gzip")
	h["x-api-key"] = []string{cfg.APIKey}
	h.Set("Authorization", "OAuth")
	h["X-Twitch-Id"] = []string{""}
	return h
}

// Response is a fully read API response.
type Response struct {
	// URL is the absolute URL that was requested.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the (decompressed) response body.
	Body []byte

	// DispatchedAt is when the successful attempt was released by the spacer.
	DispatchedAt time.Time

	// Attempts is how many attempts were made.
	Attempts int
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetch performs a GET request for path relative to the base URL.
// Only transport failures are retried; any HTTP response is returned as is.
func (c *Client) Fetch(ctx context.Context, path string) (*Response, error) {
	url := c.config.BaseURL + path

	var resp *Response
	attempts, err := retry(ctx, c.config.RetryLimit, c.config.RetryBackoff, c.logger, func(attempt int) error {
		r, err := c.do(ctx, url)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt).
				Msg("Request failed")
			requestsTotal.WithLabelValues("transport_error").Inc()
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &RequestError{URL: url, Attempts: attempts, Err: err}
	}

	resp.Attempts = attempts
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("attempts", attempts).
		Msg("Got response")

	return resp, nil
}

// do runs a single spaced attempt.
func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.header.Clone()

	// Stamp before dispatch so response latency does not widen the spacing.
	dispatched, err := c.spacer.Wait(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("url", url).Msg("Making request")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := readBody(httpResp)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		URL:          url,
		StatusCode:   httpResp.StatusCode,
		Header:       httpResp.Header,
		Body:         body,
		DispatchedAt: dispatched,
	}, nil
}

// readBody reads the body, decompressing gzip ourselves since setting
// Accept-Encoding disables the transport's transparent decompression.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// Spacer returns the spacer shared by this client.
func (c *Client) Spacer() *ratelimit.Spacer {
	return c.spacer
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
