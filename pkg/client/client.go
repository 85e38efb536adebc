// Package client provides the catalog HTTP client with request pacing,
// shared throttle cooldown, and error classification. It implements
// pagination.PageClient.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlap_catalog_requests_total",
		Help: "Total catalog requests by resource kind and status",
	}, []string{"resource", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlap_catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by resource kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlap_catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// TokenSource supplies the bearer token sent with each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Client is the catalog client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, without trailing slash.
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Redis client for the shared throttle cooldown. Nil keeps the state local.
	Redis *redis.Client

	// Request pacing
	RequestsPerSecond int
	Burst             int

	// Retry for server and network errors. Zero MaxAttempts selects the
	// per-class defaults.
	Retry RetryConfig

	// Tokens authenticates requests. Nil sends no Authorization header.
	Tokens TokenSource
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		Timeout:           15 * time.Second,
		RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
		Burst:             ratelimit.DefaultRequestsPerSecond,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: ratelimit.NewTracker(cfg.Redis, cfg.RequestsPerSecond, cfg.Burst, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// FetchPage fetches one page of resourceID. A 429 answer is returned as
// *ThrottleError and recorded in the shared cooldown; it is not retried here.
// A cooldown that outlasts the ctx deadline is also returned as
// *ThrottleError without sending the request.
func (c *Client) FetchPage(ctx context.Context, resourceID string, limit, offset int) (*collection.Page, error) {
	kind := resourceKind(resourceID)

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		var cooldown *ratelimit.CooldownError
		if errors.As(err, &cooldown) {
			return nil, &ThrottleError{Wait: cooldown.Remaining, Resource: resourceID}
		}
		return nil, err
	}

	req, err := c.newRequest(ctx, resourceID, limit, offset)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("resource", resourceID).
		Int("limit", limit).
		Int("offset", offset).
		Msg("Fetching catalog page")

	var page *collection.Page
	var errClass ErrorClass

	err = retryWithBackoff(ctx, c.config.Retry, func() error {
		resp, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				errClass = ErrorClassClient
				return ctxErr
			}
			errClass = ErrorClassNetwork
			catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
			catalogRequestsTotal.WithLabelValues(kind, "network_error").Inc()
			c.logger.Error().Err(reqErr).Str("resource", resourceID).Msg("HTTP request failed")
			return reqErr
		}
		defer resp.Body.Close()

		catalogRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass = classifyStatus(resp.StatusCode)
			catalogErrorsTotal.WithLabelValues(string(errClass)).Inc()
			c.logger.Warn().
				Str("resource", resourceID).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Catalog request error")
			_, _ = io.Copy(io.Discard, resp.Body)
			return c.statusError(ctx, resourceID, resp)
		}

		decoded, decodeErr := decodePage(resp.Body)
		if decodeErr != nil {
			errClass = ErrorClassClient
			return fmt.Errorf("decode %s: %w", resourceID, decodeErr)
		}
		page = decoded
		return nil
	}, func(error) ErrorClass {
		return errClass
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

func (c *Client) newRequest(ctx context.Context, resourceID string, limit, offset int) (*http.Request, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	endpoint := c.baseURL + "/v1/" + strings.TrimLeft(resourceID, "/") + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	if c.config.Tokens != nil {
		token, err := c.config.Tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// statusError maps an error status to the error returned to the fetcher.
func (c *Client) statusError(ctx context.Context, resourceID string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if err := c.rateLimiter.RecordThrottle(ctx, wait); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record throttle")
		}
		return &ThrottleError{Wait: wait, Resource: resourceID}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassClient, Message: resp.Status, Err: ErrNotAuthorized}
	case http.StatusNotFound:
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassClient, Message: resp.Status, Err: ErrNotFound}
	default:
		return &APIError{StatusCode: resp.StatusCode, ErrorClass: classifyStatus(resp.StatusCode), Message: resp.Status}
	}
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Missing or unparseable values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// resourceKind reduces a resource path to a low-cardinality metric label,
// e.g. "playlists/abc/tracks" becomes "playlists/tracks".
func resourceKind(resourceID string) string {
	parts := strings.Split(strings.Trim(resourceID, "/"), "/")
	if len(parts) >= 3 {
		return parts[0] + "/" + parts[2]
	}
	return parts[0]
}

// Throttle returns the throttle tracker shared by all requests of this client.
func (c *Client) Throttle() *ratelimit.Tracker {
	return c.rateLimiter
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
