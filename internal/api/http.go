package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/serenemind/serene/backend/internal/models"
)

// StatusError reports a non-2xx API response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err looks recoverable (timeouts, connectivity,
// 5xx, 429). Transient failures leave queued work in place for a later retry.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *rate.Limiter
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL string
	Token   string
	// Timeout bounds every request so a hung call can never wedge a
	// single-flight guard upstream.
	Timeout time.Duration
	// RateLimitRPS caps outbound requests per second. Zero disables the
	// limiter.
	RateLimitRPS float64
}

// NewHTTPClient creates a client for the given API base URL.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), int(opts.RateLimitRPS)+1)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpc:   &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

// do issues a request and decodes a JSON response into out (when non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckContentVersion asks whether content newer than currentVersion exists.
func (c *HTTPClient) CheckContentVersion(ctx context.Context, currentVersion int) (*VersionCheck, error) {
	var check VersionCheck
	path := "/v1/content/version?current=" + strconv.Itoa(currentVersion)
	if err := c.do(ctx, http.MethodGet, path, nil, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// FetchContent downloads the full content catalog.
func (c *HTTPClient) FetchContent(ctx context.Context) ([]models.ContentItem, error) {
	var payload struct {
		Items []models.ContentItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/content", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// SyncOperations replays a batch of queued mutations.
func (c *HTTPClient) SyncOperations(ctx context.Context, ops []models.QueuedOperation) ([]models.OperationResult, error) {
	body := struct {
		Operations []models.QueuedOperation `json:"operations"`
	}{Operations: ops}

	var payload struct {
		Results []models.OperationResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sync/operations", body, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// LogActivities delivers activity log entries.
func (c *HTTPClient) LogActivities(ctx context.Context, entries []models.ActivityLogEntry) error {
	body := struct {
		Entries []models.ActivityLogEntry `json:"entries"`
	}{Entries: entries}
	return c.do(ctx, http.MethodPost, "/v1/activity/logs", body, nil)
}

// TrackEvents delivers a batch of analytics events.
func (c *HTTPClient) TrackEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	body := struct {
		Events []models.AnalyticsEvent `json:"events"`
	}{Events: events}
	return c.do(ctx, http.MethodPost, "/v1/analytics/events", body, nil)
}

// Ping checks API reachability.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}
