package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

const maxRetryBackoff = 2 * time.Second

// Options tunes a Client.
type Options struct {
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration
	// RatePerSecond bounds outbound requests for the whole process; the burst
	// equals the rate.
	RatePerSecond float64
	// Retries is how many times a transport error or 5xx is retried.
	Retries int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// Client implements domain.DataSource against the accident analytics HTTP API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	retries      int
	retryBackoff time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL string, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	burst := max(int(opts.RatePerSecond), 1)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:      rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst),
		retries:      max(opts.Retries, 0),
		retryBackoff: opts.RetryBackoff,
		metrics:      metrics,
		logger:       logger,
	}
}

// States lists every state known to the backend.
func (c *Client) States(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.get(ctx, domain.QueryStates, "/api/states", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cities lists the cities of one state.
func (c *Client) Cities(ctx context.Context, state string) ([]string, error) {
	var out []string
	if err := c.get(ctx, domain.QueryCities, "/api/cities", url.Values{"state": {state}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Analytics fetches the aggregate series for a complete selection. Response
// keys that are not a known breakdown are ignored.
func (c *Client) Analytics(ctx context.Context, key domain.FetchKey) (domain.Bundle, error) {
	if !key.Ready() {
		return nil, fmt.Errorf("analytics: state and city are required")
	}

	var raw map[string]domain.Series
	if err := c.get(ctx, domain.QueryAnalytics, "/api/analytics", key.Query(), &raw); err != nil {
		return nil, err
	}

	bundle := make(domain.Bundle, len(raw))
	for k, s := range raw {
		b, ok := domain.ParseBreakdown(k)
		if !ok {
			c.logger.Debug("ignoring unknown breakdown", "breakdown", k)
			continue
		}
		bundle[b] = s
	}
	return bundle, nil
}

func (c *Client) get(ctx context.Context, query, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	backoff := c.retryBackoff
	for attempt := 0; ; attempt++ {
		retryable, err := c.do(ctx, query, u, out)
		if err == nil || !retryable || attempt >= c.retries {
			return err
		}
		c.logger.Debug("retrying backend request", "query", query, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return err
		}
		backoff = sharedretry.NextBackoff(backoff, maxRetryBackoff)
	}
}

// do performs one attempt. retryable is true for transport errors and 5xx
// responses while ctx is still live.
func (c *Client) do(ctx context.Context, query, u string, out any) (retryable bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: %s rate limit: %w", domain.ErrNetworkFailure, query, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %s request: %w", domain.ErrNetworkFailure, query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode >= http.StatusInternalServerError,
			fmt.Errorf("%w: backend API error: status %d: %s", domain.ErrNetworkFailure, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%w: decode %s response: %w", domain.ErrNetworkFailure, query, err)
	}
	return false, nil
}
