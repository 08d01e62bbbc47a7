// Package grandline is the client of the GrandLine supplier API, the source
// catalog of the reconciliation.
package grandline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/pricesync/internal/common"
)

// NomenclatureBatchSize is the number of ids sent per nomenclature request.
const NomenclatureBatchSize = 100

// Config configures a Client.
type Config struct {
	HTTPClient        *http.Client
	BaseURL           string
	APIKey            string
	BranchID          string
	AgreementID       string
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// Client talks to the GrandLine API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	branchID    string
	agreementID string
	retry       common.RetryOptions
}

// NewClient creates a GrandLine API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: grandline api key", common.ErrMissingConfig)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: grandline base url: %w", common.ErrInvalidConfig, err)
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		branchID:    cfg.BranchID,
		agreementID: cfg.AgreementID,
		retry: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     10 * cfg.RetryDelay,
			Multiplier:   2,
		},
	}, nil
}

// getJSON performs a GET against path and decodes the JSON body into out.
// Server errors, rate limiting and transport failures are retried.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	return common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return common.Permanent(fmt.Errorf("rate limiter error: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return common.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %w", common.ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", common.ErrRateLimit, path)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s returned status %d", common.ErrUpstreamUnavailable, path, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return common.Permanent(fmt.Errorf("%w: %s returned status %d: %s",
				common.ErrUnexpectedResponse, path, resp.StatusCode, truncate(body, 200)))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return common.Permanent(fmt.Errorf("%w: decoding %s: %w", common.ErrUnexpectedResponse, path, err))
		}
		return nil
	}, c.retry)
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Ping checks that the API is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.getJSON(ctx, "/test", url.Values{}, nil); err != nil {
		return fmt.Errorf("grandline connection test failed: %w", err)
	}
	slog.Info("GrandLine API connection successful")
	return nil
}

// IsUnavailable reports whether err means the API could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, common.ErrUpstreamUnavailable) || errors.Is(err, common.ErrRateLimit)
}
