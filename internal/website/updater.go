// Package website pushes price updates to the shop's HTTP catalog API.
package website

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/model"
)

// DefaultBatchSize is the number of updates sent per batch request.
const DefaultBatchSize = 100

// Config configures an Updater.
type Config struct {
	HTTPClient        *http.Client
	APIURL            string
	APIKey            string
	BatchSize         int
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// Updater writes prices through the website API.
type Updater struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	apiURL      string
	apiKey      string
	batchSize   int
	retry       common.RetryOptions
}

// NewUpdater creates an Updater.
func NewUpdater(cfg Config) (*Updater, error) {
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("%w: website api url: %w", common.ErrInvalidConfig, err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Updater{
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		apiKey:      cfg.APIKey,
		batchSize:   cfg.BatchSize,
		retry: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     10 * cfg.RetryDelay,
		},
	}, nil
}

type priceJSON struct {
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Code          string           `json:"code_1c"`
	Price         decimal.Decimal  `json:"price"`
}

type batchRequest struct {
	Updates []priceJSON `json:"updates"`
}

type batchResponse struct {
	SuccessCount *int `json:"success_count"`
	FailedCount  *int `json:"failed_count"`
}

// UpdatePrices sends updates in batches. A batch that fails outright counts
// all of its rows as failed and the remaining batches are still sent.
func (u *Updater) UpdatePrices(ctx context.Context, updates []model.PriceUpdate) (model.SyncStats, error) {
	var stats model.SyncStats
	if len(updates) == 0 {
		slog.Warn("No price updates for the website")
		return stats, nil
	}

	slog.Info("Starting website batch update", "updates", len(updates), "batch_size", u.batchSize)

	for start := 0; start < len(updates); start += u.batchSize {
		end := min(start+u.batchSize, len(updates))
		batch := updates[start:end]
		number := start/u.batchSize + 1

		if err := ctx.Err(); err != nil {
			stats.Failed += len(updates) - start
			return stats, err
		}

		batchStats, err := u.sendBatch(ctx, batch)
		if err != nil {
			common.LogError(err, "Website batch failed", common.Fields{"batch": number, "size": len(batch)})
			stats.Failed += len(batch)
			continue
		}

		slog.Info("Website batch updated", "batch", number, "success", batchStats.Success, "failed", batchStats.Failed)
		stats.Add(batchStats)
	}

	slog.Info("Website update completed", "success", stats.Success, "failed", stats.Failed)
	return stats, nil
}

func (u *Updater) sendBatch(ctx context.Context, batch []model.PriceUpdate) (model.SyncStats, error) {
	payload := batchRequest{Updates: make([]priceJSON, 0, len(batch))}
	for _, p := range batch {
		payload.Updates = append(payload.Updates, priceJSON{
			Code:          p.Code,
			Price:         p.Price,
			Discount:      p.Discount,
			DiscountPrice: p.DiscountPrice,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.SyncStats{}, fmt.Errorf("failed to encode batch: %w", err)
	}

	var resp batchResponse
	if err := u.do(ctx, http.MethodPut, "/products/prices/batch", body, &resp); err != nil {
		return model.SyncStats{}, err
	}

	stats := model.SyncStats{Success: len(batch)}
	if resp.SuccessCount != nil {
		stats.Success = *resp.SuccessCount
	}
	if resp.FailedCount != nil {
		stats.Failed = *resp.FailedCount
	}
	return stats, nil
}

// Ping checks the website API health endpoint.
func (u *Updater) Ping(ctx context.Context) error {
	if err := u.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("website connection test failed: %w", err)
	}
	slog.Info("Website API connection successful")
	return nil
}

func (u *Updater) do(ctx context.Context, method, path string, body []byte, out any) error {
	return common.WithRetry(ctx, func() error {
		if err := u.rateLimiter.Wait(ctx); err != nil {
			return common.Permanent(fmt.Errorf("rate limiter error: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, method, u.apiURL+path, bytes.NewReader(body))
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if u.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+u.apiKey)
		}

		resp, err := u.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return common.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading body: %w", common.ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", common.ErrRateLimit, path)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s returned status %d", common.ErrUpstreamUnavailable, path, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return common.Permanent(fmt.Errorf("%w: %s returned status %d", common.ErrUnexpectedResponse, path, resp.StatusCode))
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return common.Permanent(fmt.Errorf("%w: decoding %s: %w", common.ErrUnexpectedResponse, path, err))
		}
		return nil
	}, u.retry)
}
