package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/logger"
)

const defaultMaxRetries = 3

// Client fetches aligned daily rows from a quote HTTP API. Server errors are
// retried with exponential backoff; client errors are not.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        logger.Logger
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithClientLogger sets the request logger.
func WithClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a quote API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dailyRow is the API wire format for one trading day.
type dailyRow struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	VIX   float64 `json:"vix"`
}

// DailyHistory implements core.DataProvider.
func (c *Client) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.TradingDay, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("start", start.Format(dateLayout))
	query.Set("end", end.Format(dateLayout))
	endpoint := fmt.Sprintf("%s/v1/daily?%s", c.baseURL, query.Encode())

	rows, err := c.fetchWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no %s rows in range", core.ErrDataUnavailable, symbol)
	}

	days := make([]core.TradingDay, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in response: %w", row.Date, err)
		}
		days = append(days, core.TradingDay{
			Date:  date.UTC(),
			Open:  row.Open,
			High:  row.High,
			Low:   row.Low,
			Close: row.Close,
			VIX:   row.VIX,
		})
	}
	return days, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, endpoint string) ([]dailyRow, error) {
	retry := &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 2 * time.Second,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.log != nil {
				c.log.WithError(lastErr).Warnf("retrying quote request, attempt %d/%d", attempt, c.maxRetries)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Duration()):
			}
		}

		rows, retryable, err := c.fetch(ctx, endpoint)
		if err == nil {
			return rows, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("quote request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string) (rows []dailyRow, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", core.ErrDataUnavailable, endpoint)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	return rows, false, nil
}
