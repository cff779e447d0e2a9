package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jjenkins/cornerwise/internal/model"
)

const (
	defaultTimeout = 120 * time.Second
	maxRetries     = 3
	initialBackoff = 2 * time.Second
)

// FeedClient fetches case batches from importer endpoints
type FeedClient struct {
	client  *http.Client
	backoff time.Duration
}

// NewFeedClient creates a new importer feed client
func NewFeedClient() *FeedClient {
	return &FeedClient{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		backoff: initialBackoff,
	}
}

// FeedURL adds the `when` parameter (YYYYmmdd) to an importer endpoint.
// A nil when asks for everything the endpoint has.
func FeedURL(endpoint string, when *time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid importer url %q: %w", endpoint, err)
	}
	if when != nil {
		q := u.Query()
		q.Set("when", when.Format("20060102"))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// FetchCases retrieves the cases an importer reports as updated since when
func (c *FeedClient) FetchCases(ctx context.Context, endpoint string, when *time.Time) (*model.ImportResponse, error) {
	feedURL, err := FeedURL(endpoint, when)
	if err != nil {
		return nil, err
	}

	body, err := c.fetchWithRetry(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cases: %w", err)
	}

	var resp model.ImportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse cases response: %w", err)
	}
	return &resp, nil
}

// fetchWithRetry performs an HTTP GET with exponential backoff retry
func (c *FeedClient) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
