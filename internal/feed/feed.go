package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/model"

	"go.uber.org/zap"
)

// Client fetches a repository's public event feed.
type Client struct {
	url   string
	httpc *http.Client
}

// NewClient creates a Client for the given events endpoint URL.
func NewClient(url string) *Client {
	return &Client{
		url:   url,
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch issues one GET against the feed endpoint and decodes the body as an
// event array. A non-2xx status or a body that is not a JSON array is an
// error; malformed individual records are skipped by the decoder.
func (c *Client) Fetch(ctx context.Context) ([]model.Event, error) {
	logger.Lg.Info("api_fetch_flight", zap.String("url", c.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	logger.Lg.Info("api_fetch_done",
		zap.String("url", c.url),
		zap.Int("status", res.StatusCode),
		zap.Int("content_length", int(res.ContentLength)),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("feed fetch: status %d", res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return model.DecodeEvents(body)
}
