package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"subwayboard.app/internal/config"
	"subwayboard.app/internal/feeds"
)

// AlertsFeedKey is the backoff and metrics key of the alerts feed.
const AlertsFeedKey = "alerts"

// ErrInBackoff is wrapped by a TransportError when a feed is skipped because
// its previous fetch failed recently.
var ErrInBackoff = errors.New("feed is in backoff")

// FeedFetcher returns raw GTFS-realtime payloads.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, group feeds.FeedGroup) ([]byte, error)
	FetchAlerts(ctx context.Context) ([]byte, error)
}

// FeedClient fetches MTA feeds over HTTP.
type FeedClient struct {
	Client     *http.Client
	BaseURL    string
	APIKey     string
	MaxRetries int
	Timeout    time.Duration
	Backoff    *config.BackoffStore
}

// NewFeedClient builds a FeedClient from the process configuration.
func NewFeedClient(client *http.Client, cfg *config.Config, backoff *config.BackoffStore) *FeedClient {
	return &FeedClient{
		Client:     client,
		BaseURL:    cfg.FeedBaseURL,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.FetchTimeout,
		Backoff:    backoff,
	}
}

// FetchFeed downloads the feed of one feed group.
func (fc *FeedClient) FetchFeed(ctx context.Context, group feeds.FeedGroup) ([]byte, error) {
	url, err := feeds.FeedURL(fc.BaseURL, group)
	if err != nil {
		return nil, &TransportError{FeedGroup: string(group), Err: err}
	}
	return fc.fetch(ctx, string(group), url)
}

// FetchAlerts downloads the subway alerts feed.
func (fc *FeedClient) FetchAlerts(ctx context.Context) ([]byte, error) {
	return fc.fetch(ctx, AlertsFeedKey, feeds.AlertsURL(fc.BaseURL))
}

func (fc *FeedClient) fetch(ctx context.Context, key, url string) ([]byte, error) {
	if fc.Backoff != nil && fc.Backoff.InBackoff(key, time.Now()) {
		return nil, &TransportError{FeedGroup: key, URL: url, Err: ErrInBackoff}
	}

	timeout := fc.Timeout
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{FeedGroup: key, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/x-protobuf")
	if fc.APIKey != "" {
		req.Header.Set("x-api-key", fc.APIKey)
	}

	resp, err := config.DoWithBackoff(ctx, fc.Client, req, fc.MaxRetries)
	if err != nil {
		fc.markFailure(key)
		return nil, &TransportError{FeedGroup: key, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		fc.markFailure(key)
		return nil, &TransportError{
			FeedGroup:  key,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fc.markFailure(key)
		return nil, &TransportError{FeedGroup: key, URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	if fc.Backoff != nil {
		fc.Backoff.ResetBackoff(key)
	}
	return data, nil
}

func (fc *FeedClient) markFailure(key string) {
	if fc.Backoff != nil {
		fc.Backoff.UpdateBackoff(key)
	}
}
