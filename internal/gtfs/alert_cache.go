package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"subwayboard.app/internal/metrics"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
)

const alertsEntryKey = "alerts"

// AlertCache holds the whole alerts feed in a single entry. Filtering by line
// happens on every read, so different filters share one fetch.
type AlertCache struct {
	store   *Store[[]models.Alert]
	fetcher FeedFetcher
	flights singleflight.Group
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewAlertCache creates an empty AlertCache. now is the clock used for TTL checks.
func NewAlertCache(fetcher FeedFetcher, ttl time.Duration, now func() time.Time, logger *slog.Logger) *AlertCache {
	if now == nil {
		now = time.Now
	}
	return &AlertCache{
		store:   NewStore[[]models.Alert](),
		fetcher: fetcher,
		ttl:     ttl,
		now:     now,
		logger:  logger,
	}
}

// GetAlerts returns the current alerts affecting any line in lineFilter, or
// every alert when lineFilter is empty. Matching is case-insensitive.
// On refresh failure the previous alerts are filtered and returned instead.
func (c *AlertCache) GetAlerts(ctx context.Context, lineFilter []string) []models.Alert {
	now := c.now()

	if entry, ok := c.store.Get(alertsEntryKey); ok && entry.FreshAt(now, c.ttl) {
		recordLookup(alertsCacheName, lookupHit)
		return FilterAlerts(entry.Payload, lineFilter)
	}

	ch := c.flights.DoChan(alertsEntryKey, func() (interface{}, error) {
		if entry, ok := c.store.Get(alertsEntryKey); ok && entry.FreshAt(now, c.ttl) {
			return entry, nil
		}
		return c.refresh(context.WithoutCancel(ctx), now)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.fallback(lineFilter)
		}
		recordLookup(alertsCacheName, lookupMiss)
		return FilterAlerts(res.Val.(*CacheEntry[[]models.Alert]).Payload, lineFilter)
	case <-ctx.Done():
		return c.fallback(lineFilter)
	}
}

func (c *AlertCache) refresh(ctx context.Context, now time.Time) (entry *CacheEntry[[]models.Alert], err error) {
	generation := c.store.Generation()
	start := time.Now()

	defer func() {
		if r := recover(); report.RecoverAndReport(r, map[string]string{"feed_group": AlertsFeedKey}) {
			c.logger.Error("Recovered from panic while refreshing alerts", "panic", r)
			entry, err = nil, fmt.Errorf("panic refreshing alerts: %v", r)
		}
	}()

	raw, err := c.fetcher.FetchAlerts(ctx)
	if err == nil {
		var alerts []models.Alert
		alerts, err = DecodeAlerts(raw)
		if err == nil {
			entry = &CacheEntry[[]models.Alert]{Payload: alerts, FetchedAt: now}
		}
	}
	recordFetch(AlertsFeedKey, start, err)
	if err != nil {
		logFetchFailure(c.logger, err, AlertsFeedKey, alertsEntryKey)
		return nil, err
	}

	if c.store.SetIfGeneration(alertsEntryKey, entry, generation) {
		recordSeverities(entry.Payload)
	}
	return entry, nil
}

func (c *AlertCache) fallback(lineFilter []string) []models.Alert {
	if entry, ok := c.store.Get(alertsEntryKey); ok {
		recordLookup(alertsCacheName, lookupStale)
		return FilterAlerts(entry.Payload, lineFilter)
	}
	recordLookup(alertsCacheName, lookupEmpty)
	return []models.Alert{}
}

// Clear drops the cached alerts.
func (c *AlertCache) Clear() {
	c.store.Clear()
	recordSeverities(nil)
}

func recordSeverities(alerts []models.Alert) {
	counts := map[models.Severity]int{
		models.SeverityMajor: 0,
		models.SeverityMinor: 0,
		models.SeverityInfo:  0,
	}
	for _, a := range alerts {
		counts[a.Severity]++
	}
	for severity, n := range counts {
		metrics.ActiveAlerts.WithLabelValues(string(severity)).Set(float64(n))
	}
}
