package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"
	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/metrics"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
)

// ArrivalCache caches ranked arrivals per stop key.
//
// Concurrent misses for one stop key share a single upstream fetch. Forced
// refreshes share a separate flight, so a forced caller never receives the
// result of a fetch it did not ask for, and concurrent forced callers still
// trigger only one fetch between them.
type ArrivalCache struct {
	store   *Store[[]models.ArrivalEvent]
	fetcher FeedFetcher
	flights singleflight.Group
	ttl     time.Duration
	logger  *slog.Logger
}

// NewArrivalCache creates an empty ArrivalCache with the given refresh TTL.
func NewArrivalCache(fetcher FeedFetcher, ttl time.Duration, logger *slog.Logger) *ArrivalCache {
	return &ArrivalCache{
		store:   NewStore[[]models.ArrivalEvent](),
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
	}
}

// GetArrivals returns the arrivals for a station and direction.
//
// A fresh entry is served without network access unless forceRefresh is set.
// Otherwise the station's feed is fetched and decoded. Failures never surface:
// the previous arrivals are returned if any, else an empty slice. If ctx ends
// before the fetch completes the caller gets the same fallback while the fetch
// continues for anyone else waiting on it.
func (c *ArrivalCache) GetArrivals(ctx context.Context, stationID string, direction models.Direction, now time.Time, forceRefresh bool) []models.ArrivalEvent {
	key := models.StopKey(stationID, direction)

	if !forceRefresh {
		if entry, ok := c.store.Get(key); ok && entry.FreshAt(now, c.ttl) {
			recordLookup(arrivalsCacheName, lookupHit)
			return slices.Clone(entry.Payload)
		}
	}

	flightKey := key
	if forceRefresh {
		flightKey += "!force"
	}

	ch := c.flights.DoChan(flightKey, func() (interface{}, error) {
		if !forceRefresh {
			if entry, ok := c.store.Get(key); ok && entry.FreshAt(now, c.ttl) {
				return entry, nil
			}
		}
		return c.refresh(context.WithoutCancel(ctx), stationID, key, now)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.fallback(key)
		}
		recordLookup(arrivalsCacheName, lookupMiss)
		return slices.Clone(res.Val.(*CacheEntry[[]models.ArrivalEvent]).Payload)
	case <-ctx.Done():
		return c.fallback(key)
	}
}

// refresh fetches and decodes the feed for stationID and publishes a new entry.
func (c *ArrivalCache) refresh(ctx context.Context, stationID, key string, now time.Time) (entry *CacheEntry[[]models.ArrivalEvent], err error) {
	group := feeds.ResolveFeedGroup(stationID)
	generation := c.store.Generation()
	start := time.Now()

	defer func() {
		if r := recover(); report.RecoverAndReport(r, map[string]string{"feed_group": string(group), "stop_key": key}) {
			c.logger.Error("Recovered from panic while refreshing arrivals", "stop_key", key, "panic", r)
			entry, err = nil, fmt.Errorf("panic refreshing %s: %v", key, r)
		}
	}()

	raw, err := c.fetcher.FetchFeed(ctx, group)
	if err == nil {
		var arrivals []models.ArrivalEvent
		arrivals, err = DecodeArrivals(raw, key, now)
		if err == nil {
			entry = &CacheEntry[[]models.ArrivalEvent]{Payload: arrivals, FetchedAt: now}
		}
	}
	recordFetch(string(group), start, err)
	if err != nil {
		logFetchFailure(c.logger, err, string(group), key)
		return nil, err
	}

	c.store.SetIfGeneration(key, entry, generation)
	metrics.CacheEntries.WithLabelValues(arrivalsCacheName).Set(float64(c.store.Len()))
	return entry, nil
}

// fallback serves the previous arrivals for key, or an empty slice.
func (c *ArrivalCache) fallback(key string) []models.ArrivalEvent {
	if entry, ok := c.store.Get(key); ok {
		recordLookup(arrivalsCacheName, lookupStale)
		return slices.Clone(entry.Payload)
	}
	recordLookup(arrivalsCacheName, lookupEmpty)
	return []models.ArrivalEvent{}
}

// Clear drops every cached stop key.
func (c *ArrivalCache) Clear() {
	c.store.Clear()
	metrics.CacheEntries.WithLabelValues(arrivalsCacheName).Set(0)
}

// Len returns the number of cached stop keys.
func (c *ArrivalCache) Len() int {
	return c.store.Len()
}
