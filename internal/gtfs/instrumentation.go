package gtfs

import (
	"errors"
	"log/slog"
	"time"

	"subwayboard.app/internal/metrics"
	"subwayboard.app/internal/report"
)

// Cache names used as metric labels.
const (
	arrivalsCacheName = "arrivals"
	alertsCacheName   = "alerts"
)

// Lookup results used as metric labels.
const (
	lookupHit   = "hit"
	lookupMiss  = "miss"
	lookupStale = "stale"
	lookupEmpty = "empty"
)

func fetchOutcome(err error) string {
	var transportErr *TransportError
	var decodeErr *DecodeError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInBackoff):
		return metrics.OutcomeBackoff
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecode
	case errors.As(err, &transportErr):
		return metrics.OutcomeTransport
	}
	return metrics.OutcomeTransport
}

// recordFetch counts one fetch-and-decode of feedGroup that started at start.
func recordFetch(feedGroup string, start time.Time, err error) {
	metrics.FeedFetches.WithLabelValues(feedGroup, fetchOutcome(err)).Inc()
	if errors.Is(err, ErrInBackoff) {
		return
	}
	metrics.FeedFetchDuration.WithLabelValues(feedGroup).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.FeedLastSuccess.WithLabelValues(feedGroup).Set(float64(time.Now().Unix()))
	}
}

// logFetchFailure logs a degraded refresh and reports it to Sentry.
// Skipped fetches during backoff are only logged at debug level.
func logFetchFailure(logger *slog.Logger, err error, feedGroup, key string) {
	if errors.Is(err, ErrInBackoff) {
		logger.Debug("Skipping fetch while feed is in backoff", "feed_group", feedGroup, "key", key)
		return
	}

	url := ""
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		url = transportErr.URL
	}
	logger.Warn("Feed refresh failed, serving cached data", "feed_group", feedGroup, "key", key, "error", err)
	report.ReportFeedError(err, feedGroup, url)
}

func recordLookup(cache, result string) {
	metrics.CacheLookups.WithLabelValues(cache, result).Inc()
}
