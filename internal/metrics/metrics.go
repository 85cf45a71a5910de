package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for FeedFetches.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
	OutcomeBackoff   = "backoff"
)

var (
	// FeedFetches counts upstream feed fetch attempts by feed group and outcome.
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subwayboard_feed_fetches_total",
		Help: "Upstream GTFS-RT fetches by feed group and outcome",
	}, []string{"feed_group", "outcome"})

	FeedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subwayboard_feed_fetch_duration_seconds",
		Help:    "Time spent fetching and decoding one feed",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed_group"})

	FeedLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subwayboard_feed_last_success_timestamp_seconds",
		Help: "Unix time of the last successful fetch per feed group",
	}, []string{"feed_group"})
)

var (
	// CacheLookups counts cache reads by cache name and result (hit, miss, stale, empty).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subwayboard_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subwayboard_cache_entries",
		Help: "Number of entries held by each cache",
	}, []string{"cache"})
)

var (
	ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subwayboard_active_alerts",
		Help: "Alerts in the last decoded alerts feed, by severity",
	}, []string{"severity"})
)

var (
	// OutgoingLatency records the latency of every outgoing HTTP request.
	OutgoingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subwayboard_outgoing_request_duration_seconds",
		Help:    "Latency of outgoing HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"url", "method", "status"})
)
