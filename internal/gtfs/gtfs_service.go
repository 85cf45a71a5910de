package gtfs

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"subwayboard.app/internal/config"
	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
	"subwayboard.app/internal/utils"
)

// DefaultMaxConcurrency bounds how many stations one batch resolves at once.
const DefaultMaxConcurrency = 8

// ServiceOptions tunes a GtfsService. Zero values fall back to the config defaults.
type ServiceOptions struct {
	RefreshTTL     time.Duration
	AlertsTTL      time.Duration
	MaxConcurrency int
	Clock          func() time.Time
}

// GtfsService is the entry point of the transit-feed core. It owns the
// arrival and alert caches and the per-feed backoff state.
type GtfsService struct {
	Arrivals       *ArrivalCache
	Alerts         *AlertCache
	Backoff        *config.BackoffStore
	Logger         *slog.Logger
	MaxConcurrency int
	Clock          func() time.Time
}

func NewGtfsService(fetcher FeedFetcher, backoff *config.BackoffStore, opts ServiceOptions, logger *slog.Logger) *GtfsService {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = config.DefaultRefreshTTL
	}
	if opts.AlertsTTL <= 0 {
		opts.AlertsTTL = config.DefaultAlertsTTL
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if backoff == nil {
		backoff = config.NewBackoffStore()
	}

	return &GtfsService{
		Arrivals:       NewArrivalCache(fetcher, opts.RefreshTTL, logger),
		Alerts:         NewAlertCache(fetcher, opts.AlertsTTL, opts.Clock, logger),
		Backoff:        backoff,
		Logger:         logger,
		MaxConcurrency: opts.MaxConcurrency,
		Clock:          opts.Clock,
	}
}

// ResolveFeedGroup returns the feed group serving stationID.
func (gs *GtfsService) ResolveFeedGroup(stationID string) feeds.FeedGroup {
	return feeds.ResolveFeedGroup(stationID)
}

// GetArrivals returns the arrivals for one station and direction.
func (gs *GtfsService) GetArrivals(ctx context.Context, stationID string, direction models.Direction, now time.Time, forceRefresh bool) []models.ArrivalEvent {
	return gs.Arrivals.GetArrivals(ctx, stationID, direction, now, forceRefresh)
}

// GetArrivalsForStations resolves every request concurrently and returns the
// results keyed by stop key. Each request is isolated: a panic while resolving
// one yields empty arrivals for that key only. A missing direction means
// northbound and a missing name defaults to the station id.
func (gs *GtfsService) GetArrivalsForStations(ctx context.Context, requests []models.StationRequest, now time.Time) map[string]models.StationArrivals {
	results := make([]models.StationArrivals, len(requests))

	var g errgroup.Group
	g.SetLimit(gs.MaxConcurrency)

	for i, req := range requests {
		direction := req.Direction
		if direction == "" {
			direction = models.Northbound
		}
		name := req.Name
		if name == "" {
			name = req.ID
		}
		results[i] = models.StationArrivals{ID: req.ID, Direction: direction, Name: name}

		g.Go(func() error {
			key := models.StopKey(req.ID, direction)
			defer func() {
				if r := recover(); report.RecoverAndReport(r, utils.MakeMap("stop_key", key)) {
					gs.Logger.Error("Recovered from panic resolving station", "stop_key", key, "panic", r)
					results[i].Arrivals = []models.ArrivalEvent{}
				}
			}()
			results[i].Arrivals = gs.Arrivals.GetArrivals(ctx, req.ID, direction, now, false)
			return nil
		})
	}
	_ = g.Wait()

	byKey := make(map[string]models.StationArrivals, len(results))
	for _, r := range results {
		byKey[models.StopKey(r.ID, r.Direction)] = r
	}
	return byKey
}

// GetAlerts returns current alerts, filtered to lineFilter when it is non-empty.
func (gs *GtfsService) GetAlerts(ctx context.Context, lineFilter []string) []models.Alert {
	return gs.Alerts.GetAlerts(ctx, lineFilter)
}

// ClearCache resets every cache and all feed backoff state.
func (gs *GtfsService) ClearCache() {
	gs.Arrivals.Clear()
	gs.Alerts.Clear()
	gs.Backoff.Reset()
	gs.Logger.Info("Cleared all cached feed data")
}

// ExpandRequests replaces each request for both directions ("B") with one
// northbound and one southbound request.
func ExpandRequests(requests []models.StationRequest) []models.StationRequest {
	expanded := make([]models.StationRequest, 0, len(requests))
	for _, req := range requests {
		if req.Direction != models.BothDirections {
			expanded = append(expanded, req)
			continue
		}
		north, south := req, req
		north.Direction = models.Northbound
		south.Direction = models.Southbound
		expanded = append(expanded, north, south)
	}
	return expanded
}
