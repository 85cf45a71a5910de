package app

import (
	"context"
	"time"

	"subwayboard.app/internal/gtfs"
)

// StartWarmup refreshes the configured stations and the alerts immediately
// and then every interval, so board requests are usually served from cache.
// It returns once ctx is cancelled. A non-positive interval disables it.
func (app *Application) StartWarmup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.WarmCaches(ctx)
	for {
		select {
		case <-ctx.Done():
			app.Logger.Info("Stopping cache warm-up")
			return
		case <-ticker.C:
			app.WarmCaches(ctx)
		}
	}
}

// WarmCaches resolves every configured station and the alerts feed once.
// It returns the number of stop keys that have at least one arrival.
func (app *Application) WarmCaches(ctx context.Context) int {
	requests := gtfs.ExpandRequests(app.ConfigService.Config.GetStations())

	withArrivals := 0
	if len(requests) > 0 {
		results := app.GtfsService.GetArrivalsForStations(ctx, requests, app.GtfsService.Clock())
		for _, r := range results {
			if len(r.Arrivals) > 0 {
				withArrivals++
			}
		}
	}

	alerts := app.GtfsService.GetAlerts(ctx, nil)
	app.Logger.Debug("Warmed caches", "stop_keys", len(requests), "with_arrivals", withArrivals, "alerts", len(alerts))
	return withArrivals
}
