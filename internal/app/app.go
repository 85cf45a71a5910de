package app

import (
	"log/slog"
	"net/http"

	"subwayboard.app/internal/config"
	"subwayboard.app/internal/gtfs"
)

// Application wires the configuration, the transit-feed core and the logger
// together for the HTTP handlers and the warm-up poller.
type Application struct {
	ConfigService *config.ConfigService
	GtfsService   *gtfs.GtfsService
	Logger        *slog.Logger
	Version       string
}

// New creates and wires all dependencies for the Application.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, version string) *Application {
	backoff := config.NewBackoffStore()
	feedClient := gtfs.NewFeedClient(client, cfg, backoff)

	gtfsService := gtfs.NewGtfsService(feedClient, backoff, gtfs.ServiceOptions{
		RefreshTTL: cfg.RefreshTTL,
		AlertsTTL:  cfg.AlertsTTL,
	}, logger)

	return &Application{
		ConfigService: config.NewConfigService(logger, client, cfg),
		GtfsService:   gtfsService,
		Logger:        logger,
		Version:       version,
	}
}
