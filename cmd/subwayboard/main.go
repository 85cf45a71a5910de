package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"subwayboard.app/internal/app"
	"subwayboard.app/internal/config"
	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
	"subwayboard.app/internal/utils"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := config.NewConfig(4000, "development", nil)

	flag.IntVar(&cfg.Port, "port", 4000, "API server port")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development|staging|production)")
	flag.StringVar(&cfg.FeedBaseURL, "feed-base-url", feeds.DefaultBaseURL, "Base URL of the MTA GTFS-realtime feeds")
	flag.DurationVar(&cfg.RefreshTTL, "refresh-ttl", config.DefaultRefreshTTL, "How long decoded arrivals stay fresh")
	flag.DurationVar(&cfg.AlertsTTL, "alerts-ttl", config.DefaultAlertsTTL, "How long decoded alerts stay fresh")
	flag.DurationVar(&cfg.FetchTimeout, "fetch-timeout", config.DefaultFetchTimeout, "Timeout for one upstream feed fetch")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", config.DefaultPollInterval, "Cache warm-up interval, 0 disables warm-up")
	flag.IntVar(&cfg.MaxRetries, "max-retries", 0, "Retries for a failed upstream fetch")

	var (
		configFile  = flag.String("config-file", "", "Path to a local JSON or YAML station list")
		configURL   = flag.String("config-url", "", "URL to a remote JSON station list")
		corsOrigins = flag.String("cors-origins", os.Getenv("CORS_ORIGINS"), "Comma separated list of allowed CORS origins")
	)

	flag.Parse()

	cfg.APIKey = os.Getenv("MTA_API_KEY")
	cfg.AllowedOrigins = utils.SplitCSV(*corsOrigins)
	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := report.SetupSentry(cfg.Env, version); err != nil {
		fmt.Println("Error:", err)
	}
	defer report.FlushSentry()
	report.ConfigureScope(cfg.Env, version)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := app.NewPooledClient(cfg.FetchTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		stations []models.StationRequest
		err      error
	)
	switch {
	case *configFile != "":
		stations, err = config.LoadConfigFromFile(*configFile)
	case *configURL != "":
		stations, err = config.LoadConfigFromURL(ctx, client, *configURL, configAuthUser, configAuthPass, cfg.MaxRetries)
	}
	if err != nil {
		logger.Error("Error loading configuration", "error", err)
		report.FlushSentry()
		os.Exit(1)
	}
	if len(stations) == 0 {
		logger.Warn("No stations configured; the board endpoint will be empty")
	}
	cfg.UpdateConfig(stations)

	application := app.New(cfg, logger, client, version)

	// If a remote URL is specified, refresh the station list every minute
	if *configURL != "" {
		go application.ConfigService.RefreshConfig(ctx, *configURL, configAuthUser, configAuthPass, time.Minute)
	}

	go application.StartWarmup(ctx, cfg.PollInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env, "stations", len(stations))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serverErr:
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		logger.Error(err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped")
}
