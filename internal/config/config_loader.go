package config

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
	"subwayboard.app/internal/utils"
)

var validate = validator.New()

// ValidateConfigFlags ensures that at most one station source is specified:
// either a config file "--config-file" or a remote config URL "--config-url".
// Running with neither is allowed; the app then only serves ad-hoc lookups.
func ValidateConfigFlags(configFile, configURL *string) error {
	if (*configFile != "" && *configURL != "") || (*configFile != "" && len(flag.Args()) > 0) || (*configURL != "" && len(flag.Args()) > 0) {
		return fmt.Errorf("only one of --config-file or --config-url can be specified")
	}
	return nil
}

// stationFile is the on-disk and remote shape of the station list.
type stationFile struct {
	Stations []models.StationRequest `json:"stations" yaml:"stations" validate:"dive"`
}

// parseStations decodes a station list as YAML when isYAML is set, JSON otherwise,
// then validates and normalizes it.
func parseStations(data []byte, isYAML bool) ([]models.StationRequest, error) {
	var file stationFile
	if isYAML {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
	}

	for i := range file.Stations {
		s := &file.Stations[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Direction = models.Direction(strings.ToUpper(string(s.Direction)))
		if s.Direction == "" {
			s.Direction = models.Northbound
		}
		if s.Name == "" {
			s.Name = s.ID
		}
	}

	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid station config: %w", err)
	}
	return file.Stations, nil
}

// refreshConfig periodically fetches the station list from a remote URL and
// swaps it into cfg. Failures are logged and reported; the loop keeps going
// with the previous list until ctx is canceled.
func refreshConfig(ctx context.Context, client *http.Client, configURL, configAuthUser, configAuthPass string, cfg *Config, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping config refresh routine")
			return
		case <-ticker.C:
			newStations, err := loadConfigFromURL(ctx, client, configURL, configAuthUser, configAuthPass, cfg.MaxRetries)
			if err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  utils.MakeMap("config_url", configURL),
					Level: sentry.LevelError,
				})
				logger.Error("Failed to refresh remote config", "error", err)
				continue
			}
			cfg.UpdateConfig(newStations)
			logger.Info("Successfully refreshed station configuration", "stations", len(newStations))
		}
	}
}

// loadConfigFromFile reads a station list from disk. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func loadConfigFromFile(filePath string) ([]models.StationRequest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	return parseStations(data, ext == ".yaml" || ext == ".yml")
}

// loadConfigFromURL fetches a JSON station list from a remote HTTP(S) endpoint,
// using optional basic authentication.
func loadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) ([]models.StationRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if authUser != "" && authPass != "" {
		req.SetBasicAuth(authUser, authPass)
	}

	resp, err := DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote config returned status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote config: %w", err)
	}

	return parseStations(data, false)
}
