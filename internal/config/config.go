package config

import (
	"sync"
	"time"

	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/models"
)

const (
	DefaultRefreshTTL   = 30 * time.Second
	DefaultAlertsTTL    = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultPollInterval = 30 * time.Second
)

// Config holds all the configuration settings for our application.
type Config struct {
	Port         int
	Env          string
	FeedBaseURL  string
	APIKey       string
	RefreshTTL   time.Duration
	AlertsTTL    time.Duration
	FetchTimeout time.Duration
	PollInterval time.Duration
	MaxRetries   int
	// AllowedOrigins lists the dashboard origins allowed by CORS; empty allows any.
	AllowedOrigins []string
	Mu             sync.RWMutex
	Stations       []models.StationRequest
}

// NewConfig creates a new instance of a Config struct with default TTLs.
func NewConfig(port int, env string, stations []models.StationRequest) *Config {
	return &Config{
		Port:         port,
		Env:          env,
		FeedBaseURL:  feeds.DefaultBaseURL,
		RefreshTTL:   DefaultRefreshTTL,
		AlertsTTL:    DefaultAlertsTTL,
		FetchTimeout: DefaultFetchTimeout,
		PollInterval: DefaultPollInterval,
		Stations:     stations,
	}
}

// UpdateConfig safely replaces the configured stations.
func (cfg *Config) UpdateConfig(newStations []models.StationRequest) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Stations = newStations
}

// GetStations returns a copy of the configured stations.
func (cfg *Config) GetStations() []models.StationRequest {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return append([]models.StationRequest(nil), cfg.Stations...)
}

// WriteTimeout bounds how long the server may take to write a response.
// An arrivals request for both directions can wait on two sequential feed
// fetches, each capped by FetchTimeout including retries.
func (cfg *Config) WriteTimeout() time.Duration {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return 2*fetchTimeout + 5*time.Second
}
