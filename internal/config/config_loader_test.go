package config

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"subwayboard.app/internal/models"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temporary file: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Run("ValidJSON", func(t *testing.T) {
		path := writeTempFile(t, "stations.json", `{"stations": [
			{"id": "120", "direction": "N", "name": "96 St"},
			{"id": "A27", "direction": "s"}
		]}`)

		stations, err := loadConfigFromFile(path)
		if err != nil {
			t.Fatalf("loadConfigFromFile failed: %v", err)
		}

		expected := []models.StationRequest{
			{ID: "120", Direction: models.Northbound, Name: "96 St"},
			{ID: "A27", Direction: models.Southbound, Name: "A27"},
		}
		if len(stations) != len(expected) {
			t.Fatalf("Expected %d stations, got %d", len(expected), len(stations))
		}
		for i := range expected {
			if stations[i] != expected[i] {
				t.Errorf("Station %d: expected %+v, got %+v", i, expected[i], stations[i])
			}
		}
	})

	t.Run("ValidYAML", func(t *testing.T) {
		path := writeTempFile(t, "stations.yaml", `
stations:
  - id: "631"
    direction: S
    name: Grand Central-42 St
  - id: R16
`)

		stations, err := loadConfigFromFile(path)
		if err != nil {
			t.Fatalf("loadConfigFromFile failed: %v", err)
		}
		if len(stations) != 2 {
			t.Fatalf("Expected 2 stations, got %d", len(stations))
		}
		if stations[0].Name != "Grand Central-42 St" || stations[0].Direction != models.Southbound {
			t.Errorf("Unexpected first station: %+v", stations[0])
		}
		if stations[1].Direction != models.Northbound {
			t.Errorf("Expected missing direction to default to N, got %q", stations[1].Direction)
		}
	})

	t.Run("InvalidDirection", func(t *testing.T) {
		path := writeTempFile(t, "stations.json", `{"stations": [{"id": "120", "direction": "east"}]}`)

		if _, err := loadConfigFromFile(path); err == nil {
			t.Error("Expected a validation error for an unknown direction, got none")
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		path := writeTempFile(t, "stations.json", `{"stations": [{"direction": "N"}]}`)

		if _, err := loadConfigFromFile(path); err == nil {
			t.Error("Expected a validation error for a missing id, got none")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		path := writeTempFile(t, "stations.json", `{ this is not valid JSON }`)

		if _, err := loadConfigFromFile(path); err == nil {
			t.Errorf("Expected error with invalid JSON, got none")
		}
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		if _, err := LoadConfigFromFile("non-existent-file.json"); err == nil {
			t.Errorf("Expected error for non-existent file, got none")
		}
	})
}

func TestLoadConfigFromURL(t *testing.T) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	t.Run("ValidResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "user" || pass != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"stations": [{"id": "120", "direction": "N", "name": "96 St"}]}`))
		}))
		defer ts.Close()

		stations, err := loadConfigFromURL(context.Background(), client, ts.URL, "user", "pass", 0)
		if err != nil {
			t.Fatalf("loadConfigFromURL failed: %v", err)
		}

		expected := models.StationRequest{ID: "120", Direction: models.Northbound, Name: "96 St"}
		if len(stations) != 1 || stations[0] != expected {
			t.Errorf("Expected [%+v], got %+v", expected, stations)
		}
	})

	t.Run("ErrorResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		if _, err := LoadConfigFromURL(context.Background(), client, ts.URL, "", "", 0); err == nil {
			t.Errorf("Expected error for 404 response, got none")
		}
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		if _, err := loadConfigFromURL(context.Background(), client, ts.URL, "", "", 0); err == nil {
			t.Errorf("Expected error for invalid JSON, got none")
		}
	})
}

func TestRefreshConfig(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"stations": [{"id": "L08"}, {"id": "G22", "direction": "S"}]}`))
	}))
	defer ts.Close()

	cfg := NewConfig(4000, "testing", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refreshConfig(ctx, ts.Client(), ts.URL, "", "", cfg, logger, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(cfg.GetStations()) != 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("Timed out waiting for the config refresh")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if hits.Load() == 0 {
		t.Error("Expected the remote config to be fetched at least once")
	}
}

func TestConfigStationsAreCopied(t *testing.T) {
	cfg := NewConfig(4000, "testing", []models.StationRequest{{ID: "120"}})

	stations := cfg.GetStations()
	stations[0].ID = "mutated"

	if cfg.GetStations()[0].ID != "120" {
		t.Error("GetStations returned a slice aliasing the config")
	}

	cfg.UpdateConfig([]models.StationRequest{{ID: "A27"}, {ID: "R16"}})
	if len(cfg.GetStations()) != 2 {
		t.Errorf("Expected 2 stations after update, got %d", len(cfg.GetStations()))
	}
}
