package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/gtfs"
	"subwayboard.app/internal/models"
	"subwayboard.app/internal/report"
	"subwayboard.app/internal/utils"
)

// MaxDisplayArrivals caps a merged both-directions list.
const MaxDisplayArrivals = 6

// HealthStatus is the body of /v1/healthcheck.
// Ready is true when at least one station is configured for the board.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Stations    int    `json:"stations"`
	CachedStops int    `json:"cached_stops"`
	Ready       bool   `json:"ready"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		report.ReportError(err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	numStations := len(app.ConfigService.Config.GetStations())

	writeJSON(w, http.StatusOK, HealthStatus{
		Status:      "available",
		Environment: app.ConfigService.Config.Env,
		Version:     app.Version,
		Stations:    numStations,
		CachedStops: app.GtfsService.Arrivals.Len(),
		Ready:       numStations > 0,
	})
}

// FeedInfo is the body of /v1/feeds/:station.
type FeedInfo struct {
	Station   string   `json:"station"`
	FeedGroup string   `json:"feed_group"`
	FeedURL   string   `json:"feed_url"`
	Lines     []string `json:"lines"`
}

func (app *Application) feedHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	station := strings.TrimSpace(ps.ByName("station"))
	group := app.GtfsService.ResolveFeedGroup(station)

	url, err := feeds.FeedURL(app.ConfigService.Config.FeedBaseURL, group)
	if err != nil {
		report.ReportError(err)
		writeError(w, http.StatusInternalServerError, "no feed configured for station")
		return
	}

	lines := feeds.LinesForStation(station)
	if lines == nil {
		lines = []string{}
	}

	writeJSON(w, http.StatusOK, FeedInfo{
		Station:   station,
		FeedGroup: string(group),
		FeedURL:   url,
		Lines:     lines,
	})
}

// arrivalsHandler serves one station. Direction "B" fetches both directions
// and merges them by ETA, capped at MaxDisplayArrivals.
func (app *Application) arrivalsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	station := strings.TrimSpace(ps.ByName("station"))
	if station == "" {
		writeError(w, http.StatusBadRequest, "station is required")
		return
	}

	direction, err := models.ParseDirection(ps.ByName("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	force := utils.IsTruthy(query.Get("refresh"))
	name := query.Get("name")
	if name == "" {
		name = station
	}

	ctx := r.Context()
	now := app.GtfsService.Clock()
	result := models.StationArrivals{ID: station, Direction: direction, Name: name}

	if direction == models.BothDirections {
		north := app.GtfsService.GetArrivals(ctx, station, models.Northbound, now, force)
		south := app.GtfsService.GetArrivals(ctx, station, models.Southbound, now, force)
		result.Arrivals = gtfs.MergeArrivals(north, south, MaxDisplayArrivals)
	} else {
		result.Arrivals = app.GtfsService.GetArrivals(ctx, station, direction, now, force)
	}

	writeJSON(w, http.StatusOK, result)
}

// boardHandler serves every configured station in configuration order.
func (app *Application) boardHandler(w http.ResponseWriter, r *http.Request) {
	stations := app.ConfigService.Config.GetStations()
	board := app.buildBoard(r, stations)
	writeJSON(w, http.StatusOK, map[string]interface{}{"stations": board})
}

func (app *Application) buildBoard(r *http.Request, stations []models.StationRequest) []models.StationArrivals {
	results := app.GtfsService.GetArrivalsForStations(r.Context(), gtfs.ExpandRequests(stations), app.GtfsService.Clock())

	board := make([]models.StationArrivals, 0, len(stations))
	for _, s := range stations {
		// Rows come from the configuration; several entries may share a stop key.
		row := models.StationArrivals{ID: s.ID, Direction: s.Direction, Name: s.Name}
		if row.Name == "" {
			row.Name = s.ID
		}

		switch s.Direction {
		case models.BothDirections:
			north := results[models.StopKey(s.ID, models.Northbound)]
			south := results[models.StopKey(s.ID, models.Southbound)]
			row.Arrivals = gtfs.MergeArrivals(north.Arrivals, south.Arrivals, MaxDisplayArrivals)
		case "":
			row.Direction = models.Northbound
			row.Arrivals = results[models.StopKey(s.ID, models.Northbound)].Arrivals
		default:
			row.Arrivals = results[models.StopKey(s.ID, s.Direction)].Arrivals
		}
		if row.Arrivals == nil {
			row.Arrivals = []models.ArrivalEvent{}
		}
		board = append(board, row)
	}
	return board
}

func (app *Application) alertsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lines := utils.SplitCSV(query.Get("lines"))
	if station := strings.TrimSpace(query.Get("station")); station != "" {
		lines = append(lines, feeds.LinesForStation(station)...)
	}

	alerts := app.GtfsService.GetAlerts(r.Context(), lines)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (app *Application) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	app.GtfsService.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
