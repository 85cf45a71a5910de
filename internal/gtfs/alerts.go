package gtfs

import (
	"slices"
	"strings"

	remoteGtfs "github.com/jamespfennell/gtfs"
	"subwayboard.app/internal/models"
)

// Keyword sets are matched case-insensitively; major is checked before minor.
var (
	majorKeywords = []string{
		"suspended",
		"no service",
		"major delays",
		"not running",
		"not stopping",
		"no trains",
		"severe delays",
		"shuttle buses",
	}
	minorKeywords = []string{
		"delays",
		"delayed",
		"signal problems",
		"slower",
		"running with",
		"reduced service",
		"less frequently",
		"longer waits",
	}
)

// ClassifySeverity derives a severity from alert text. The heuristic is
// ordered keyword matching over header and description together.
func ClassifySeverity(header, description string) models.Severity {
	text := strings.ToLower(header + " " + description)
	if containsAny(text, majorKeywords) {
		return models.SeverityMajor
	}
	if containsAny(text, minorKeywords) {
		return models.SeverityMinor
	}
	return models.SeverityInfo
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// DecodeAlerts turns a raw alerts feed into Alert records with severity set.
func DecodeAlerts(raw []byte) ([]models.Alert, error) {
	realtime, err := parseRealtime(raw, "alerts")
	if err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(realtime.Alerts))
	for _, a := range realtime.Alerts {
		alerts = append(alerts, convertAlert(a))
	}
	return alerts, nil
}

func convertAlert(a remoteGtfs.Alert) models.Alert {
	header := pickText(a.Header)
	description := pickText(a.Description)

	alert := models.Alert{
		ID:             a.ID,
		Header:         header,
		Description:    description,
		AffectedRoutes: affectedRoutes(a.InformedEntities),
		Severity:       ClassifySeverity(header, description),
	}

	if len(a.ActivePeriods) > 0 {
		period := a.ActivePeriods[0]
		if period.StartsAt != nil || period.EndsAt != nil {
			alert.ActivePeriod = &models.ActivePeriod{Start: period.StartsAt, End: period.EndsAt}
		}
	}
	return alert
}

// pickText returns the first plain English or untagged translation.
//
// When the alert has none, it falls back to the first regional English
// variant such as "en-html", and after that to the first translation in any
// language, so an alert never loses its text to a language tag.
func pickText(texts []remoteGtfs.AlertText) string {
	for _, t := range texts {
		if lang := strings.ToLower(t.Language); lang == "" || lang == "en" {
			return t.Text
		}
	}
	for _, t := range texts {
		if strings.HasPrefix(strings.ToLower(t.Language), "en-") {
			return t.Text
		}
	}
	if len(texts) > 0 {
		return texts[0].Text
	}
	return ""
}

func affectedRoutes(entities []remoteGtfs.AlertInformedEntity) []string {
	routes := []string{}
	seen := make(map[string]bool)
	for _, e := range entities {
		if e.RouteID == nil || *e.RouteID == "" || seen[*e.RouteID] {
			continue
		}
		seen[*e.RouteID] = true
		routes = append(routes, *e.RouteID)
	}
	return routes
}

// FilterAlerts returns the alerts affecting any of lines. An empty filter keeps everything.
func FilterAlerts(alerts []models.Alert, lines []string) []models.Alert {
	filtered := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if len(lines) == 0 || a.AffectsAny(lines) {
			a.AffectedRoutes = slices.Clone(a.AffectedRoutes)
			filtered = append(filtered, a)
		}
	}
	return filtered
}
