package models

import (
	"strings"
	"time"
)

// Severity is the keyword-derived impact level of a service alert.
type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
	SeverityInfo  Severity = "info"
)

// ActivePeriod is the first active-period interval of an alert.
// Either bound may be missing.
type ActivePeriod struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Alert is a decoded service alert.
type Alert struct {
	ID             string        `json:"id"`
	Header         string        `json:"header"`
	Description    string        `json:"description"`
	AffectedRoutes []string      `json:"routes"`
	Severity       Severity      `json:"severity"`
	ActivePeriod   *ActivePeriod `json:"active_period,omitempty"`
}

// AffectsAny reports whether the alert names any of the given lines.
// Comparison is case-insensitive.
func (a Alert) AffectsAny(lines []string) bool {
	for _, route := range a.AffectedRoutes {
		for _, line := range lines {
			if strings.EqualFold(route, line) {
				return true
			}
		}
	}
	return false
}
