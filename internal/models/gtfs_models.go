package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the travel direction suffix used by NYCT stop ids.
type Direction string

const (
	Northbound Direction = "N"
	Southbound Direction = "S"

	// BothDirections is only valid in a StationRequest; it is expanded into
	// one request per direction before lookup.
	BothDirections Direction = "B"
)

// ParseDirection accepts the stop id suffix or a spelled-out direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north", "northbound", "uptown":
		return Northbound, nil
	case "s", "south", "southbound", "downtown":
		return Southbound, nil
	case "b", "both":
		return BothDirections, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// StopKey is the station id concatenated with the direction, e.g. "120N".
// It is the unit of upstream lookup.
func StopKey(stationID string, direction Direction) string {
	return stationID + string(direction)
}

// ArrivalEvent is a single predicted arrival at a stop.
//
// Events are only built for arrivals strictly in the future. Rank is 1-based
// and strictly increases with ETAMinutes within a response.
type ArrivalEvent struct {
	Line        string    `json:"line"`
	ETAMinutes  int       `json:"time"`
	Destination string    `json:"destination"`
	Rank        int       `json:"rank"`
	ArrivalTime time.Time `json:"arrival_time"`
}

// StationRequest identifies one station/direction for a batch lookup.
type StationRequest struct {
	ID        string    `json:"id" yaml:"id" validate:"required,alphanum"`
	Direction Direction `json:"direction" yaml:"direction" validate:"omitempty,oneof=N S B"`
	Name      string    `json:"name" yaml:"name"`
}

// StationArrivals is the result of a batch lookup for one StationRequest.
type StationArrivals struct {
	ID        string         `json:"id"`
	Direction Direction      `json:"direction"`
	Name      string         `json:"name"`
	Arrivals  []ArrivalEvent `json:"arrivals"`
}
