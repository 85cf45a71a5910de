package gtfs

import (
	"errors"
	"sort"
	"time"

	remoteGtfs "github.com/jamespfennell/gtfs"
	gtfsproto "github.com/jamespfennell/gtfs/proto"
	"google.golang.org/protobuf/proto"
	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/models"
)

// MaxArrivals is the number of arrivals kept per stop key.
const MaxArrivals = 10

var errEmptyPayload = errors.New("empty feed payload")

// parseRealtime parses a raw GTFS-realtime payload with the library's merged
// view of the feed. source names the feed in errors.
func parseRealtime(raw []byte, source string) (*remoteGtfs.Realtime, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Source: source, Err: errEmptyPayload}
	}
	realtime, err := remoteGtfs.ParseRealtime(raw, &remoteGtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return realtime, nil
}

// unmarshalFeed decodes a raw payload into the feed message as sent, keeping
// entity order and duplicate trip ids.
func unmarshalFeed(raw []byte, source string) (*gtfsproto.FeedMessage, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Source: source, Err: errEmptyPayload}
	}
	msg := &gtfsproto.FeedMessage{}
	if err := (proto.UnmarshalOptions{AllowPartial: true}).Unmarshal(raw, msg); err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return msg, nil
}

// DecodeArrivals extracts the upcoming arrivals at stopKey from a raw feed.
//
// Every matching stop-time update of every trip-update entity is considered,
// in feed order. Only predictions strictly after now are kept. The result is
// sorted by ETA, ties in feed order, ranked from 1 and truncated to MaxArrivals.
// A stop absent from the feed yields an empty slice, not an error.
func DecodeArrivals(raw []byte, stopKey string, now time.Time) ([]models.ArrivalEvent, error) {
	msg, err := unmarshalFeed(raw, stopKey)
	if err != nil {
		return nil, err
	}

	direction := directionOf(stopKey)
	arrivals := []models.ArrivalEvent{}

	for _, entity := range msg.GetEntity() {
		update := entity.GetTripUpdate()
		if update == nil || entity.GetIsDeleted() {
			continue
		}
		line := update.GetTrip().GetRouteId()
		for _, stu := range update.GetStopTimeUpdate() {
			if stu.GetStopId() != stopKey || stu.GetArrival() == nil || stu.GetArrival().Time == nil {
				continue
			}
			arrivalTime := time.Unix(stu.GetArrival().GetTime(), 0)
			diff := arrivalTime.Sub(now)
			if diff <= 0 {
				continue
			}
			arrivals = append(arrivals, models.ArrivalEvent{
				Line:        line,
				ETAMinutes:  int(diff / time.Minute),
				Destination: feeds.Destination(line, direction),
				ArrivalTime: arrivalTime.UTC(),
			})
		}
	}

	return rankArrivals(arrivals, MaxArrivals), nil
}

// rankArrivals stable-sorts by ETA, assigns ranks 1..N and keeps at most limit events.
func rankArrivals(arrivals []models.ArrivalEvent, limit int) []models.ArrivalEvent {
	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].ETAMinutes < arrivals[j].ETAMinutes
	})
	if len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	for i := range arrivals {
		arrivals[i].Rank = i + 1
	}
	return arrivals
}

// MergeArrivals interleaves two ranked lists by ascending ETA, re-ranks the
// result and caps it at limit. Ties favor a over b.
func MergeArrivals(a, b []models.ArrivalEvent, limit int) []models.ArrivalEvent {
	merged := make([]models.ArrivalEvent, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return rankArrivals(merged, limit)
}

func directionOf(stopKey string) models.Direction {
	if stopKey == "" {
		return ""
	}
	switch d := models.Direction(stopKey[len(stopKey)-1:]); d {
	case models.Northbound, models.Southbound:
		return d
	}
	return ""
}
