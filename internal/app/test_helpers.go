package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gtfsrt "github.com/jamespfennell/gtfs/proto"
	"google.golang.org/protobuf/proto"
	"subwayboard.app/internal/config"
	"subwayboard.app/internal/gtfs"
	"subwayboard.app/internal/models"
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

type testArrival struct {
	Route  string
	StopID string
	In     time.Duration
}

// encodeTripFeed builds a GTFS-realtime feed with one trip per arrival,
// timed relative to testNow.
func encodeTripFeed(t *testing.T, arrivals ...testArrival) []byte {
	t.Helper()

	msg := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(testNow.Unix())),
		},
	}
	for i, a := range arrivals {
		id := a.Route + "_" + a.StopID + "_" + string(rune('a'+i))
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(id),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{TripId: proto.String(id), RouteId: proto.String(a.Route)},
				StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String(a.StopID),
					Arrival: &gtfsrt.TripUpdate_StopTimeEvent{Time: proto.Int64(testNow.Add(a.In).Unix())},
				}},
			},
		})
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal trip feed: %v", err)
	}
	return data
}

// encodeAlertFeed builds an alerts feed of English alerts, one route each.
func encodeAlertFeed(t *testing.T, alerts map[string][2]string) []byte {
	t.Helper()

	msg := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
	}
	for id, a := range alerts {
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(id),
			Alert: &gtfsrt.Alert{
				InformedEntity: []*gtfsrt.EntitySelector{{RouteId: proto.String(a[0])}},
				HeaderText: &gtfsrt.TranslatedString{Translation: []*gtfsrt.TranslatedString_Translation{{
					Text: proto.String(a[1]), Language: proto.String("en"),
				}}},
			},
		})
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal alert feed: %v", err)
	}
	return data
}

// mtaStub serves payloads keyed by escaped feed path, e.g. "nyct%2Fgtfs".
// Unknown paths answer 404.
type mtaStub struct {
	*httptest.Server
	mu       sync.Mutex
	payloads map[string][]byte
	hits     map[string]int
}

func newMTAStub(t *testing.T) *mtaStub {
	t.Helper()

	stub := &mtaStub{payloads: make(map[string][]byte), hits: make(map[string]int)}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.EscapedPath(), "/")
		stub.mu.Lock()
		stub.hits[path]++
		data, ok := stub.payloads[path]
		stub.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(data)
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *mtaStub) set(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[path] = data
}

func (s *mtaStub) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// newTestApplication wires an Application against stub with a fixed clock
// and no retries.
func newTestApplication(t *testing.T, stub *mtaStub, stations []models.StationRequest) *Application {
	t.Helper()

	cfg := config.NewConfig(4000, "testing", stations)
	cfg.FeedBaseURL = stub.URL
	cfg.FetchTimeout = 2 * time.Second

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := New(cfg, logger, stub.Client(), "test-version")
	app.GtfsService = gtfs.NewGtfsService(
		gtfs.NewFeedClient(stub.Client(), cfg, app.GtfsService.Backoff),
		app.GtfsService.Backoff,
		gtfs.ServiceOptions{Clock: func() time.Time { return testNow }},
		logger,
	)
	return app
}
