package gtfs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gtfsrt "github.com/jamespfennell/gtfs/proto"
	"google.golang.org/protobuf/proto"
	"subwayboard.app/internal/feeds"
)

type stopFixture struct {
	StopID  string
	Arrival time.Time
}

type tripFixture struct {
	TripID  string
	RouteID string
	Stops   []stopFixture
}

type translationFixture struct {
	Text     string
	Language string
}

type alertFixture struct {
	ID          string
	Routes      []string
	Header      []translationFixture
	Description []translationFixture
	Periods     [][2]time.Time
}

func feedHeader() *gtfsrt.FeedHeader {
	return &gtfsrt.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
		Incrementality:      gtfsrt.FeedHeader_FULL_DATASET.Enum(),
		Timestamp:           proto.Uint64(uint64(time.Now().Unix())),
	}
}

// buildTripFeed encodes trips as a GTFS-realtime trip update feed.
func buildTripFeed(t *testing.T, trips ...tripFixture) []byte {
	t.Helper()

	msg := &gtfsrt.FeedMessage{Header: feedHeader()}
	for _, trip := range trips {
		update := &gtfsrt.TripUpdate{
			Trip: &gtfsrt.TripDescriptor{
				TripId:  proto.String(trip.TripID),
				RouteId: proto.String(trip.RouteID),
			},
		}
		for _, stop := range trip.Stops {
			update.StopTimeUpdate = append(update.StopTimeUpdate, &gtfsrt.TripUpdate_StopTimeUpdate{
				StopId: proto.String(stop.StopID),
				Arrival: &gtfsrt.TripUpdate_StopTimeEvent{
					Time: proto.Int64(stop.Arrival.Unix()),
				},
			})
		}
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{
			Id:         proto.String(trip.TripID),
			TripUpdate: update,
		})
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal trip feed: %v", err)
	}
	return data
}

func translatedString(texts []translationFixture) *gtfsrt.TranslatedString {
	if len(texts) == 0 {
		return nil
	}
	ts := &gtfsrt.TranslatedString{}
	for _, text := range texts {
		tr := &gtfsrt.TranslatedString_Translation{Text: proto.String(text.Text)}
		if text.Language != "" {
			tr.Language = proto.String(text.Language)
		}
		ts.Translation = append(ts.Translation, tr)
	}
	return ts
}

// buildAlertFeed encodes alerts as a GTFS-realtime service alerts feed.
func buildAlertFeed(t *testing.T, alerts ...alertFixture) []byte {
	t.Helper()

	msg := &gtfsrt.FeedMessage{Header: feedHeader()}
	for _, a := range alerts {
		alert := &gtfsrt.Alert{
			HeaderText:      translatedString(a.Header),
			DescriptionText: translatedString(a.Description),
		}
		for _, route := range a.Routes {
			alert.InformedEntity = append(alert.InformedEntity, &gtfsrt.EntitySelector{RouteId: proto.String(route)})
		}
		for _, period := range a.Periods {
			alert.ActivePeriod = append(alert.ActivePeriod, &gtfsrt.TimeRange{
				Start: proto.Uint64(uint64(period[0].Unix())),
				End:   proto.Uint64(uint64(period[1].Unix())),
			})
		}
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{Id: proto.String(a.ID), Alert: alert})
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal alert feed: %v", err)
	}
	return data
}

func englishAlert(id, header, description string, routes ...string) alertFixture {
	return alertFixture{
		ID:          id,
		Routes:      routes,
		Header:      []translationFixture{{Text: header, Language: "en"}},
		Description: []translationFixture{{Text: description, Language: "en"}},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves canned payloads and counts calls. A non-nil gate blocks
// every fetch until it is closed.
type fakeFetcher struct {
	mu          sync.Mutex
	feeds       map[feeds.FeedGroup][]byte
	alerts      []byte
	err         error
	panicGroup  feeds.FeedGroup
	gate        chan struct{}
	started     chan struct{}
	feedCalls   atomic.Int32
	alertCalls  atomic.Int32
	lastCtxErrs []error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{feeds: make(map[feeds.FeedGroup][]byte)}
}

func (f *fakeFetcher) setFeed(group feeds.FeedGroup, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[group] = data
}

func (f *fakeFetcher) setAlerts(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = data
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) wait(ctx context.Context) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.lastCtxErrs = append(f.lastCtxErrs, ctx.Err())
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchFeed(ctx context.Context, group feeds.FeedGroup) ([]byte, error) {
	f.feedCalls.Add(1)
	f.wait(ctx)
	if group == f.panicGroup {
		panic("fake fetcher panic for " + string(group))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.feeds[group], nil
}

func (f *fakeFetcher) FetchAlerts(ctx context.Context) ([]byte, error) {
	f.alertCalls.Add(1)
	f.wait(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.alerts, nil
}

func (f *fakeFetcher) ctxErrs() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.lastCtxErrs...)
}

// setupFeedServer serves payload for every path and counts requests.
// Setting status to a non-2xx value makes the server fail.
type feedServer struct {
	*httptest.Server
	hits    atomic.Int32
	status  atomic.Int32
	mu      sync.Mutex
	payload []byte
	paths   []string
}

func setupFeedServer(t *testing.T, payload []byte) *feedServer {
	t.Helper()

	fs := &feedServer{payload: payload}
	fs.status.Store(http.StatusOK)
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		fs.mu.Lock()
		fs.paths = append(fs.paths, r.URL.EscapedPath())
		data := fs.payload
		fs.mu.Unlock()

		if status := int(fs.status.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) setPayload(data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.payload = data
}

func (fs *feedServer) requestedPaths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.paths...)
}
