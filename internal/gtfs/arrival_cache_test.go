package gtfs

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"subwayboard.app/internal/feeds"
	"subwayboard.app/internal/metrics"
	"subwayboard.app/internal/models"
)

func exampleFeed(t *testing.T) []byte {
	t.Helper()
	return buildTripFeed(t,
		tripFixture{TripID: "t-1", RouteID: "1", Stops: []stopFixture{{StopID: "120N", Arrival: testNow.Add(121 * time.Second)}}},
		tripFixture{TripID: "t-2", RouteID: "2", Stops: []stopFixture{{StopID: "120N", Arrival: testNow.Add(365 * time.Second)}}},
		tripFixture{TripID: "t-3", RouteID: "3", Stops: []stopFixture{{StopID: "120S", Arrival: testNow.Add(200 * time.Second)}}},
	)
}

func newTestArrivalCache(t *testing.T) (*ArrivalCache, *fakeFetcher) {
	t.Helper()
	fetcher := newFakeFetcher()
	fetcher.setFeed(feeds.Group123456S, exampleFeed(t))
	return NewArrivalCache(fetcher, 30*time.Second, discardLogger()), fetcher
}

func TestArrivalCacheServesWithinTTL(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	ctx := context.Background()

	first := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	if len(first) != 2 {
		t.Fatalf("Expected 2 arrivals, got %+v", first)
	}

	second := cache.GetArrivals(ctx, "120", models.Northbound, testNow.Add(29*time.Second), false)
	if calls := fetcher.feedCalls.Load(); calls != 1 {
		t.Errorf("Expected 1 fetch within the TTL, got %d", calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results within the TTL:\n%+v\n%+v", first, second)
	}

	cache.GetArrivals(ctx, "120", models.Northbound, testNow.Add(30*time.Second), false)
	if calls := fetcher.feedCalls.Load(); calls != 2 {
		t.Errorf("Expected a refetch once the TTL elapsed, got %d fetches", calls)
	}
}

func TestArrivalCacheForceRefresh(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	ctx := context.Background()

	cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	cache.GetArrivals(ctx, "120", models.Northbound, testNow, true)

	if calls := fetcher.feedCalls.Load(); calls != 2 {
		t.Errorf("Expected forceRefresh to bypass the TTL, got %d fetches", calls)
	}
}

func TestArrivalCacheKeysAreIndependent(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	ctx := context.Background()

	north := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	south := cache.GetArrivals(ctx, "120", models.Southbound, testNow, false)

	if len(north) != 2 || len(south) != 1 || south[0].Line != "3" {
		t.Errorf("Unexpected arrivals: north=%+v south=%+v", north, south)
	}
	if calls := fetcher.feedCalls.Load(); calls != 2 {
		t.Errorf("Expected one fetch per stop key, got %d", calls)
	}
	if cache.Len() != 2 {
		t.Errorf("Expected 2 cached keys, got %d", cache.Len())
	}
}

func TestArrivalCacheReturnsCopies(t *testing.T) {
	cache, _ := newTestArrivalCache(t)
	ctx := context.Background()

	first := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	first[0].Line = "mutated"

	second := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	if second[0].Line != "1" {
		t.Error("Mutating a result changed the cached entry")
	}
}

func TestArrivalCacheFallsBackOnFailure(t *testing.T) {
	t.Run("TransportError", func(t *testing.T) {
		cache, fetcher := newTestArrivalCache(t)
		ctx := context.Background()

		first := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)

		before, _ := metrics.CounterValue(metrics.FeedFetches, string(feeds.Group123456S), metrics.OutcomeTransport)
		fetcher.setErr(&TransportError{FeedGroup: string(feeds.Group123456S), Err: errors.New("connection refused")})

		stale := cache.GetArrivals(ctx, "120", models.Northbound, testNow.Add(time.Minute), false)
		if !reflect.DeepEqual(first, stale) {
			t.Errorf("Expected the previous result on transport failure, got %+v", stale)
		}

		after, _ := metrics.CounterValue(metrics.FeedFetches, string(feeds.Group123456S), metrics.OutcomeTransport)
		if after-before != 1 {
			t.Errorf("Expected one transport failure to be counted, got %v", after-before)
		}
	})

	t.Run("DecodeError", func(t *testing.T) {
		cache, fetcher := newTestArrivalCache(t)
		ctx := context.Background()

		first := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
		fetcher.setFeed(feeds.Group123456S, []byte{0xff, 0xff, 0xff})

		stale := cache.GetArrivals(ctx, "120", models.Northbound, testNow.Add(time.Minute), true)
		if !reflect.DeepEqual(first, stale) {
			t.Errorf("Expected the previous result on decode failure, got %+v", stale)
		}
	})

	t.Run("NoPreviousResult", func(t *testing.T) {
		fetcher := newFakeFetcher()
		fetcher.setErr(&TransportError{FeedGroup: "ACE", StatusCode: 500})
		cache := NewArrivalCache(fetcher, 30*time.Second, discardLogger())

		arrivals := cache.GetArrivals(context.Background(), "A27", models.Southbound, testNow, false)
		if arrivals == nil || len(arrivals) != 0 {
			t.Errorf("Expected an empty non-nil slice, got %#v", arrivals)
		}
	})
}

func TestArrivalCacheCoalescesConcurrentMisses(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	fetcher.gate = make(chan struct{})

	const callers = 20
	results := make([][]models.ArrivalEvent, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.GetArrivals(context.Background(), "120", models.Northbound, testNow, false)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	if calls := fetcher.feedCalls.Load(); calls != 1 {
		t.Errorf("Expected concurrent callers to share 1 fetch, got %d", calls)
	}
	for i, r := range results {
		if len(r) != 2 {
			t.Errorf("Caller %d got %+v", i, r)
		}
	}
}

func TestArrivalCacheCoalescesForcedRefreshes(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	cache.GetArrivals(context.Background(), "120", models.Northbound, testNow, false)
	fetcher.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.GetArrivals(context.Background(), "120", models.Northbound, testNow, true)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	if calls := fetcher.feedCalls.Load(); calls != 2 {
		t.Errorf("Expected the forced callers to share 1 extra fetch, got %d total", calls)
	}
}

func TestArrivalCacheCallerCancellation(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	fetcher.gate = make(chan struct{})
	fetcher.started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan []models.ArrivalEvent, 1)
	go func() {
		abandoned <- cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	}()

	<-fetcher.started
	cancel()

	select {
	case got := <-abandoned:
		if len(got) != 0 {
			t.Errorf("Expected the abandoning caller to get an empty result, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancelled caller did not return")
	}

	waiting := make(chan []models.ArrivalEvent, 1)
	go func() {
		waiting <- cache.GetArrivals(context.Background(), "120", models.Northbound, testNow, false)
	}()
	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)

	got := <-waiting
	if len(got) != 2 {
		t.Errorf("Expected the remaining caller to get the fetched arrivals, got %+v", got)
	}
	if calls := fetcher.feedCalls.Load(); calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", calls)
	}
	for _, err := range fetcher.ctxErrs() {
		if err != nil {
			t.Errorf("Shared fetch saw a cancelled context: %v", err)
		}
	}
}

func TestArrivalCacheClear(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	ctx := context.Background()

	cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("Expected an empty cache after Clear, got %d entries", cache.Len())
	}

	fetcher.setErr(&TransportError{FeedGroup: string(feeds.Group123456S), Err: errors.New("network unreachable")})
	arrivals := cache.GetArrivals(ctx, "120", models.Northbound, testNow, false)
	if arrivals == nil || len(arrivals) != 0 {
		t.Errorf("Expected an empty slice after Clear with no network, got %#v", arrivals)
	}
}

func TestArrivalCacheClearDuringFetch(t *testing.T) {
	cache, fetcher := newTestArrivalCache(t)
	fetcher.gate = make(chan struct{})
	fetcher.started = make(chan struct{}, 1)

	done := make(chan []models.ArrivalEvent, 1)
	go func() {
		done <- cache.GetArrivals(context.Background(), "120", models.Northbound, testNow, false)
	}()

	<-fetcher.started
	cache.Clear()
	close(fetcher.gate)

	if got := <-done; len(got) != 2 {
		t.Errorf("Expected the in-flight caller to get its result, got %+v", got)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected a fetch started before Clear not to be cached, got %d entries", cache.Len())
	}
}

func TestArrivalCacheRecoversFromPanic(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.panicGroup = feeds.GroupL
	cache := NewArrivalCache(fetcher, 30*time.Second, discardLogger())

	arrivals := cache.GetArrivals(context.Background(), "L08", models.Northbound, testNow, false)
	if arrivals == nil || len(arrivals) != 0 {
		t.Errorf("Expected an empty slice after a panic, got %#v", arrivals)
	}
}
