package geocoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/adapter/bing"
	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	"github.com/couchcryptid/geocode-orchestrator/internal/observability"
	"github.com/couchcryptid/geocode-orchestrator/internal/queue"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	seattleJSON = `{"resourceSets":[{"resources":[
		{"name":"Seattle, WA","entityType":"PopulatedPlace","point":{"coordinates":[47.6062,-122.3321]},
		 "address":{"locality":"Seattle","adminDistrict":"WA","countryRegionIso2":"US","formattedAddress":"Seattle, WA"}}]}]}`
	emptyJSON    = `{"resourceSets":[{"resources":[]}]}`
	boundaryJSON = `{"d":{"results":[{"Primitives":[{"Shape":"0,small"},{"Shape":"0,muchlarger,ring2"}]}]}}`
)

// --- fakes ---

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Publish(ctx context.Context, r Resolution) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// provider is a fake Bing deployment counting requests per path kind.
type provider struct {
	srv      *httptest.Server
	hits     atomic.Int32
	handler  atomic.Pointer[http.HandlerFunc]
	metrics  *observability.Metrics
	service  *Service
	requests chan *http.Request
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func newProvider(t *testing.T, h http.HandlerFunc, sink ResultSink) *provider {
	t.Helper()
	p := &provider{
		metrics:  observability.NewMetricsForTesting(),
		requests: make(chan *http.Request, 64),
	}
	p.setHandler(h)
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		select {
		case p.requests <- r:
		default:
		}
		(*p.handler.Load())(w, r)
	}))

	svc, err := New(Config{
		Endpoints: bing.Endpoints{
			Geocoding: p.srv.URL + "/REST/v1/Locations",
			Spatial:   p.srv.URL + "/spatial/Geodata",
		},
		Codec:     bing.NewCodec("test-key", "en-US", bing.NewEntityTables()),
		Transport: bing.NewHTTPTransport(5*time.Second, discardLogger()),
		CacheSize: 16,
		Clock:     clockwork.NewRealClock(),
		Sink:      sink,
		Logger:    discardLogger(),
		Metrics:   p.metrics,
	})
	require.NoError(t, err)
	p.service = svc

	t.Cleanup(func() {
		svc.Close()
		p.srv.Close()
	})
	return p
}

func (p *provider) setHandler(h http.HandlerFunc) {
	p.handler.Store(&h)
}

// gated blocks every request until gate is closed or the request is aborted.
func gated(gate <-chan struct{}, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-gate:
			respond(body)(w, r)
		case <-r.Context().Done():
		}
	}
}

// --- tests ---

func TestService_Geocode(t *testing.T) {
	p := newProvider(t, respond(seattleJSON), nil)

	got, err := p.service.Geocode(context.Background(), "Seattle", "city")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Latitude: 47.6062, Longitude: -122.3321}, got)

	req := <-p.requests
	assert.Equal(t, "/REST/v1/Locations", req.URL.Path)
	assert.Equal(t, "Seattle", req.URL.Query().Get("q"))
	assert.Equal(t, bing.EntityPopulatedPlace, req.URL.Query().Get("includeEntityTypes"))
	assert.Equal(t, "test-key", req.URL.Query().Get("key"))
}

func TestService_GeocodeServedFromCache(t *testing.T) {
	p := newProvider(t, respond(seattleJSON), nil)
	ctx := context.Background()

	first, err := p.service.Geocode(ctx, "Seattle", domain.CategoryCity)
	require.NoError(t, err)
	second, err := p.service.Geocode(ctx, "SEATTLE", "City")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.hits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.GeocodeCache.WithLabelValues(queue.NameGeocode, "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.GeocodeCache.WithLabelValues(queue.NameGeocode, "miss")), 0)
	assert.Equal(t, 1, p.service.cache.len())
}

func TestService_ConcurrentIdenticalLookupsAreNotCoalesced(t *testing.T) {
	gate := make(chan struct{})
	p := newProvider(t, gated(gate, seattleJSON), nil)

	var wg sync.WaitGroup
	results := make([]domain.Coordinate, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.service.Geocode(context.Background(), "Seattle", domain.CategoryCity)
		}()
	}

	assert.Eventually(t, func() bool { return p.hits.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	for i := range 2 {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.Coordinate{Latitude: 47.6062, Longitude: -122.3321}, results[i])
	}

	_, err := p.service.Geocode(context.Background(), "Seattle", domain.CategoryCity)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.hits.Load(), "later lookup must be served from cache")
}

func TestService_EmptyResultIsNotCached(t *testing.T) {
	p := newProvider(t, respond(emptyJSON), nil)
	ctx := context.Background()

	_, err := p.service.Geocode(ctx, "Atlantis", domain.CategoryCity)
	require.ErrorIs(t, err, domain.ErrEmptyResult)

	p.setHandler(respond(seattleJSON))
	_, err = p.service.Geocode(ctx, "Atlantis", domain.CategoryCity)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.hits.Load())
}

func TestService_TransportFailure(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}, nil)

	_, err := p.service.Geocode(context.Background(), "Seattle", domain.CategoryCity)
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Zero(t, p.service.cache.len())
}

func TestService_UnsupportedQueryNeverHitsProvider(t *testing.T) {
	p := newProvider(t, respond(seattleJSON), nil)
	ctx := context.Background()

	_, err := p.service.Geocode(ctx, "<script>alert(1)</script>", domain.CategoryCity)
	require.ErrorIs(t, err, domain.ErrUnsupportedQuery)

	_, err = p.service.GeocodeBoundary(ctx, 47.6, -122.3, domain.CategoryContinent, 2, 3)
	require.ErrorIs(t, err, domain.ErrUnsupportedQuery)

	assert.Zero(t, p.hits.Load())
}

func TestService_GeocodePointNeverCached(t *testing.T) {
	p := newProvider(t, respond(seattleJSON), nil)
	ctx := context.Background()

	for range 2 {
		r, err := p.service.GeocodePoint(ctx, 47.6062, -122.3321, []string{"PopulatedPlace"})
		require.NoError(t, err)
		assert.Equal(t, "Seattle", r.Locality)
		assert.Equal(t, "US", r.CountryRegionISO2)
	}
	assert.Equal(t, int32(2), p.hits.Load())

	req := <-p.requests
	assert.Equal(t, "/REST/v1/Locations/47.6062,-122.3321", req.URL.Path)
	assert.Equal(t, "PopulatedPlace", req.URL.Query().Get("includeEntityTypes"))
}

func TestService_GeocodeBoundary(t *testing.T) {
	p := newProvider(t, respond(boundaryJSON), nil)

	got, err := p.service.GeocodeBoundary(context.Background(), 47.6, -122.3, domain.CategoryStateOrProvince, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, domain.Coordinate{Latitude: 47.6, Longitude: -122.3}, got.Coordinate)
	assert.Equal(t, []domain.BoundaryPolygon{{Native: "muchlarger"}, {Native: "ring2"}, {Native: "small"}}, got.Locations)

	req := <-p.requests
	assert.Equal(t, "/spatial/Geodata", req.URL.Path)
	assert.True(t, strings.HasPrefix(req.URL.Query().Get("SpatialFilter"), "GetBoundary(47.6, -122.3, 2, 'AdminDivision1'"))
}

func TestService_CachedBoundaryIsNotShared(t *testing.T) {
	p := newProvider(t, respond(boundaryJSON), nil)
	ctx := context.Background()

	first, err := p.service.GeocodeBoundary(ctx, 47.6, -122.3, domain.CategoryStateOrProvince, 2, 3)
	require.NoError(t, err)
	first.Locations[0].Native = "edited"

	second, err := p.service.GeocodeBoundary(ctx, 47.6, -122.3, domain.CategoryStateOrProvince, 2, 3)
	require.NoError(t, err)
	second.Locations[1].Native = "edited"

	third, err := p.service.GeocodeBoundary(ctx, 47.6, -122.3, domain.CategoryStateOrProvince, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.hits.Load())
	assert.Equal(t, []domain.BoundaryPolygon{{Native: "muchlarger"}, {Native: "ring2"}, {Native: "small"}}, third.Locations)
}

func TestService_DeadlineCancelsLookup(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	p := newProvider(t, gated(gate, seattleJSON), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.service.Geocode(ctx, "Seattle", domain.CategoryCity)
	require.ErrorIs(t, err, domain.ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool {
		return p.service.Stats()[queue.NameGeocode] == queue.Stats{}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_ResetCancelsInFlight(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	p := newProvider(t, gated(gate, seattleJSON), nil)

	errc := make(chan error, 1)
	go func() {
		_, err := p.service.Geocode(context.Background(), "Seattle", domain.CategoryCity)
		errc <- err
	}()
	assert.Eventually(t, func() bool { return p.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	p.service.Reset()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, domain.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup was not cancelled by reset")
	}
	assert.Empty(t, p.service.Stats())
}

func TestService_PublishesResolutions(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	sink := &mockSink{}
	sink.On("Publish", mock.Anything, mock.MatchedBy(func(r Resolution) bool {
		return r.Queue == queue.NameGeocode &&
			r.Query == "Seattle" &&
			r.Category == domain.CategoryCity &&
			r.Latitude == 47.6062 &&
			len(r.KeyHash) == 16 &&
			r.ResolvedAt.Equal(fixed)
	})).Return(nil).Once()

	p := newProvider(t, respond(seattleJSON), sink)
	ctx := context.Background()

	_, err := p.service.Geocode(ctx, "Seattle", domain.CategoryCity)
	require.NoError(t, err)
	// Cache hits are not republished.
	_, err = p.service.Geocode(ctx, "Seattle", domain.CategoryCity)
	require.NoError(t, err)

	p.service.Close()
	sink.AssertExpectations(t)
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.ResultsPublished), 0)
}

func TestService_PublishFailureDoesNotFailLookup(t *testing.T) {
	sink := &mockSink{}
	sink.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	p := newProvider(t, respond(boundaryJSON), sink)

	got, err := p.service.GeocodeBoundary(context.Background(), 47.6, -122.3, domain.CategoryCity, 1, 1)
	require.NoError(t, err)
	assert.Len(t, got.Locations, 2)

	p.service.Close()
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.PublishErrors), 0)
}

func TestService_CheckReadiness(t *testing.T) {
	p := newProvider(t, respond(seattleJSON), nil)

	require.NoError(t, p.service.CheckReadiness(context.Background()))
	p.service.Close()
	assert.ErrorIs(t, p.service.CheckReadiness(context.Background()), ErrShuttingDown)
}

func TestNew_RequiresCodecAndTransport(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestKeyHash(t *testing.T) {
	a := keyHash("g:x; s:y;seattle/city")
	assert.Len(t, a, 16)
	assert.Equal(t, a, keyHash("g:x; s:y;seattle/city"))
	assert.NotEqual(t, a, keyHash("g:x; s:y;tacoma/city"))
}
