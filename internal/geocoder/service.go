// Package geocoder is the orchestrator behind the three geocode operations.
// It normalizes inputs into query specs, serves repeats from a result cache,
// and routes everything else through the per-kind request queues.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/adapter/bing"
	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	"github.com/couchcryptid/geocode-orchestrator/internal/observability"
	"github.com/couchcryptid/geocode-orchestrator/internal/queue"
	"github.com/jonboulle/clockwork"
)

// DefaultCacheSize bounds the result cache when Config.CacheSize is unset.
const DefaultCacheSize = 1000

// ErrShuttingDown is reported by CheckReadiness after Close.
var ErrShuttingDown = errors.New("geocoder is shutting down")

// ResultSink receives every freshly resolved lookup.
type ResultSink interface {
	Publish(ctx context.Context, r Resolution) error
}

// Resolution describes one successful lookup for downstream consumers.
type Resolution struct {
	Queue      string          `json:"queue"`
	KeyHash    string          `json:"key_hash,omitempty"`
	Query      string          `json:"query"`
	Category   domain.Category `json:"category"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
	Rings      int             `json:"rings,omitempty"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

// Config wires a Service.
type Config struct {
	Endpoints     bing.Endpoints
	Codec         queue.Codec
	Transport     queue.Transport
	MaxConcurrent int
	CacheSize     int
	Clock         clockwork.Clock
	Sink          ResultSink
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Service implements domain.Geocoder.
type Service struct {
	endpoints bing.Endpoints
	registry  *queue.Registry
	cache     *resultCache
	sink      ResultSink
	logger    *slog.Logger
	metrics   *observability.Metrics

	closed     atomic.Bool
	publishers sync.WaitGroup
}

var _ domain.Geocoder = (*Service)(nil)

// New creates a Service. Codec and Transport are required.
func New(cfg Config) (*Service, error) {
	if cfg.Codec == nil || cfg.Transport == nil {
		return nil, errors.New("geocoder: codec and transport are required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}

	cache, err := newResultCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		endpoints: cfg.Endpoints,
		cache:     cache,
		sink:      cfg.Sink,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	s.registry = queue.NewRegistry(func(name string) *queue.Queue {
		return queue.New(name, queue.Options{
			Codec:         cfg.Codec,
			Transport:     cfg.Transport,
			MaxConcurrent: cfg.MaxConcurrent,
			Clock:         cfg.Clock,
			Logger:        cfg.Logger,
			Metrics:       cfg.Metrics,
		})
	})
	return s, nil
}

// Geocode resolves free text of the given category to a coordinate.
func (s *Service) Geocode(ctx context.Context, query string, category domain.Category) (domain.Coordinate, error) {
	spec := bing.NewAddressQuery(s.endpoints, query, category)
	loc, err := s.resolve(ctx, queue.NameGeocode, spec)
	if err != nil {
		return domain.Coordinate{}, err
	}
	return loc.Point(), nil
}

// GeocodeBoundary resolves the boundary rings of the area of the given
// category that contains the position.
func (s *Service) GeocodeBoundary(ctx context.Context, lat, lon float64, category domain.Category, levelOfDetail, maxGeoData int) (domain.BoundaryCoordinate, error) {
	spec := bing.NewBoundaryQuery(s.endpoints, lat, lon, category, levelOfDetail, maxGeoData)
	loc, err := s.resolve(ctx, queue.NameBoundary, spec)
	if err != nil {
		return domain.BoundaryCoordinate{}, err
	}
	b, ok := loc.(domain.BoundaryCoordinate)
	if !ok {
		return domain.BoundaryCoordinate{}, fmt.Errorf("%w: unexpected %T", domain.ErrEmptyResult, loc)
	}
	return b, nil
}

// GeocodePoint reverse-geocodes a position. Point lookups are never cached.
func (s *Service) GeocodePoint(ctx context.Context, lat, lon float64, entities []string) (domain.Resource, error) {
	spec := bing.NewPointQuery(s.endpoints, lat, lon, entities)
	loc, err := s.resolve(ctx, queue.NamePoint, spec)
	if err != nil {
		return domain.Resource{}, err
	}
	r, ok := loc.(domain.Resource)
	if !ok {
		return domain.Resource{Coordinate: loc.Point()}, nil
	}
	return r, nil
}

// Reset cancels every pending and in-flight lookup. Cached results survive.
func (s *Service) Reset() {
	s.registry.ResetAll()
	s.logger.Info("geocode queues reset")
}

// Stats reports pending and active counts per queue.
func (s *Service) Stats() map[string]queue.Stats {
	return s.registry.Stats()
}

// CheckReadiness implements the HTTP readiness probe.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.closed.Load() {
		return ErrShuttingDown
	}
	return nil
}

// Close cancels outstanding lookups and waits for in-flight transport calls
// and result publishing to finish.
func (s *Service) Close() {
	s.closed.Store(true)
	s.registry.Close()
	s.publishers.Wait()
}

func (s *Service) resolve(ctx context.Context, queueName string, spec domain.QuerySpec) (domain.Location, error) {
	key, cacheable := spec.CacheKey()
	if cacheable {
		if loc, ok := s.cache.get(key); ok {
			s.metrics.GeocodeCache.WithLabelValues(queueName, "hit").Inc()
			return loc, nil
		}
		s.metrics.GeocodeCache.WithLabelValues(queueName, "miss").Inc()
	}

	entry := queue.NewEntry(spec)
	s.registry.Enqueue(queueName, entry)

	loc, err := entry.Future().Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		entry.Cancel()
		loc, err = entry.Future().Result()
		if errors.Is(err, domain.ErrCancelled) {
			err = fmt.Errorf("%w: %w", domain.ErrCancelled, ctxErr)
		}
	}

	logger := s.logger.With("queue", queueName)
	if cacheable {
		logger = logger.With("key_hash", keyHash(key))
	}
	if err != nil {
		logger.Debug("geocode lookup failed", "outcome", domain.ErrorKind(err), "error", err)
		return nil, err
	}

	res := domain.Success(loc)
	if cacheable {
		s.cache.put(key, res)
	}
	logger.Debug("geocode lookup resolved")
	s.publish(ctx, queueName, spec, key, loc)
	return loc, nil
}

func (s *Service) publish(ctx context.Context, queueName string, spec domain.QuerySpec, key string, loc domain.Location) {
	if s.sink == nil {
		return
	}
	r := Resolution{
		Queue:      queueName,
		Query:      spec.Text(),
		Category:   spec.Category(),
		Latitude:   loc.Point().Latitude,
		Longitude:  loc.Point().Longitude,
		ResolvedAt: domain.Now(),
	}
	if key != "" {
		r.KeyHash = keyHash(key)
	}
	if b, ok := loc.(domain.BoundaryCoordinate); ok {
		r.Rings = len(b.Locations)
	}

	pubCtx := context.WithoutCancel(ctx)
	s.publishers.Add(1)
	go func() {
		defer s.publishers.Done()
		if err := s.sink.Publish(pubCtx, r); err != nil {
			s.metrics.PublishErrors.Inc()
			s.logger.Warn("publish resolution failed", "queue", queueName, "error", err)
			return
		}
		s.metrics.ResultsPublished.Inc()
	}()
}
