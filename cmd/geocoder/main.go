package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/geocode-orchestrator/internal/adapter/bing"
	httpadapter "github.com/couchcryptid/geocode-orchestrator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geocode-orchestrator/internal/adapter/kafka"
	"github.com/couchcryptid/geocode-orchestrator/internal/config"
	"github.com/couchcryptid/geocode-orchestrator/internal/geocoder"
	"github.com/couchcryptid/geocode-orchestrator/internal/observability"
	"github.com/couchcryptid/geocode-orchestrator/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tables := bing.NewEntityTables()
	codec := bing.NewCodec(cfg.BingKey, cfg.Locale, tables)

	var transport queue.Transport
	if cfg.Transport == config.TransportCallback {
		transport = bing.NewCallbackTransport(cfg.TransportTimeout, logger)
	} else {
		transport = bing.NewHTTPTransport(cfg.TransportTimeout, logger)
	}

	// Result publishing is feature-flagged via KAFKA_BROKERS.
	var (
		sink      geocoder.ResultSink
		publisher *kafkaadapter.Publisher
	)
	if cfg.PublishEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		sink = publisher
		logger.Info("result publishing enabled", "topic", cfg.KafkaResultsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("result publishing disabled")
	}

	svc, err := geocoder.New(geocoder.Config{
		Endpoints: bing.Endpoints{
			Geocoding: cfg.GeocodingURL,
			Spatial:   cfg.SpatialURL,
		},
		Codec:         codec,
		Transport:     transport,
		MaxConcurrent: cfg.MaxConcurrent,
		CacheSize:     cfg.CacheSize,
		Sink:          sink,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		logger.Error("failed to create geocoder", "error", err)
		os.Exit(1)
	}
	logger.Info("geocoder ready",
		"transport", cfg.Transport,
		"locale", cfg.Locale,
		"max_concurrent", cfg.MaxConcurrent,
		"cache_size", cfg.CacheSize,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.RequestTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		svc.Close()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
