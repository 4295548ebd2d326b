package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Default provider endpoints.
const (
	DefaultGeocodingURL = "https://dev.virtualearth.net/REST/v1/Locations"
	DefaultSpatialURL   = "https://platform.bing.com/geo/spatial/v1/public/Geodata"
)

// Transport kinds accepted by GEOCODE_TRANSPORT.
const (
	TransportHTTP     = "http"
	TransportCallback = "callback"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Provider configuration.
	BingKey      string
	GeocodingURL string
	SpatialURL   string
	Locale       string

	// Request orchestration.
	RequestTimeout   time.Duration
	TransportTimeout time.Duration
	Transport        string
	MaxConcurrent    int
	CacheSize        int

	// Result publishing. Disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	transportTimeout, err := parseDuration("GEOCODE_HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := parsePositiveInt("GEOCODE_MAX_CONCURRENT", 6)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BingKey:      os.Getenv("BING_KEY"),
		GeocodingURL: sharedcfg.EnvOrDefault("BING_GEOCODING_URL", DefaultGeocodingURL),
		SpatialURL:   sharedcfg.EnvOrDefault("BING_SPATIAL_URL", DefaultSpatialURL),
		Locale:       sharedcfg.EnvOrDefault("GEOCODE_LOCALE", "en-US"),

		RequestTimeout:   requestTimeout,
		TransportTimeout: transportTimeout,
		Transport:        strings.ToLower(sharedcfg.EnvOrDefault("GEOCODE_TRANSPORT", TransportHTTP)),
		MaxConcurrent:    maxConcurrent,
		CacheSize:        parseCacheSize(),

		KafkaBrokers:      brokers,
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "geocode-results"),
	}

	if cfg.BingKey == "" {
		return nil, errors.New("BING_KEY is required")
	}
	if cfg.Transport != TransportHTTP && cfg.Transport != TransportCallback {
		return nil, errors.New("invalid GEOCODE_TRANSPORT")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaResultsTopic == "" {
		return nil, errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether resolved lookups are written to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
