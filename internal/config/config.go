package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	SessionIdleTimeout time.Duration

	// Analytics backend.
	BackendURL       string
	BackendTimeout   time.Duration
	BackendCacheSize int
	BackendCacheTTL  time.Duration
	BackendRateLimit float64
	BackendRetries   int
	BackendBackoff   time.Duration

	// Circuit breaker around the backend.
	BreakerFailures int
	BreakerTimeout  time.Duration

	// Interaction stream.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("BACKEND_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}
	backoff, err := parsePositiveDuration("BACKEND_RETRY_BACKOFF", "100ms")
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := parsePositiveDuration("BREAKER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("BACKEND_CACHE_SIZE", 256, 0)
	if err != nil {
		return nil, err
	}
	retries, err := parseInt("BACKEND_RETRIES", 2, 0)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := parseInt("BREAKER_FAILURES", 5, 1)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("BACKEND_RATE_LIMIT", "20"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid BACKEND_RATE_LIMIT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	// Setting brokers explicitly opts into the interaction stream.
	kafkaEnabled := os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		SessionIdleTimeout: idleTimeout,

		BackendURL:       sharedcfg.EnvOrDefault("BACKEND_URL", "http://localhost:5000"),
		BackendTimeout:   backendTimeout,
		BackendCacheSize: cacheSize,
		BackendCacheTTL:  cacheTTL,
		BackendRateLimit: rateLimit,
		BackendRetries:   retries,
		BackendBackoff:   backoff,

		BreakerFailures: breakerFailures,
		BreakerTimeout:  breakerTimeout,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "dashboard-interactions"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid BACKEND_URL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
