package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 256, cfg.BackendCacheSize)
	assert.Equal(t, time.Minute, cfg.BackendCacheTTL)
	assert.Equal(t, 20.0, cfg.BackendRateLimit)
	assert.Equal(t, 2, cfg.BackendRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BackendBackoff)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "dashboard-interactions", cfg.KafkaTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("BACKEND_URL", "http://analytics:5000")
	t.Setenv("BACKEND_TIMEOUT", "2s")
	t.Setenv("BACKEND_CACHE_SIZE", "0")
	t.Setenv("BACKEND_CACHE_TTL", "10s")
	t.Setenv("BACKEND_RATE_LIMIT", "2.5")
	t.Setenv("BACKEND_RETRIES", "0")
	t.Setenv("BACKEND_RETRY_BACKOFF", "250ms")
	t.Setenv("BREAKER_FAILURES", "3")
	t.Setenv("BREAKER_TIMEOUT", "1m")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "clicks")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, "http://analytics:5000", cfg.BackendURL)
	assert.Equal(t, 2*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 0, cfg.BackendCacheSize)
	assert.Equal(t, 10*time.Second, cfg.BackendCacheTTL)
	assert.Equal(t, 2.5, cfg.BackendRateLimit)
	assert.Equal(t, 0, cfg.BackendRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BackendBackoff)
	assert.Equal(t, 3, cfg.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.BreakerTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "clicks", cfg.KafkaTopic)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"BACKEND_TIMEOUT", "BACKEND_CACHE_TTL", "BACKEND_RETRY_BACKOFF", "BREAKER_TIMEOUT", "SESSION_IDLE_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "-1s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidCacheSize(t *testing.T) {
	t.Setenv("BACKEND_CACHE_SIZE", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_CACHE_SIZE")
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Setenv("BACKEND_RETRIES", "-2")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_RETRIES")
}

func TestLoad_InvalidBreakerFailures(t *testing.T) {
	t.Setenv("BREAKER_FAILURES", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BREAKER_FAILURES")
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	t.Setenv("BACKEND_RATE_LIMIT", "fast")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_RATE_LIMIT")
}

func TestLoad_InvalidBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "localhost")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaEnabledWithDefaultBroker(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
}
