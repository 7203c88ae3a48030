package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/accident-dashboard/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/accident-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/accident-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/accident-dashboard/internal/config"
	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
	"github.com/couchcryptid/accident-dashboard/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Backend stack: HTTP client, circuit breaker, then the response cache so
	// cache hits never count against the breaker.
	var source domain.DataSource = backend.NewClient(cfg.BackendURL, backend.Options{
		Timeout:       cfg.BackendTimeout,
		RatePerSecond: cfg.BackendRateLimit,
		Retries:       cfg.BackendRetries,
		RetryBackoff:  cfg.BackendBackoff,
	}, metrics, logger)
	breaker := backend.NewBreakerSource(source, cfg.BreakerFailures, cfg.BreakerTimeout, metrics, logger)
	source = breaker
	if cfg.BackendCacheSize > 0 {
		source = backend.NewCachedSource(source, cfg.BackendCacheSize, cfg.BackendCacheTTL, clockwork.NewRealClock(), metrics)
		logger.Info("backend response cache enabled", "size", cfg.BackendCacheSize, "ttl", cfg.BackendCacheTTL)
	}

	// Interaction stream (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	opts := session.Options{IdleTimeout: cfg.SessionIdleTimeout, Probe: breaker}
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		opts.Publisher = publisher
		logger.Info("interaction stream enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("interaction stream disabled")
	}

	registry := session.NewRegistry(source, opts, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Reap idle sessions until shutdown.
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		registry.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-reaperDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
