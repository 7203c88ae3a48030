package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/accident-dashboard/internal/config"
	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rec := domain.Interaction{
		SessionID: "sess-1",
		Event:     domain.DrillYear(2020),
		Geography: domain.Geography{State: "California", City: "Los Angeles"},
		Drill:     domain.DrillPath{Year: 2020},
		AppliedAt: now,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("sess-1"), msg.Key)
	assert.JSONEq(t, `{
		"session_id": "sess-1",
		"event": {"kind": "drill_year", "number": 2020},
		"geography": {"state": "California", "city": "Los Angeles"},
		"drill": {"year": 2020},
		"applied_at": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("drill_year"), msg.Headers[0].Value)
	assert.Equal(t, "applied_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestNewPublisher_WriterSettings(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"broker1:9092", "broker2:9092"},
		KafkaTopic:         "clicks",
		BatchSize:          25,
		BatchFlushInterval: 250 * time.Millisecond,
	}

	p := NewPublisher(cfg, observability.NewMetricsForTesting(), discardLogger())

	assert.Equal(t, "clicks", p.writer.Topic)
	assert.Equal(t, 25, p.writer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, p.writer.BatchTimeout)
	assert.True(t, p.writer.Async)
	assert.IsType(t, &kafkago.Hash{}, p.writer.Balancer)
	assert.Equal(t, "broker1:9092,broker2:9092", p.writer.Addr.String())
}

func TestPublish_Empty(t *testing.T) {
	p := NewPublisher(&config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaTopic: "t"},
		observability.NewMetricsForTesting(), discardLogger())

	require.NoError(t, p.Publish(context.Background()))
}

func TestCompletedCountsOutcomes(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	p := &Publisher{metrics: metrics, logger: discardLogger()}

	p.completed(make([]kafkago.Message, 3), nil)
	p.completed(make([]kafkago.Message, 2), errors.New("broker down"))

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.InteractionsPublished.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.InteractionsPublished.WithLabelValues("error")))
}
