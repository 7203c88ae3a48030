//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/accident-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/accident-dashboard/internal/config"
	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
	"github.com/couchcryptid/accident-dashboard/internal/session"
)

const testTopic = "test-interactions"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("accident-dashboard-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type publishedMessage struct {
	Record  domain.Interaction
	Key     string
	Headers map[string]string
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from interaction topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.Interaction
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal interaction")

	return publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaEnabled:       true,
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		BatchSize:          10,
		BatchFlushInterval: 100 * time.Millisecond,
	}
}

// TestPublisherRoundTrip publishes records and reads them back with headers.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	metrics := observability.NewMetricsForTesting()
	publisher := kafka.NewPublisher(testConfig(broker), metrics, discardLogger())

	at := time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC)
	require.NoError(t, publisher.Publish(ctx,
		domain.Interaction{SessionID: "sess-1", Event: domain.SetState("Texas"), Geography: domain.Geography{State: "Texas"}, AppliedAt: at},
		domain.Interaction{SessionID: "sess-1", Event: domain.DrillSeason(domain.SeasonWinter), Geography: domain.Geography{State: "Texas", City: "Austin"},
			Drill: domain.DrillPath{Season: domain.SeasonWinter}, AppliedAt: at},
	))
	// Close flushes the async writer.
	require.NoError(t, publisher.Close())

	consumer := newConsumer(t, broker)

	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "sess-1", first.Key)
	assert.Equal(t, "set_state", first.Headers["event_kind"])
	assert.Equal(t, at.Format(time.RFC3339), first.Headers["applied_at"])
	assert.Equal(t, "Texas", first.Record.Geography.State)

	second := readPublished(ctx, t, consumer)
	assert.Equal(t, "drill_season", second.Headers["event_kind"])
	assert.Equal(t, domain.DrillPath{Season: domain.SeasonWinter}, second.Record.Drill)
}

type staticSource struct{}

func (staticSource) States(context.Context) ([]string, error) { return []string{"Texas"}, nil }

func (staticSource) Cities(context.Context, string) ([]string, error) {
	return []string{"Austin"}, nil
}

func (staticSource) Analytics(context.Context, domain.FetchKey) (domain.Bundle, error) {
	return domain.Bundle{}, nil
}

// TestSessionInteractionsStream wires a registry to a real publisher and
// checks that every applied transition reaches the topic in order.
func TestSessionInteractionsStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	metrics := observability.NewMetricsForTesting()
	publisher := kafka.NewPublisher(testConfig(broker), metrics, discardLogger())
	registry := session.NewRegistry(staticSource{}, session.Options{Publisher: publisher}, discardLogger(), metrics)

	sess := registry.Create()
	_, err := sess.Dispatch(domain.SetState("Texas"))
	require.NoError(t, err)
	_, err = sess.Dispatch(domain.SetCity("Austin"))
	require.NoError(t, err)
	_, err = sess.Dispatch(domain.DrillYear(2021))
	require.NoError(t, err)

	// A rejected transition is not published.
	_, err = sess.Dispatch(domain.DrillDay(3))
	require.Error(t, err)

	registry.Close()
	require.NoError(t, publisher.Close())

	consumer := newConsumer(t, broker)
	want := []domain.EventKind{domain.EventSetState, domain.EventSetCity, domain.EventDrillYear}
	for _, kind := range want {
		msg := readPublished(ctx, t, consumer)
		assert.Equal(t, sess.ID(), msg.Key)
		assert.Equal(t, kind, msg.Record.Event.Kind)
	}
}
