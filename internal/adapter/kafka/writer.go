// Package kafka announces published bundles on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// EventBundlePublished is the event_type header of bundle announcements.
const EventBundlePublished = "bundle.published"

// BundleEvent is the message body announcing a bundle. Location is the s3://
// URL of the manifest when the bundle was uploaded, otherwise the local bundle
// directory.
type BundleEvent struct {
	RunID       string              `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Location    string              `json:"location"`
	Files       []domain.BundleFile `json:"files"`
	TableRows   map[string]int      `json:"table_rows"`
}

// Notifier produces bundle announcements to a Kafka topic.
type Notifier struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNotifier creates a Kafka producer for the bundle topic.
func NewNotifier(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, metrics: metrics, logger: logger}
}

// Announce publishes one message describing the bundle.
func (n *Notifier) Announce(ctx context.Context, manifest domain.BundleManifest, location string) error {
	msg, err := serializeToMessage(manifest, location)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("announce bundle %s: %w", manifest.RunID, err)
	}
	n.metrics.BundlesPublished.WithLabelValues("kafka").Inc()
	n.logger.Info("bundle announced", "topic", n.writer.Topic, "run_id", manifest.RunID, "location", location)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a bundle announcement keyed by run id.
func serializeToMessage(manifest domain.BundleManifest, location string) (kafkago.Message, error) {
	data, err := json.Marshal(BundleEvent{
		RunID:       manifest.RunID,
		GeneratedAt: manifest.GeneratedAt,
		Location:    location,
		Files:       manifest.Files,
		TableRows:   manifest.TableRows,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize bundle event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(manifest.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventBundlePublished)},
			{Key: "generated_at", Value: []byte(manifest.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
