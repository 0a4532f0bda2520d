package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaRecorder publishes audit events to a Kafka topic. Writes are async;
// delivery failures are logged and never surfaced to the caller.
type KafkaRecorder struct {
	writer *kafka.Writer
}

// NewKafkaRecorder creates a recorder publishing to topic on the given
// comma-separated broker list.
func NewKafkaRecorder(brokers, topic string) *KafkaRecorder {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Warn("audit publish failed", "detail", msg)
		}),
	}
	return &KafkaRecorder{writer: w}
}

// Record serializes the event as JSON keyed by user ID and hands it to the
// async writer.
func (r *KafkaRecorder) Record(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("audit event not serializable", "action", ev.Action, "error", err)
		return
	}
	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
	})
	if err != nil {
		slog.Warn("audit enqueue failed", "action", ev.Action, "error", err)
	}
}

// Close flushes pending messages and releases the writer.
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}
