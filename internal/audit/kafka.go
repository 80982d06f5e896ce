package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ecopulse/ecopulse/internal/source"
)

// KafkaSink publishes envelope mirrors to a Kafka topic. Delivery failures
// are logged and dropped.
type KafkaSink struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaSink builds a producer for the audit topic. Available reports
// whether at least one broker answered a dial probe; callers should fall
// back to Noop when it is false.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, bool) {
	available := false
	for _, b := range brokers {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		conn, err := kafkago.DialContext(ctx, "tcp", b)
		cancel()
		if err != nil {
			logger.Warn("audit broker unreachable", "broker", b, "error", err)
			continue
		}
		conn.Close()
		available = true
		break
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireNone,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w, logger: logger}, available
}

// RecordFetch mirrors one fetch envelope.
func (s *KafkaSink) RecordFetch(ctx context.Context, result source.FetchResult) {
	s.publish(ctx, "raw_fetch", result.Source, result)
}

// RecordScrape mirrors one scrape envelope.
func (s *KafkaSink) RecordScrape(ctx context.Context, result source.ScrapeResult) {
	s.publish(ctx, "raw_scrape", result.URL, result)
}

func (s *KafkaSink) publish(ctx context.Context, kind, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("audit serialize failed", "kind", kind, "error", err)
		return
	}
	msg := kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("audit write failed", "kind", kind, "error", err)
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
