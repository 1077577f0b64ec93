// Package ingest publishes spot events to kafka for the indexer.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/skate-spots/internal/app"
	"github.com/example/skate-spots/internal/models"
	"github.com/example/skate-spots/internal/observability"
)

const publishTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is an app.Listener that forwards every spot added to or
// deleted from a profile.
type KafkaProducer struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaProducer(brokers []string, topic string, logger *slog.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, logger)
}

func newProducer(w messageWriter, logger *slog.Logger) *KafkaProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaProducer{writer: w, logger: logger}
}

// Publish writes events keyed by spot id so every change to one spot lands
// on the same partition.
func (k *KafkaProducer) Publish(ctx context.Context, events ...models.SpotEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.IndexKey()), Value: b})
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, msgs...)
}

// Changed implements app.Listener. A failed publish is counted and logged;
// the command that caused it has already been applied.
func (k *KafkaProducer) Changed(ctx context.Context, c app.Change) {
	if err := k.Publish(context.WithoutCancel(ctx), c.Spots...); err != nil {
		observability.PublishErrorsTotal.Add(float64(len(c.Spots)))
		k.logger.Error("publish spot events failed",
			slog.String("profile", c.Profile),
			slog.Int("events", len(c.Spots)),
			slog.Any("err", err),
		)
	}
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
