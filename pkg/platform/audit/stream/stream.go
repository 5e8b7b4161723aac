// Package stream moves audit events through Kafka: a publisher sink on the
// producing side and a projector that writes consumed events to a store.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"rcaflow/internal/platform/kafka"
	audit "rcaflow/pkg/platform/audit"
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaSink keys records by company so one company's events stay ordered
// within a partition.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(p Producer) *KafkaSink {
	return &KafkaSink{producer: p}
}

func (s *KafkaSink) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Publish(ctx, []byte(event.CompanyID.String()), value)
}

// Projector implements kafka.Handler.
type Projector struct {
	store  audit.Store
	logger *slog.Logger
}

func NewProjector(store audit.Store, logger *slog.Logger) *Projector {
	return &Projector{store: store, logger: logger}
}

// Handle skips undecodable records and fails on store errors so the batch is
// retried.
func (p *Projector) Handle(ctx context.Context, msg *kafka.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.WarnContext(ctx, "skipping malformed audit record",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("project audit event %s: %w", event.ID, err)
	}
	return nil
}
