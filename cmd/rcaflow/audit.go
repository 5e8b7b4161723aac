package main

import (
	"context"
	"log/slog"

	httpapi "rcaflow/internal/http"
	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/kafka"
	platformaudit "rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/audit/publisher"
	"rcaflow/pkg/platform/audit/store/memory"
	auditpg "rcaflow/pkg/platform/audit/store/postgres"
	"rcaflow/pkg/platform/audit/stream"
)

const auditBuffer = 1024

// newAuditPublisher stores audit events next to the documents when Postgres
// is the backend and streams them to Kafka when brokers are configured.
func newAuditPublisher(ctx context.Context, cfg config.Config, in *infra, logger *slog.Logger) (*publisher.Publisher, error) {
	var store platformaudit.Store = memory.NewInMemoryStore()
	if in.db != nil {
		store = auditpg.New(in.db)
	}
	opts := []publisher.Option{
		publisher.WithLogger(logger),
		publisher.WithAsyncBuffer(auditBuffer),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka, logger); err != nil {
			return nil, err
		}
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, producer.Close)
		in.checks = append(in.checks, httpapi.Check{Name: "kafka", Probe: producer.Ping})
		opts = append(opts, publisher.WithSink(stream.NewKafkaSink(producer)))
		logger.Info("streaming audit events", "topic", cfg.Kafka.AuditTopic)
	}
	return publisher.NewPublisher(store, opts...), nil
}
