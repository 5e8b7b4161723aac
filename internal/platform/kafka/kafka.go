// Package kafka wraps franz-go clients for the audit stream.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"rcaflow/internal/platform/config"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// Handler processes one message. Returning an error stops the consumer
// before offsets are committed, so the batch is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Producer publishes records to a default topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return &Producer{client: client, topic: cfg.AuditTopic}, nil
}

// Publish blocks until the record is acknowledged.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	res := p.client.ProduceSync(ctx, &kgo.Record{Topic: p.topic, Key: key, Value: value})
	return res.FirstErr()
}

func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}

// EnsureTopic creates the audit topic, treating "already exists" as success.
func EnsureTopic(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return fmt.Errorf("kafka admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.AuditTopic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.AuditTopic, err)
	}
	for _, r := range resps.Sorted() {
		switch {
		case r.Err == nil:
			logger.Info("kafka topic created", "topic", r.Topic, "partitions", cfg.Partitions)
		case errors.Is(r.Err, kerr.TopicAlreadyExists):
		default:
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Consumer reads a topic as part of a consumer group with manual commits.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, group string, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.AuditTopic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = h.Handle(ctx, &Message{
				Topic:     r.Topic,
				Key:       r.Key,
				Value:     r.Value,
				Partition: r.Partition,
				Offset:    r.Offset,
			})
		})
		if handleErr != nil {
			return handleErr
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.WarnContext(ctx, "kafka commit failed", "error", err)
		}
	}
}
