// Package events publishes order lifecycle events from the outbox table.
package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/repository"
)

const (
	defaultTick  = time.Second
	defaultBatch = 100
)

// MessageWriter is the subset of *kafka.Writer the poller needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	outbox repository.OutboxRepository
	writer MessageWriter
	tick   time.Duration
	batch  int
	logger *zap.Logger
}

// NewKafkaWriter creates the lifecycle topic writer
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(outbox repository.OutboxRepository, writer MessageWriter, logger *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		outbox: outbox,
		writer: writer,
		tick:   defaultTick,
		batch:  defaultBatch,
		logger: logger,
	}
}

// Run publishes pending events every tick until ctx is done
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.PublishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PublishPending sends one batch and reports how many events were marked processed
func (p *OutboxPoller) PublishPending(ctx context.Context) int {
	events, err := p.outbox.GetUnprocessed(ctx, p.batch)
	if err != nil {
		p.logger.Error("Failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.writer.WriteMessages(ctx, toMessage(event)); err != nil {
			// stop here so events of one order keep their order
			p.logger.Error("Failed to publish outbox event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.EventType)),
				zap.Error(err),
			)
			return published
		}

		if err := p.outbox.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error("Failed to mark outbox event as processed",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("Failed to close kafka writer", zap.Error(err))
	}
}

func toMessage(event *domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		// order id as key keeps one order's events on one partition
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
}
