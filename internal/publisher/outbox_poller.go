package publisher

import (
	"context"
	"log/slog"
	"time"

	r "github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic     = "order-events"
	defaultBatchSize = 100
)

// EventStore is the outbox side of the order store.
type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays committed OrderCreated events to Kafka. Delivery is at
// least once: an event is marked processed only after the broker accepted it.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	repo      EventStore
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	log       *slog.Logger
}

func NewOutboxPoller(repo EventStore, tick time.Duration, log *slog.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewOutboxPollerWithWriter(repo, w, tick, log)
}

func NewOutboxPollerWithWriter(repo EventStore, w MessageWriter, tick time.Duration, log *slog.Logger) *OutboxPoller {
	if tick <= 0 {
		tick = time.Second
	}
	log = log.With("component", "outbox")
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: tick,
		batchSize: defaultBatchSize,
		repo:      repo,
		writer:    w,
		breaker:   circuitbreaker.New("kafka-outbox", circuitbreaker.DefaultConfig(), log),
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes one batch and returns how many events
// were marked processed.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		errPublish := p.breaker.Do(func() error {
			return p.publishToKafka(ctx, event)
		})
		if circuitbreaker.IsOpen(errPublish) {
			p.log.WarnContext(ctx, "kafka circuit open, postponing outbox batch", "pending", len(events)-published)
			return published
		}
		if errPublish != nil {
			p.log.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "error", errPublish)
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			p.log.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", errMark)
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps an order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}
