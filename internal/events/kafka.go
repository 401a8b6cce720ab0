package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var ErrQueueFull = errors.New("events: publish queue full")

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in memory and writes them from Run, so a slow
// broker never holds up the checkout flow.
type KafkaPublisher struct {
	writer MessageWriter
	queue  chan kafka.Message
	log    zerolog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w MessageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		queue:  make(chan kafka.Message, queueSize),
		log:    log.With().Str("component", "events").Logger(),
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, ev CheckoutEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)), // order id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (p *KafkaPublisher) Run(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			p.write(context.Background(), msg)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *KafkaPublisher) flush() {
	for {
		select {
		case msg := <-p.queue:
			p.write(context.Background(), msg)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("key", string(msg.Key)).Msg("failed to publish event")
		return
	}
	p.log.Debug().Str("key", string(msg.Key)).Msg("event published")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
