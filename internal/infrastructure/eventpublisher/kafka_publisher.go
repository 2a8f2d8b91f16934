package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/iho/custodyledger/internal/domain"
)

// ErrPublisherUnavailable is returned while the broker circuit is open.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration

	// Breaker opens after this many consecutive failures and stays open
	// for BreakerTimeout before letting a probe through.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// KafkaPublisher writes outbox events to a Kafka topic keyed by aggregate
// ID, so every event of one custody or record lands on the same partition in
// order. Writes go through a circuit breaker.
type KafkaPublisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}

	return newKafkaPublisher(writer, cfg, logger)
}

func newKafkaPublisher(writer MessageWriter, cfg KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	logger = logger.With().Str("component", "kafka_publisher").Str("topic", cfg.Topic).Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("kafka circuit breaker changed state")
		},
	})

	return &KafkaPublisher{writer: writer, breaker: breaker, logger: logger}
}

// Publish writes event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("write event %s: %w", event.ID, err)
	}

	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(event *domain.OutboxEvent) (kafka.Message, error) {
	value, err := json.Marshal(struct {
		ID            string         `json:"id"`
		AggregateType string         `json:"aggregate_type"`
		AggregateID   string         `json:"aggregate_id"`
		EventType     string         `json:"event_type"`
		Payload       map[string]any `json:"payload"`
		CreatedAt     time.Time      `json:"created_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil
}
