package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/pkg/logger"
)

const (
	// TopicSecurityEvents is the default Kafka topic for security events
	TopicSecurityEvents = "auth.security-events"
)

// recordProducer is the part of *kgo.Client the publisher needs
type recordProducer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaPublisherConfig holds configuration for KafkaPublisher
type KafkaPublisherConfig struct {
	Brokers      []string
	ClientID     string
	Topic        string
	FlushTimeout time.Duration
}

// KafkaPublisher publishes security events to Kafka asynchronously
type KafkaPublisher struct {
	config   *KafkaPublisherConfig
	producer recordProducer
	log      *logger.Logger
	now      func() time.Time
}

// NewKafkaPublisher creates a franz-go backed publisher and pings the brokers
func NewKafkaPublisher(ctx context.Context, cfg *KafkaPublisherConfig, log *logger.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "test-platform"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return newKafkaPublisher(cfg, client, log), nil
}

func newKafkaPublisher(cfg *KafkaPublisherConfig, producer recordProducer, log *logger.Logger) *KafkaPublisher {
	if cfg.Topic == "" {
		cfg.Topic = TopicSecurityEvents
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{
		config:   cfg,
		producer: producer,
		log:      log,
		now:      time.Now,
	}
}

// Publish enqueues the event; delivery errors are logged by the callback
func (p *KafkaPublisher) Publish(ctx context.Context, event SecurityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal security event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	key := event.Username
	if key == "" {
		key = event.ClientIP
	}

	record := &kgo.Record{
		Topic: p.config.Topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	// Delivery outlives the request
	p.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("Failed to publish security event",
				zap.String("type", string(event.Type)),
				zap.String("topic", r.Topic),
				zap.Error(err),
			)
		}
	})
}

// Close flushes buffered records and closes the client
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.FlushTimeout)
	defer cancel()

	if err := p.producer.Flush(ctx); err != nil {
		p.log.Warn("Failed to flush security events", zap.Error(err))
	}
	p.producer.Close()
}
