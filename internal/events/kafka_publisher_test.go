package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prohmpiriya/test-platform/pkg/logger"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	flushed bool
	closed  bool
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	err := f.err
	f.mu.Unlock()
	promise(r, err)
}

func (f *fakeProducer) Flush(context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeProducer) Close() {
	f.closed = true
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &fakeProducer{}
	pub := newKafkaPublisher(&KafkaPublisherConfig{}, producer, nil)
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	pub.Publish(context.Background(), SecurityEvent{
		Type:     EventLoginFailed,
		Username: "alice",
		Reason:   "invalid credentials",
	})

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, TopicSecurityEvents, rec.Topic)
	assert.Equal(t, "alice", string(rec.Key))
	assert.Equal(t, "event_type", rec.Headers[0].Key)

	var got SecurityEvent
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, EventLoginFailed, got.Type)
	assert.True(t, fixed.Equal(got.OccurredAt))
}

func TestKafkaPublisher_KeyFallsBackToClientIP(t *testing.T) {
	producer := &fakeProducer{}
	pub := newKafkaPublisher(&KafkaPublisherConfig{Topic: "custom"}, producer, nil)

	pub.Publish(context.Background(), SecurityEvent{Type: EventTokenRejected, ClientIP: "10.0.0.7"})

	require.Len(t, producer.records, 1)
	assert.Equal(t, "custom", producer.records[0].Topic)
	assert.Equal(t, "10.0.0.7", string(producer.records[0].Key))
}

func TestKafkaPublisher_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	producer := &fakeProducer{err: errors.New("broker down")}
	pub := newKafkaPublisher(&KafkaPublisherConfig{}, producer, logger.New(zap.New(core)))

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), SecurityEvent{Type: EventLogout, Username: "alice"})
	})
	assert.Equal(t, 1, logs.FilterMessage("Failed to publish security event").Len())
}

func TestKafkaPublisher_Close(t *testing.T) {
	producer := &fakeProducer{}
	pub := newKafkaPublisher(&KafkaPublisherConfig{}, producer, nil)

	pub.Close()
	assert.True(t, producer.flushed)
	assert.True(t, producer.closed)
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(context.Background(), &KafkaPublisherConfig{}, nil)
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = NewNoopPublisher()
	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), SecurityEvent{Type: EventLogout})
		pub.Close()
	})
}
