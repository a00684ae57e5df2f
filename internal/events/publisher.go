// Package events publishes security-relevant authentication events.
package events

import (
	"context"
	"time"
)

// EventType names a security event
type EventType string

const (
	EventRegistered     EventType = "user.registered"
	EventLoginSucceeded EventType = "auth.login.succeeded"
	EventLoginFailed    EventType = "auth.login.failed"
	EventLogout         EventType = "auth.logout"
	EventTokenRejected  EventType = "auth.token.rejected"
	EventUserDeleted    EventType = "user.deleted"
)

// SecurityEvent is one audit record. It never carries passwords or tokens.
type SecurityEvent struct {
	Type       EventType `json:"type"`
	Username   string    `json:"username,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers security events. Publish never blocks on the broker and
// never reports failure to the caller.
type Publisher interface {
	Publish(ctx context.Context, event SecurityEvent)
	Close()
}

// NoopPublisher drops every event
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher used when Kafka is disabled
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (NoopPublisher) Publish(context.Context, SecurityEvent) {}

func (NoopPublisher) Close() {}
