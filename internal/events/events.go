// Package events publishes domain events to an AMQP exchange so other
// services can react to notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the message body published for each notification.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	FamilyID   uuid.UUID       `json:"family_id"`
	Recipients []uuid.UUID     `json:"recipients"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RoutingKey is the key an event is published under.
func (e Event) RoutingKey() string {
	return "notification." + e.Type
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
