package sagamodel

import (
	"encoding/json"
	"time"
)

// TargetService is one of the four closed participants an outbox event
// can be routed to.
type TargetService string

const (
	ServiceOrder     TargetService = "order"
	ServicePayment   TargetService = "payment"
	ServiceInventory TargetService = "inventory"
	ServiceShipping  TargetService = "shipping"
)

// EventType is the closed set of outbox event types.
type EventType string

const (
	EventOrderCreated     EventType = "OrderCreated"
	EventPaymentProcessed EventType = "PaymentProcessed"
	EventPaymentFailed    EventType = "PaymentFailed"
	EventInventoryUpdated EventType = "InventoryUpdated"
	EventInventoryFailed  EventType = "InventoryFailed"
	EventOrderShipped     EventType = "OrderShipped"
	EventOrderDelivered   EventType = "OrderDelivered"
	EventOrderCompensated EventType = "OrderCompensated"
)

// OutboxEvent is one row of a service's transactional outbox.
type OutboxEvent struct {
	ID              string          `json:"id"`
	AggregateID     string          `json:"aggregateId"`
	EventType       EventType       `json:"eventType"`
	Payload         json.RawMessage `json:"payload"`
	TargetService   TargetService   `json:"targetService"`
	TargetEndpoint  string          `json:"targetEndpoint"`
	OwnerService    TargetService   `json:"ownerService"`
	IsPublished     bool            `json:"isPublished"`
	PublishAttempts int             `json:"publishAttempts"`
	MaxRetries      int             `json:"maxRetries"`
	LastError       *string         `json:"lastError,omitempty"`
	PublishedAt     *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// TerminallyFailed reports whether the event has exhausted its retry
// budget and will never be picked up by the publisher again.
func (e *OutboxEvent) TerminallyFailed() bool {
	return !e.IsPublished && e.PublishAttempts >= e.MaxRetries
}

// IdempotencyKey is the deterministic outbound idempotency key computed
// for a given event: "{aggregateId}-{eventType}". It is replay-safe
// because each (aggregateId, eventType) pair occurs at most once per
// saga (§9).
func (e *OutboxEvent) IdempotencyKey() string {
	return string(e.AggregateID) + "-" + string(e.EventType)
}
