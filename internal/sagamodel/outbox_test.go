package sagamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKeyIsDeterministic(t *testing.T) {
	e := OutboxEvent{AggregateID: "order-1", EventType: EventOrderCreated}
	assert.Equal(t, "order-1-OrderCreated", e.IdempotencyKey())
	assert.Equal(t, e.IdempotencyKey(), e.IdempotencyKey(), "must be stable across calls")
}

func TestTerminallyFailed(t *testing.T) {
	cases := []struct {
		name       string
		published  bool
		attempts   int
		maxRetries int
		want       bool
	}{
		{"fresh event", false, 0, 3, false},
		{"under budget", false, 2, 3, false},
		{"exhausted", false, 3, 3, true},
		{"over budget", false, 4, 3, true},
		{"published never terminal", true, 5, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := OutboxEvent{IsPublished: tc.published, PublishAttempts: tc.attempts, MaxRetries: tc.maxRetries}
			assert.Equal(t, tc.want, e.TerminallyFailed())
		})
	}
}
