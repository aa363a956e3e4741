// Package order implements the Order participant service: saga
// initiation (spec.md §4.4 "Order"), the terminal backward hop of the
// compensation chain, and the order read model.
package order

import "time"

// Status is the order's own lifecycle state, distinct from the saga's.
type Status string

const (
	StatusConfirmed  Status = "CONFIRMED"
	StatusCompensated Status = "COMPENSATED"
)

// Order is the participant row owned by this service.
type Order struct {
	OrderID         string
	IdempotencyKey  string
	CompensationKey *string
	SagaID          string
	CustomerID      string
	ProductID       string
	Quantity        int
	TotalPrice      float64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
