// Package shipping implements the Shipping participant service: the
// terminal forward step of the saga (spec.md §4.4 "Shipping") and its
// cancel compensation.
package shipping

import "time"

type Status string

const (
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
)

// Shipment is the participant row owned by this service.
type Shipment struct {
	ShipmentID      string
	IdempotencyKey  string
	CompensationKey *string
	SagaID          string
	OrderID         string
	CustomerID      string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
