// Package inventory implements the Inventory participant service: the
// `quantity`/`reservedQuantity` aggregate (spec.md §3 "Participant
// records"), its forward `update` and backward `compensate` actions,
// and the operator-facing `initialize` endpoint.
package inventory

import "time"

type ReservationStatus string

const (
	ReservationReserved    ReservationStatus = "RESERVED"
	ReservationFailed      ReservationStatus = "FAILED"
	ReservationCompensated ReservationStatus = "COMPENSATED"
)

// Item is the per-product stock aggregate. 0 <= ReservedQuantity <=
// Quantity is the invariant spec.md §3 and §8 both name.
type Item struct {
	ProductID        string
	Quantity         int
	ReservedQuantity int
	UpdatedAt        time.Time
}

// Reservation is the participant row recording one order's claim
// against an Item, keyed by idempotency key for forward-call replay.
type Reservation struct {
	ReservationID   string
	IdempotencyKey  string
	CompensationKey *string
	SagaID          string
	OrderID         string
	ProductID       string
	Quantity        int
	Status          ReservationStatus
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
