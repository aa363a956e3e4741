// Package payment implements the Payment participant service: payment
// simulation with an injectable synthetic failure rate (spec.md §4.4
// "Payment", §9's open question), and its refund compensation.
package payment

import "time"

type Status string

const (
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Payment is the participant row owned by this service.
type Payment struct {
	PaymentID       string
	IdempotencyKey  string
	CompensationKey *string
	SagaID          string
	OrderID         string
	CustomerID      string
	Amount          float64
	Status          Status
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
