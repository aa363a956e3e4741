// Package sagamodel holds the types shared by every service that
// participates in the order-fulfillment saga: the saga log shape, the
// step alphabet and the outbox event shape. None of these types touch
// storage; see internal/sagalog and internal/outbox for that.
package sagamodel

import "time"

// SagaStatus is the top-level state of a SagaLog.
type SagaStatus string

const (
	SagaStarted      SagaStatus = "STARTED"
	SagaInProgress   SagaStatus = "IN_PROGRESS"
	SagaCompleted    SagaStatus = "COMPLETED"
	SagaFailed       SagaStatus = "FAILED"
	SagaCompensating SagaStatus = "COMPENSATING"
	SagaCompensated  SagaStatus = "COMPENSATED"
)

// StepName is one of the four fixed saga steps, always in this order.
type StepName string

const (
	StepCreateOrder     StepName = "CREATE_ORDER"
	StepProcessPayment  StepName = "PROCESS_PAYMENT"
	StepUpdateInventory StepName = "UPDATE_INVENTORY"
	StepDeliverOrder    StepName = "DELIVER_ORDER"
)

// StepNames is the fixed, ordered step alphabet. Every SagaLog.Steps
// slice must contain exactly these names, in this order.
var StepNames = []StepName{
	StepCreateOrder,
	StepProcessPayment,
	StepUpdateInventory,
	StepDeliverOrder,
}

// StepStatus is the forward-progress state of a single step.
type StepStatus string

const (
	StepPending     StepStatus = "PENDING"
	StepInProgress  StepStatus = "IN_PROGRESS"
	StepCompleted   StepStatus = "COMPLETED"
	StepFailed      StepStatus = "FAILED"
	StepCompensated StepStatus = "COMPENSATED"
)

// CompensationStatus is the backward-progress state of a single step.
type CompensationStatus string

const (
	CompensationPending    CompensationStatus = "PENDING"
	CompensationInProgress CompensationStatus = "IN_PROGRESS"
	CompensationCompleted  CompensationStatus = "COMPLETED"
	CompensationFailed     CompensationStatus = "FAILED"
)

// StepRecord is one entry in SagaLog.Steps.
type StepRecord struct {
	Name               StepName           `json:"name"`
	Status             StepStatus         `json:"status"`
	CompensationStatus CompensationStatus `json:"compensationStatus"`
	Error              *string            `json:"error,omitempty"`
	Timestamp          *time.Time         `json:"timestamp,omitempty"`
}

// SagaLog is the persistent saga record, owned by the Order service but
// readable and mutable (per step) by every participant.
type SagaLog struct {
	SagaID         string       `json:"sagaId"`
	IdempotencyKey string       `json:"idempotencyKey"`
	CustomerID     string       `json:"customerId"`
	ProductID      string       `json:"productId"`
	Quantity       int          `json:"quantity"`
	TotalPrice     float64      `json:"totalPrice"`
	OrderID        *string      `json:"orderId,omitempty"`
	Status         SagaStatus   `json:"status"`
	Steps          []StepRecord `json:"steps"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// NewSteps builds the fixed 4-element step sequence, all PENDING, in
// the declared order. Steps must never be represented as a map — JSON
// key ordering is not guaranteed and the sequence is an invariant.
func NewSteps() []StepRecord {
	steps := make([]StepRecord, 0, len(StepNames))
	for _, name := range StepNames {
		steps = append(steps, StepRecord{
			Name:               name,
			Status:             StepPending,
			CompensationStatus: CompensationPending,
		})
	}
	return steps
}

// Step returns a pointer to the step record with the given name, or nil.
func (s *SagaLog) Step(name StepName) *StepRecord {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return &s.Steps[i]
		}
	}
	return nil
}

// AllCompleted reports whether every step has reached COMPLETED.
func (s *SagaLog) AllCompleted() bool {
	for _, step := range s.Steps {
		if step.Status != StepCompleted {
			return false
		}
	}
	return true
}

// AllCompensated reports whether at least one step FAILED and every
// step that reached COMPLETED has since had its compensation completed
// too (the invariant behind SagaStatus == COMPENSATED).
func (s *SagaLog) AllCompensated() bool {
	anyFailed := false
	for _, step := range s.Steps {
		if step.Status == StepFailed {
			anyFailed = true
		}
		if step.Status == StepCompleted && step.CompensationStatus != CompensationCompleted {
			return false
		}
	}
	return anyFailed
}

// MarkStepInProgress transitions a step to IN_PROGRESS with a fresh
// timestamp. Advancing a step past a predecessor that has not completed
// is a caller bug, not something this type enforces at runtime — the
// protocol (internal/order, internal/payment, ...) only ever calls this
// in step order.
func (s *SagaLog) MarkStepInProgress(name StepName) {
	step := s.Step(name)
	if step == nil {
		return
	}
	now := time.Now().UTC()
	step.Status = StepInProgress
	step.Timestamp = &now
}

// MarkStepCompleted transitions a step to COMPLETED and recomputes the
// saga-level status.
func (s *SagaLog) MarkStepCompleted(name StepName) {
	step := s.Step(name)
	if step == nil {
		return
	}
	now := time.Now().UTC()
	step.Status = StepCompleted
	step.Timestamp = &now
	s.recomputeStatus()
}

// MarkStepFailed transitions a step to FAILED with an error message and
// moves the saga into COMPENSATING.
func (s *SagaLog) MarkStepFailed(name StepName, reason string) {
	step := s.Step(name)
	if step == nil {
		return
	}
	now := time.Now().UTC()
	step.Status = StepFailed
	step.Error = &reason
	step.Timestamp = &now
	if s.Status != SagaCompensated {
		s.Status = SagaCompensating
	}
}

// MarkStepCompensating/Compensated update the backward-progress state of
// a step and recompute the saga-level status when compensation of the
// whole chain has finished.
func (s *SagaLog) MarkStepCompensating(name StepName) {
	step := s.Step(name)
	if step == nil {
		return
	}
	step.CompensationStatus = CompensationInProgress
}

func (s *SagaLog) MarkStepCompensated(name StepName) {
	step := s.Step(name)
	if step == nil {
		return
	}
	step.CompensationStatus = CompensationCompleted
	if s.AllCompensated() {
		s.Status = SagaCompensated
	}
}

func (s *SagaLog) recomputeStatus() {
	switch {
	case s.AllCompleted():
		s.Status = SagaCompleted
	case s.Status == SagaStarted:
		s.Status = SagaInProgress
	}
}
