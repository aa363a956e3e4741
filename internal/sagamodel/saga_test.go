package sagamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSaga() *SagaLog {
	return &SagaLog{
		SagaID:         "saga-1",
		IdempotencyKey: "key-1",
		CustomerID:     "cust-1",
		ProductID:      "prod-1",
		Quantity:       2,
		TotalPrice:     40,
		Status:         SagaStarted,
		Steps:          NewSteps(),
	}
}

func TestNewStepsOrderAndAlphabet(t *testing.T) {
	steps := NewSteps()
	require.Len(t, steps, 4)
	assert.Equal(t, []StepName{StepCreateOrder, StepProcessPayment, StepUpdateInventory, StepDeliverOrder},
		[]StepName{steps[0].Name, steps[1].Name, steps[2].Name, steps[3].Name})
	for _, s := range steps {
		assert.Equal(t, StepPending, s.Status)
		assert.Equal(t, CompensationPending, s.CompensationStatus)
	}
}

func TestHappyPathReachesCompleted(t *testing.T) {
	log := newTestSaga()
	log.MarkStepCompleted(StepCreateOrder)
	assert.Equal(t, SagaInProgress, log.Status)

	log.MarkStepCompleted(StepProcessPayment)
	log.MarkStepCompleted(StepUpdateInventory)
	assert.Equal(t, SagaInProgress, log.Status)

	log.MarkStepCompleted(StepDeliverOrder)
	assert.True(t, log.AllCompleted())
	assert.Equal(t, SagaCompleted, log.Status)
}

func TestFailureDrivesCompensationToTerminal(t *testing.T) {
	log := newTestSaga()
	log.MarkStepCompleted(StepCreateOrder)
	log.MarkStepCompleted(StepProcessPayment)
	log.MarkStepFailed(StepUpdateInventory, "insufficient inventory")
	assert.Equal(t, SagaCompensating, log.Status)
	assert.False(t, log.AllCompensated(), "nothing compensated yet")

	log.MarkStepCompensating(StepProcessPayment)
	log.MarkStepCompensated(StepProcessPayment)
	assert.Equal(t, SagaCompensating, log.Status, "CreateOrder step still uncompensated")

	log.MarkStepCompensating(StepCreateOrder)
	log.MarkStepCompensated(StepCreateOrder)
	assert.True(t, log.AllCompensated())
	assert.Equal(t, SagaCompensated, log.Status)
}

func TestAllCompensatedRequiresAFailure(t *testing.T) {
	log := newTestSaga()
	log.MarkStepCompleted(StepCreateOrder)
	log.MarkStepCompleted(StepProcessPayment)
	log.MarkStepCompleted(StepUpdateInventory)
	log.MarkStepCompleted(StepDeliverOrder)
	assert.False(t, log.AllCompensated(), "a fully completed saga was never compensated")
}

func TestStepReturnsNilForUnknownName(t *testing.T) {
	log := newTestSaga()
	assert.Nil(t, log.Step("NOT_A_STEP"))
}
