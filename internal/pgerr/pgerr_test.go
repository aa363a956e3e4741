package pgerr

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationNil(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsUniqueViolationTypedPqError(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "orders_idempotency_key_key"}
	assert.True(t, IsUniqueViolation(err, "idempotency_key"))
	assert.False(t, IsUniqueViolation(err, "order_id"))
}

func TestIsUniqueViolationWrongCode(t *testing.T) {
	err := &pq.Error{Code: "23503"}
	assert.False(t, IsUniqueViolation(err, ""))
}

func TestIsUniqueViolationFallsBackToStringMatch(t *testing.T) {
	err := errors.New(`pq: duplicate key value violates unique constraint "orders_idempotency_key_key"`)
	assert.True(t, IsUniqueViolation(err, "idempotency_key"))
}

func TestIsUniqueViolationUnrelatedError(t *testing.T) {
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}
