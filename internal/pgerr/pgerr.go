// Package pgerr centralizes Postgres unique-violation detection so
// every repository classifies duplicate-key errors the same way,
// mirroring (and correcting) the teacher's ad hoc string matching in
// infrastructure/eventstore/serializer.go with the real *pq.Error code.
package pgerr

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), optionally scoped to a constraint or
// column name substring.
func IsUniqueViolation(err error, scopedTo string) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return false
		}
		if scopedTo == "" {
			return true
		}
		return strings.Contains(pqErr.Constraint, scopedTo) || strings.Contains(pqErr.Message, scopedTo)
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") && (scopedTo == "" || strings.Contains(msg, scopedTo))
}
