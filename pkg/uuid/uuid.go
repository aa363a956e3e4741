package uuid

import (
	"github.com/google/uuid"
)

// New generates a new UUID v7 (time-ordered). All identifiers in this
// system use v7 so outbox and saga log scans preserve insertion order
// without an extra sequence column.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy/clock failure; fall back rather than panic in a hot path.
		return uuid.New().String()
	}
	return id.String()
}

// NewUUID is an alias for New
func NewUUID() string {
	return New()
}

// Parse parses a UUID string
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// MustParse parses a UUID string and panics on error
func MustParse(s string) uuid.UUID {
	return uuid.MustParse(s)
}
