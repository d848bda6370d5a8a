package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID-backed identifier for process handles and run invocations.
type ID string

// NewID generates a new random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates s as a UUID and returns it as an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return ID(parsed.String()), nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}
