package platform

import (
	"github.com/google/uuid"
)

// NewID returns a new random identifier.
func NewID() string {
	return uuid.New().String()
}

// IsID reports whether s is a canonical identifier as produced by NewID.
func IsID(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.String() == s
}
