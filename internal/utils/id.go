package utils

import "github.com/google/uuid"

// NewID returns a random identifier for local bridge clients.
func NewID() string {
	return uuid.NewString()
}
