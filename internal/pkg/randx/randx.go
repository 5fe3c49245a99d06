/*
Package randx provides identifier generation for connections and messages.
*/
package randx

import (
	"github.com/google/uuid"
)

// ConnectionID returns a new opaque connection identifier (UUID v4).
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}
