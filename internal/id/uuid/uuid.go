// Package uuid generates the opaque per-instance identifier each coordinator
// keeps as its clientKey, and the request IDs the local emulator backend
// hands out. A coordinator's clientKey is not sent with its resource-client
// calls.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID strings.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewClientKey returns a random opaque string suitable for use as a
// coordinator instance's clientKey.
func (Generator) NewClientKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate client key: %w", err)
	}
	return id.String(), nil
}

// NewRequestID returns a UUIDv7 string, used by the local emulator backend
// to assign an opaque remote id to a newly added request.
func (Generator) NewRequestID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return id.String(), nil
}
