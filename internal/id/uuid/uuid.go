// Package uuid generates the request IDs the admin API stamps onto every
// inbound HTTP request.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 request IDs, time-ordered so log lines and
// traces sort the way requests actually arrived.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
