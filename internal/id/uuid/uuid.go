// Package uuid provides UUID-based run ID generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces UUIDv4 run IDs.
type Generator struct{}

// New constructs a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a fresh UUID string.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
