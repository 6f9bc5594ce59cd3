// Package id generates identifiers for locally created records, SSE clients and sync cycles.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for locally generated ids.
const (
	PrefixItem   = "item"
	PrefixTag    = "tag"
	PrefixClient = "client"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "item-V1StGXR8_Z5jdHi6B-myT").
//
// Items created while disconnected get one of these; the remote keeps
// whatever id the client chose, so it must be stable and URL-safe.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewItemID returns an id for a saved item created locally.
func NewItemID() (string, error) {
	return Generate(PrefixItem)
}

// NewCycleID returns a random UUID identifying one reconciliation cycle.
func NewCycleID() string {
	return uuid.NewString()
}
