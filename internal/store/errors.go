package store

import (
	domainerrors "github.com/keepstash/keepstash/internal/errors"
)

// Sentinel errors. They are coded domain errors, so errors.Is matches both
// store.ErrNotFound and errors.ErrNotFound.
var (
	ErrNotFound   = domainerrors.NotFound("key not found")
	ErrInvalidKey = domainerrors.Validation("key must not be empty")
	ErrClosed     = domainerrors.Unavailable(domainerrors.New("backend closed"))
)

// ValidateEntries checks that every entry has a key.
func ValidateEntries(entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrInvalidKey
		}
	}
	return nil
}

// ValidateBatches checks every batch's entries and drops empty batches.
func ValidateBatches(batches []Batch) ([]Batch, error) {
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if err := ValidateEntries(b.Entries); err != nil {
			return nil, err
		}
		if len(b.Entries) > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}
