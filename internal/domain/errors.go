package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is reported when a moderation action references an id that
	// exists in neither bucket.
	ErrNotFound = errors.New("review not found")

	// ErrVersionConflict is the store rejecting a write because the version
	// token went stale. Recoverable: refetch and re-apply the mutation.
	ErrVersionConflict = errors.New("document version conflict")
)

// ValidationError rejects submitted input before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError is any non-success store response other than a version conflict.
// Detail is truncated by the adapter and never carries the credential.
type StoreError struct {
	Status int
	Detail string
}

func (e *StoreError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("document store responded %d", e.Status)
	}
	return fmt.Sprintf("document store responded %d: %s", e.Status, e.Detail)
}
