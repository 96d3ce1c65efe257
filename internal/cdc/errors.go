package cdc

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound reports an unknown collection, subject, or stale
	// revision. The replace path deliberately does not say which.
	ErrNotFound = errors.New("not found")

	// ErrIDExhausted reports that the collection-id retry budget was
	// spent without finding a free id.
	ErrIDExhausted = errors.New("cdc id generation exhausted")
)

// ValidationError reports a user-correctable problem with the request
// shape. Field names the offending part ("prefix" or "load") so the
// boundary layer can pick the right protocol code.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + ": " + e.Reason
}

// BadRecordsError reports which load records failed validation. The valid
// subset of the batch has still been imported. Indices render
// comma-separated, the wire text existing clients parse.
type BadRecordsError struct {
	Indices []int
}

func (e *BadRecordsError) Error() string {
	parts := make([]string, 0, len(e.Indices))
	for _, i := range e.Indices {
		parts = append(parts, strconv.Itoa(i))
	}
	return "invalid load records " + strings.Join(parts, ",")
}
