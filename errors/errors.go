// Package errors holds the sentinel errors shared across storage and
// retrieval packages. Callers match them with errors.Is after wrapping.
package errors

import "errors"

var (
	// ErrNotFound marks a lookup that matched nothing.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput marks a request rejected by validation.
	ErrInvalidInput = errors.New("invalid input")
)
