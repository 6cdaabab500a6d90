package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by storage and cache implementations.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a malformed transaction that reached a core
// component. Core components assume normalized input, so seeing one of
// these means the caller skipped normalization.
type ValidationError struct {
	Index  int    // position in the offending set
	Field  string // offending field name
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction %d: field %q: %s", e.Index, e.Field, e.Reason)
}
