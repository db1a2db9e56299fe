package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a graph-invariant violation detected during
// reduction. These indicate a malformed or miscompiled input net, not a
// recoverable runtime condition: the session transitions to the Fault
// terminal state and is never retried.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Def names the Book definition involved, when known.
	Def string

	// Pair is the active pair that triggered the fault, when known.
	Pair string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnresolvedReference indicates a Ref port names a definition
	// absent from the Book.
	ErrCodeUnresolvedReference RuntimeErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeArityMismatch indicates an instantiated definition was wired
	// with the wrong number of arguments.
	ErrCodeArityMismatch RuntimeErrorCode = "ARITY_MISMATCH"

	// ErrCodeMalformedNet indicates an active pair with no interaction
	// rule, which cannot occur for well-formed input.
	ErrCodeMalformedNet RuntimeErrorCode = "MALFORMED_NET"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Def != "":
		return fmt.Sprintf("%s: %s (def=%s)", e.Code, e.Message, e.Def)
	case e.Pair != "":
		return fmt.Sprintf("%s: %s (pair=%s)", e.Code, e.Message, e.Pair)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUnresolvedReference creates a RuntimeError for a missing definition.
func NewUnresolvedReference(def string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnresolvedReference,
		Message: "reference to unknown definition",
		Def:     def,
	}
}

// NewMalformedNet creates a RuntimeError for an unhandled active pair.
func NewMalformedNet(pair string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedNet,
		Message: "no interaction rule for active pair",
		Pair:    pair,
	}
}

// NewArityMismatch creates a RuntimeError for a mis-wired definition.
func NewArityMismatch(def string, want, got int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeArityMismatch,
		Message: fmt.Sprintf("definition expects %d arguments, wired with %d", want, got),
		Def:     def,
	}
}

// IsFault reports whether err is any RuntimeError.
// Uses errors.As to handle wrapped errors.
func IsFault(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// IsUnresolvedReference reports whether err is an unresolved-reference fault.
func IsUnresolvedReference(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnresolvedReference
	}
	return false
}

// IsArityMismatch reports whether err is an arity-mismatch fault.
func IsArityMismatch(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeArityMismatch
	}
	return false
}

// IsMalformedNet reports whether err is a malformed-net fault.
func IsMalformedNet(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMalformedNet
	}
	return false
}
