package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("invalid job request")
)

// ValidationError reports a JobRequest field that is missing or unusable.
// It is returned before any filesystem or subprocess work happens.
type ValidationError struct {
	Field  string
	Reason string // empty means the field is missing
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "missing required parameter: " + e.Field
	}
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
