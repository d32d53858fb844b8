package models

import (
	"errors"
	"math"
	"strings"
)

// ErrValidation is the sentinel every form validation failure unwraps to.
var ErrValidation = errors.New("validation failed")

// within reports lo <= v <= hi. NaN and ±Inf are never within a range.
func within(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

// ValidationError describes one invalid form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors caught before a form is submitted.
type ValidationErrors []ValidationError

// Add appends a field error and returns the extended slice.
func (e ValidationErrors) Add(field, message string) ValidationErrors {
	return append(e, ValidationError{Field: field, Message: message})
}

// OrNil returns nil when no field failed, so callers can `return errs.OrNil()`.
func (e ValidationErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) Unwrap() error { return ErrValidation }
