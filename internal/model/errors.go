package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// MissingRequiredProperty is returned when a payload omits a required
// property and the proposal has no prior value for it
type MissingRequiredProperty struct {
	Property string
}

func (e *MissingRequiredProperty) Error() string {
	return fmt.Sprintf("missing required property: %s", e.Property)
}

// MalformedPayload is returned when a payload value has the wrong shape
type MalformedPayload struct {
	Field  string
	Reason string
}

func (e *MalformedPayload) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed payload: %s", e.Reason)
	}
	return fmt.Sprintf("malformed payload: %s: %s", e.Field, e.Reason)
}

// MalformedQuery is returned when a proposal query cannot be executed
type MalformedQuery struct {
	Reason string
}

func (e *MalformedQuery) Error() string {
	return fmt.Sprintf("malformed query: %s", e.Reason)
}

// ValidationError collects user-facing problems with a request
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// IsMissingRequired reports whether err wraps a MissingRequiredProperty
func IsMissingRequired(err error) bool {
	var target *MissingRequiredProperty
	return errors.As(err, &target)
}

// IsMalformedPayload reports whether err wraps a MalformedPayload
func IsMalformedPayload(err error) bool {
	var target *MalformedPayload
	return errors.As(err, &target)
}

// IsMalformedQuery reports whether err wraps a MalformedQuery
func IsMalformedQuery(err error) bool {
	var target *MalformedQuery
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
