package field

import (
	"errors"
	"fmt"
)

// Lookup error kinds shared with the store and resource layers.
var (
	// ErrNotFound is returned when a locator or selector lookup matches nothing.
	ErrNotFound = errors.New("no matching object")

	// ErrAmbiguousMatch is returned when a selector lookup matches more than
	// one candidate.
	ErrAmbiguousMatch = errors.New("selector matched multiple objects")

	// ErrInvalidSelector is returned when a selector cannot be applied to the
	// underlying store, for example a nested value used as a match criterion.
	ErrInvalidSelector = errors.New("selector cannot be applied")
)

// AccessError is returned when an attribute path resolves to a missing value
// with no default or null fallback, or when injection finds no data and no
// fallback. It is always surfaced to the caller.
type AccessError struct {
	Field   string
	Segment string
	Parent  any
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("field %q: attribute %q is empty on %T and the field allows no default or null value", e.Field, e.Segment, e.Parent)
	}
	return fmt.Sprintf("field %q has no data and allows no default or null value", e.Field)
}

// ConversionError is returned when a value fails its scalar kind's parse.
type ConversionError struct {
	Field string
	Kind  Kind
	Value any
	Err   error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("value %v provided to %q is not a valid %s", e.Value, e.Field, e.Kind)
}

// Unwrap returns the underlying parse error, if any.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ShapeError is returned when inbound relational data is of a shape the
// engine cannot interpret: not a locator, not a data map, and not an object
// carrying the target's primary identifier.
type ShapeError struct {
	Field string
	Value any
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("field %q was given data that is not a locator, a data map, and has no primary identifier: %v (%T)", e.Field, e.Value, e.Value)
}

// ConfigError is returned when a relation target cannot be resolved to a
// registered resource. It indicates a wiring defect, not a per-request
// condition.
type ConfigError struct {
	Field  string
	Target string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = fmt.Sprintf("no resource registered as %q", e.Target)
	}
	return fmt.Sprintf("field %q: %s", e.Field, msg)
}

// Unwrap returns the underlying resolution error, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguousMatch returns true if the error is ErrAmbiguousMatch.
func IsAmbiguousMatch(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch)
}

// IsInvalidSelector returns true if the error is ErrInvalidSelector.
func IsInvalidSelector(err error) bool {
	return errors.Is(err, ErrInvalidSelector)
}

// IsAccessError returns true if the error is an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// IsConversionError returns true if the error is a ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// IsShapeError returns true if the error is a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
