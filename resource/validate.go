package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/field"
)

// Validator checks a hydrated bundle before it is persisted. A non-nil
// error aborts the save.
type Validator interface {
	Validate(ctx context.Context, b *bundle.Bundle) error
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(ctx context.Context, b *bundle.Bundle) error

// Validate implements the Validator interface.
func (fn ValidatorFunc) Validate(ctx context.Context, b *bundle.Bundle) error {
	return fn(ctx, b)
}

// Errors collects validation failures keyed by field name.
type Errors struct {
	Fields map[string][]string `json:"fields"`
}

// NewErrors creates an empty validation error collection.
func NewErrors() *Errors {
	return &Errors{Fields: make(map[string][]string)}
}

// Add records a failure message for a field.
func (e *Errors) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any failure was recorded.
func (e *Errors) HasErrors() bool {
	return len(e.Fields) > 0
}

// Count returns the total number of recorded failures across all fields.
func (e *Errors) Count() int {
	count := 0
	for _, messages := range e.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface.
func (e *Errors) Error() string {
	if !e.HasErrors() {
		return "validation failed"
	}
	var messages []string
	for field, errs := range e.Fields {
		for _, msg := range errs {
			messages = append(messages, fmt.Sprintf("  - %s: %s", field, msg))
		}
	}
	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}
	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler for error responses.
func (e *Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: e.Fields,
	})
}

// IsValidationError returns true if the error carries field validation
// failures.
func IsValidationError(err error) bool {
	var ve *Errors
	return errors.As(err, &ve)
}

// Check inspects one field value. Checks receive whatever the field's
// attribute holds on the hydrated object and must tolerate nil.
type Check func(value any) error

// FieldValidator validates a hydrated object against its declared field
// set. A field that allows neither null nor blank and carries no default
// must hold a non-empty value; beyond that, registered per-field checks
// run on the attribute's value.
type FieldValidator struct {
	fields *field.Set
	checks map[string][]Check
}

// NewFieldValidator builds a validator over the given field set.
func NewFieldValidator(fields *field.Set) *FieldValidator {
	return &FieldValidator{
		fields: fields,
		checks: make(map[string][]Check),
	}
}

// AddCheck registers checks for a field name and returns the validator
// for chaining.
func (v *FieldValidator) AddCheck(fieldName string, checks ...Check) *FieldValidator {
	v.checks[fieldName] = append(v.checks[fieldName], checks...)
	return v
}

// Validate implements the Validator interface.
func (v *FieldValidator) Validate(ctx context.Context, b *bundle.Bundle) error {
	errs := NewErrors()

	for _, f := range v.fields.Fields() {
		attr := f.Attribute()
		if attr == "" || f.Readonly() {
			continue
		}
		value, err := field.Attr(b.Obj, attr)
		if err != nil {
			errs.Add(f.Name(), err.Error())
			continue
		}
		if !field.Truthy(value) {
			if !f.Null() && !f.Blank() && !f.HasDefault() {
				errs.Add(f.Name(), "is required")
			}
			continue
		}
		for _, check := range v.checks[f.Name()] {
			if err := check(value); err != nil {
				errs.Add(f.Name(), err.Error())
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// MinLen checks that a string or list value holds at least n runes or
// items.
func MinLen(n int) Check {
	return func(value any) error {
		length, kind, ok := valueLen(value)
		if !ok {
			return nil
		}
		if length < n {
			return fmt.Errorf("must be at least %d %s", n, kind)
		}
		return nil
	}
}

// MaxLen checks that a string or list value holds at most n runes or
// items.
func MaxLen(n int) Check {
	return func(value any) error {
		length, kind, ok := valueLen(value)
		if !ok {
			return nil
		}
		if length > n {
			return fmt.Errorf("must be at most %d %s", n, kind)
		}
		return nil
	}
}

// Matches checks a string value against a regex pattern.
func Matches(pattern *regexp.Regexp) Check {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if !pattern.MatchString(s) {
			return fmt.Errorf("does not match required pattern")
		}
		return nil
	}
}

// Email checks that a string value parses as an RFC 5322 address.
func Email() Check {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Errorf("must be a valid email address")
		}
		return nil
	}
}

func valueLen(value any) (length int, kind string, ok bool) {
	if value == nil {
		return 0, "", false
	}
	if s, isStr := value.(string); isStr {
		return utf8.RuneCountInString(s), "characters", true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), "items", true
	}
	return 0, "", false
}
