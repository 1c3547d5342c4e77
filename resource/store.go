package resource

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/field"
)

// Store persists the flat map records a Resource manages. Implementations
// key records by a single primary-key attribute.
type Store interface {
	// Select returns the records matching every selector. Selector values
	// must be scalars; anything else reports field.ErrInvalidSelector.
	Select(ctx context.Context, selectors map[string]any) ([]map[string]any, error)

	// All returns every record in the store's stable order; the in-memory
	// store keeps insertion order.
	All(ctx context.Context) ([]map[string]any, error)

	// Save upserts a record by its primary key, assigning one when the
	// record carries none, and returns the stored form.
	Save(ctx context.Context, record map[string]any) (map[string]any, error)

	// Delete removes the record whose primary key equals pk, reporting
	// field.ErrNotFound when no such record exists.
	Delete(ctx context.Context, pk any) error
}

// saver is the optional persistence surface of a relation target. Targets
// that expose it get their freshly built children saved alongside the
// owning object.
type saver interface {
	Save(ctx context.Context, b *bundle.Bundle) error
}

// ValidateSelectors rejects selector values no store can match on:
// anything but nil, scalars, times, and decimals reports
// field.ErrInvalidSelector.
func ValidateSelectors(selectors map[string]any) error {
	for k, v := range selectors {
		if !scalarSelector(v) {
			return fmt.Errorf("%w: %s holds a %T", field.ErrInvalidSelector, k, v)
		}
	}
	return nil
}

// MatchesSelectors reports whether the record satisfies every selector.
// Values compare by string form, so a pk selected as "42" finds a record
// holding the integer 42.
func MatchesSelectors(record, selectors map[string]any) bool {
	for k, want := range selectors {
		if !looseEqual(record[k], want) {
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func scalarSelector(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case time.Time, decimal.Decimal:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct,
		reflect.Func, reflect.Chan, reflect.Pointer, reflect.Interface:
		return false
	}
	return true
}
