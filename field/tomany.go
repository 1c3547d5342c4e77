package field

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hydrant-api/hydrant/bundle"
)

// ToMany declares a relation carrying a collection of related objects.
// The target is a Resource, a registered resource name, or Self;
// attribute is the path on the owning object that holds the collection.
func ToMany(target any, attribute string, opts ...Option) *Field {
	return newRelation(relToMany, target, attribute, opts...)
}

func (f *Field) dehydrateToMany(b *bundle.Bundle, forList bool) (any, error) {
	// An owner without identity has nothing for members to point back at.
	pk := "id"
	if f.owner != nil {
		pk = f.owner.PrimaryKey()
	}
	ident, err := getAttr(b.Obj, pk)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	if !truthy(ident) {
		if f.null {
			return []any{}, nil
		}
		return nil, &AccessError{Field: f.name, Segment: pk, Parent: b.Obj}
	}

	var (
		members any
		parent  any = b.Obj
		segment string
	)
	switch {
	case f.attrFunc != nil:
		v, aerr := f.attrFunc(b)
		if aerr != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, aerr)
		}
		members = v
		segment = f.name
	case f.hasAttr:
		v, p, seg, werr := f.attr.walkRelation(b.Obj)
		if werr != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, werr)
		}
		members, parent, segment = v, p, seg
	}

	if !truthy(members) {
		if f.null {
			return []any{}, nil
		}
		return nil, &AccessError{Field: f.name, Segment: segment, Parent: parent}
	}

	target, err := f.Target()
	if err != nil {
		return nil, err
	}
	items, err := collectionItems(b.Context(), members)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}

	// Collection order is authoritative for the rendered list.
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, derr := f.dehydrateRelated(b, target, item, forList)
		if derr != nil {
			return nil, derr
		}
		out = append(out, v)
	}
	return out, nil
}

// HydrateMany builds one child bundle per inbound member of a to-many
// relation, preserving inbound order. Nil members are skipped. When the
// field declares a related name, every child carries the owning object as
// its related object under that name.
func (f *Field) HydrateMany(b *bundle.Bundle) ([]*bundle.Bundle, error) {
	if f.rel != relToMany {
		return nil, &ConfigError{Field: f.name, Reason: "not a to-many relation"}
	}
	if f.readonly {
		return nil, nil
	}
	raw, ok := b.Data[f.name]
	if !ok || isNil(raw) {
		if f.blank || f.null {
			return []*bundle.Bundle{}, nil
		}
		return nil, &AccessError{Field: f.name}
	}
	items, err := toSlice(raw)
	if err != nil {
		return nil, &ShapeError{Field: f.name, Value: raw}
	}

	var (
		relObj  any
		relName string
	)
	if f.relatedName != "" {
		relObj = b.Obj
		relName = f.relatedName
	}

	out := make([]*bundle.Bundle, 0, len(items))
	for _, item := range items {
		if isNil(item) {
			continue
		}
		child, berr := f.buildRelated(b, item, relObj, relName)
		if berr != nil {
			return nil, berr
		}
		out = append(out, child)
	}
	return out, nil
}

// collectionItems materializes a to-many attribute value: a Collection is
// asked for its members, anything slice-shaped is copied element by
// element.
func collectionItems(ctx context.Context, value any) ([]any, error) {
	if c, ok := value.(Collection); ok {
		return c.All(ctx)
	}
	items, err := toSlice(value)
	if err != nil {
		return nil, fmt.Errorf("attribute value %T is not a collection or a slice", value)
	}
	return items, nil
}

func toSlice(value any) ([]any, error) {
	if items, ok := value.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}
	return nil, errors.New("not a list")
}
