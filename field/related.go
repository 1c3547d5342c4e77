package field

import (
	"fmt"
	"reflect"

	"github.com/hydrant-api/hydrant/bundle"
)

// Self declares a relation whose target is the resource that ends up
// owning the field. The target stays unbound until that resource
// registers its field set, at which point the binding is filled in.
const Self = "self"

// WithRelatedName names the attribute on the target that points back at
// the owning object. Hydrating a to-many relation declared this way hands
// each child bundle the parent object under that name.
func WithRelatedName(name string) Option {
	return func(f *Field) { f.relatedName = name }
}

// WithEmbed renders the full related representation instead of a locator.
func WithEmbed() Option {
	return func(f *Field) { f.embed = true }
}

// WithEmbedInList fixes whether an embedded relation renders fully inside
// list renderings of the owner.
func WithEmbedInList(v bool) Option {
	return func(f *Field) { f.embedInList = gate{value: v} }
}

// WithEmbedInListFunc decides list-rendering embedding per related
// bundle.
func WithEmbedInListFunc(fn func(*bundle.Bundle) bool) Option {
	return func(f *Field) { f.embedInList = gate{fn: fn} }
}

// WithEmbedInDetail fixes whether an embedded relation renders fully
// inside detail renderings of the owner.
func WithEmbedInDetail(v bool) Option {
	return func(f *Field) { f.embedInDetail = gate{value: v} }
}

// WithEmbedInDetailFunc decides detail-rendering embedding per related
// bundle.
func WithEmbedInDetailFunc(fn func(*bundle.Bundle) bool) Option {
	return func(f *Field) { f.embedInDetail = gate{fn: fn} }
}

func newRelation(rel relKind, target any, attribute string, opts ...Option) *Field {
	f := New(KindRelated, opts...)
	f.rel = rel
	WithAttribute(attribute)(f)
	switch t := target.(type) {
	case Resource:
		f.target = target
		f.resolved = t
	case string:
		f.target = target
		if t == Self {
			f.selfRef = true
		}
	default:
		f.target = target
	}
	return f
}

// Target resolves the resource this relation points at. Resolution is
// memoized: a string target consults the resolver exactly once, and a
// Self target must have been bound by registration before use.
func (f *Field) Target() (Resource, error) {
	if f.rel == relNone {
		return nil, &ConfigError{Field: f.name, Reason: "not a relation"}
	}
	f.resolveOnce.Do(f.resolveTarget)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolved, nil
}

func (f *Field) resolveTarget() {
	if f.resolved != nil {
		return
	}
	switch t := f.target.(type) {
	case string:
		if t == Self {
			f.resolveErr = &ConfigError{Field: f.name, Target: t,
				Reason: "self target was never bound; register the owning resource first"}
			return
		}
		if f.resolver == nil {
			f.resolveErr = &ConfigError{Field: f.name, Target: t,
				Reason: fmt.Sprintf("target %q cannot be resolved outside a registry", t)}
			return
		}
		res, err := f.resolver.Resolve(t)
		if err != nil {
			f.resolveErr = &ConfigError{Field: f.name, Target: t, Err: err}
			return
		}
		f.resolved = res
	case nil:
		f.resolveErr = &ConfigError{Field: f.name, Reason: "relation declared without a target"}
	default:
		f.resolveErr = &ConfigError{Field: f.name,
			Reason: fmt.Sprintf("unsupported target type %T", f.target)}
	}
}

// TargetName names the relation's target without forcing resolution.
func (f *Field) TargetName() string {
	if f.resolved != nil {
		return f.resolved.Name()
	}
	if s, ok := f.target.(string); ok {
		return s
	}
	return ""
}

// shouldEmbed applies the embed policy for one related bundle. The
// predicate sees the related object's bundle, not the owner's.
func (f *Field) shouldEmbed(child *bundle.Bundle, forList bool) bool {
	if !f.embed {
		return false
	}
	if forList {
		return f.embedInList.eval(child)
	}
	return f.embedInDetail.eval(child)
}

// dehydrateRelated renders one related object, either as the target's
// locator or, when the embed policy says so, as its full detail
// representation.
func (f *Field) dehydrateRelated(b *bundle.Bundle, target Resource, obj any, forList bool) (any, error) {
	child := bundle.New(
		bundle.WithObject(obj),
		bundle.WithContext(b.Context()),
		bundle.WithSaved(b.Saved()),
	)
	if !f.shouldEmbed(child, forList) {
		return target.Locator(obj), nil
	}
	if err := target.FullDehydrate(b.Context(), child, false); err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return child.Data, nil
}

// buildRelated turns one inbound related value into a hydrated child
// bundle. The value may already be a bundle, a locator string, a data
// map, or an object carrying the target's primary identifier; anything
// else is a ShapeError.
func (f *Field) buildRelated(parent *bundle.Bundle, value any, relObj any, relName string) (*bundle.Bundle, error) {
	target, err := f.Target()
	if err != nil {
		return nil, err
	}
	ctx := parent.Context()

	switch v := value.(type) {
	case *bundle.Bundle:
		return v, nil
	case string:
		obj, err := target.ResolveLocator(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: locator %q: %w", f.name, v, err)
		}
		child := bundle.New(
			bundle.WithObject(obj),
			bundle.WithContext(ctx),
			bundle.WithSaved(parent.Saved()),
		)
		if err := target.FullDehydrate(ctx, child, false); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		return child, nil
	case map[string]any:
		return f.relatedFromData(parent, target, v, relObj, relName)
	}

	if m, ok := asStringMap(value); ok {
		return f.relatedFromData(parent, target, m, relObj, relName)
	}
	if hasAttrOn(value, target.PrimaryKey()) {
		child := bundle.New(
			bundle.WithObject(value),
			bundle.WithContext(ctx),
			bundle.WithSaved(parent.Saved()),
		)
		if err := target.FullDehydrate(ctx, child, false); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		return child, nil
	}
	return nil, &ShapeError{Field: f.name, Value: value}
}

// relatedFromData disambiguates a related data map between updating an
// existing object and describing a new one. An update is attempted first,
// scoped by all inbound entries; if that match is ambiguous or the store
// rejects a selector, a second attempt uses only identifying entries.
// When no existing object can be pinned down, the data hydrates into a
// fresh, unsaved object.
func (f *Field) relatedFromData(parent *bundle.Bundle, target Resource, data map[string]any, relObj any, relName string) (*bundle.Bundle, error) {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	child := bundle.New(
		bundle.WithData(copied),
		bundle.WithContext(parent.Context()),
		bundle.WithSaved(parent.Saved()),
		bundle.WithRelated(relObj, relName),
	)
	ctx := parent.Context()

	unique := f.uniqueSelectors(target, copied)
	if len(unique) > 0 && target.CanUpdate() {
		err := target.Update(ctx, child, copied)
		switch {
		case err == nil:
			return child, nil
		case IsAmbiguousMatch(err) || IsInvalidSelector(err):
			err = target.Update(ctx, child, unique)
			switch {
			case err == nil:
				return child, nil
			case IsNotFound(err) || IsAmbiguousMatch(err):
				// fall through to building a fresh object
			default:
				return nil, fmt.Errorf("field %q: %w", f.name, err)
			}
		case IsNotFound(err):
			// fall through to building a fresh object
		default:
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
	}

	if err := target.FullHydrate(ctx, child); err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return child, nil
}

// uniqueSelectors keeps the data entries that identify an object on the
// target: its primary key plus any field declared unique.
func (f *Field) uniqueSelectors(target Resource, data map[string]any) map[string]any {
	unique := make(map[string]any)
	for k, v := range data {
		if k == target.PrimaryKey() {
			unique[k] = v
			continue
		}
		if tf, ok := target.Fields().Get(k); ok && tf.Unique() {
			unique[k] = v
		}
	}
	return unique
}

// asStringMap converts any string-keyed map into map[string]any.
func asStringMap(value any) (map[string]any, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}
