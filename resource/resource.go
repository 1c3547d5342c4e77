// Package resource provides the store-backed implementation of the field
// engine's Resource contract. A Resource couples a declared field set with
// a Store holding flat map records: fields drive rendering and loading,
// the store answers lookups, and saves flow through both.
package resource

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/field"
)

// Resource exposes one kind of object through a declared field set.
type Resource struct {
	name          string
	pkField       string
	fields        *field.Set
	store         Store
	validator     Validator
	factory       func() any
	canUpdate     bool
	locatorPrefix string
	logger        *zap.Logger
}

// Option configures a Resource at construction.
type Option func(*Resource) error

// WithField declares a field under the given name. Declaration order is
// rendering order.
func WithField(name string, f *field.Field) Option {
	return func(r *Resource) error {
		return r.fields.Add(name, f)
	}
}

// WithFields replaces the resource's field set wholesale.
func WithFields(set *field.Set) Option {
	return func(r *Resource) error {
		if set == nil {
			return fmt.Errorf("field set cannot be nil")
		}
		r.fields = set
		return nil
	}
}

// WithStore attaches the store that persists this resource's records.
func WithStore(s Store) Option {
	return func(r *Resource) error {
		r.store = s
		return nil
	}
}

// WithValidator installs a validator run before every save.
func WithValidator(v Validator) Option {
	return func(r *Resource) error {
		r.validator = v
		return nil
	}
}

// WithPrimaryKey names the attribute carrying record identity. The
// default is "id".
func WithPrimaryKey(attr string) Option {
	return func(r *Resource) error {
		if attr == "" {
			return fmt.Errorf("primary key attribute cannot be empty")
		}
		r.pkField = attr
		return nil
	}
}

// WithLocatorPrefix sets the path prefix locators render under. The
// default is "/api".
func WithLocatorPrefix(prefix string) Option {
	return func(r *Resource) error {
		r.locatorPrefix = strings.TrimSuffix(prefix, "/")
		return nil
	}
}

// WithFactory sets the constructor for fresh objects during hydration.
// The default builds an empty map record.
func WithFactory(fn func() any) Option {
	return func(r *Resource) error {
		if fn == nil {
			return fmt.Errorf("factory cannot be nil")
		}
		r.factory = fn
		return nil
	}
}

// WithoutUpdates marks the resource immutable to related data: incoming
// representations never match-and-modify existing records, they only ever
// build fresh ones.
func WithoutUpdates() Option {
	return func(r *Resource) error {
		r.canUpdate = false
		return nil
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resource) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// New builds a resource. Fields render in declaration order, and the
// default primary key attribute is "id".
func New(name string, opts ...Option) (*Resource, error) {
	if name == "" {
		return nil, fmt.Errorf("resource name cannot be empty")
	}
	r := &Resource{
		name:          name,
		pkField:       "id",
		fields:        field.NewSet(),
		factory:       func() any { return map[string]any{} },
		canUpdate:     true,
		locatorPrefix: "/api",
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
	}
	return r, nil
}

// Name identifies the resource within a registry.
func (r *Resource) Name() string { return r.name }

// PrimaryKey names the attribute that carries record identity.
func (r *Resource) PrimaryKey() string { return r.pkField }

// Fields exposes the declared field set.
func (r *Resource) Fields() *field.Set { return r.fields }

// Store exposes the backing store, or nil when the resource is unbacked.
func (r *Resource) Store() Store { return r.store }

// CanUpdate reports whether related data may match-and-modify existing
// records.
func (r *Resource) CanUpdate() bool { return r.canUpdate }

// Locator renders the stable reference for obj, or "" when the object
// carries no identity yet.
func (r *Resource) Locator(obj any) string {
	pk, err := field.Attr(obj, r.pkField)
	if err != nil || !field.Truthy(pk) {
		return ""
	}
	return fmt.Sprintf("%s/%s/%v", r.locatorPrefix, r.name, pk)
}

// ResolveLocator parses a locator produced by Locator and loads the
// record it names from the store.
func (r *Resource) ResolveLocator(ctx context.Context, locator string) (any, error) {
	pk, err := r.parseLocator(locator)
	if err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, r.errNoStore()
	}
	matches, err := r.store.Select(ctx, map[string]any{r.pkField: pk})
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", field.ErrNotFound, locator)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("%w: locator %s", field.ErrAmbiguousMatch, locator)
}

func (r *Resource) parseLocator(locator string) (string, error) {
	rest, ok := strings.CutPrefix(locator, r.locatorPrefix+"/")
	if ok {
		parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
		if len(parts) == 2 && parts[0] == r.name && parts[1] != "" {
			return parts[1], nil
		}
	}
	return "", fmt.Errorf("%w: locator %q does not address resource %s", field.ErrNotFound, locator, r.name)
}

// FullDehydrate renders b.Obj into b.Data, one entry per field visible in
// the requested rendering, in declaration order.
func (r *Resource) FullDehydrate(ctx context.Context, b *bundle.Bundle, forList bool) error {
	for _, f := range r.fields.Fields() {
		if !f.VisibleIn(b, forList) {
			continue
		}
		v, err := f.Dehydrate(b, forList)
		if err != nil {
			return err
		}
		b.Data[f.Name()] = v
	}
	return nil
}

// FullHydrate builds b.Obj from b.Data without persisting it. An existing
// object on the bundle is merged into; otherwise the factory supplies a
// fresh one. Read-only and to-many fields are skipped, and a field's
// value lands on its attribute only when non-nil or explicitly nullable.
func (r *Resource) FullHydrate(ctx context.Context, b *bundle.Bundle) error {
	if b.Obj == nil {
		b.Obj = r.factory()
	}
	for _, f := range r.fields.Fields() {
		if f.Readonly() || f.IsToMany() {
			continue
		}
		v, err := f.Hydrate(b)
		if err != nil {
			return err
		}
		attr := f.Attribute()
		if attr == "" {
			continue
		}
		if child, ok := v.(*bundle.Bundle); ok {
			if err := field.SetAttr(b.Obj, attr, child.Obj); err != nil {
				return err
			}
			continue
		}
		// An absent relation marked blank stays untouched even when the
		// field also allows null.
		if v == nil && f.IsRelated() && f.Blank() {
			continue
		}
		if v != nil || f.Null() {
			if err := field.SetAttr(b.Obj, attr, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Render dehydrates obj into a fresh data map.
func (r *Resource) Render(ctx context.Context, obj any, forList bool) (map[string]any, error) {
	b := bundle.New(bundle.WithObject(obj), bundle.WithContext(ctx))
	if err := r.FullDehydrate(ctx, b, forList); err != nil {
		return nil, err
	}
	return b.Data, nil
}

// List renders every stored record in insertion order.
func (r *Resource) List(ctx context.Context) ([]map[string]any, error) {
	if r.store == nil {
		return nil, r.errNoStore()
	}
	records, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		data, err := r.Render(ctx, rec, true)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// Create hydrates a fresh object from b.Data and persists it together
// with its relations.
func (r *Resource) Create(ctx context.Context, b *bundle.Bundle) error {
	if err := r.FullHydrate(ctx, b); err != nil {
		return err
	}
	return r.Save(ctx, b)
}

// Update finds the single record matching the selectors, merges b.Data
// into it and persists the result, binding the record to b. No match
// reports ErrNotFound, several report ErrAmbiguousMatch.
func (r *Resource) Update(ctx context.Context, b *bundle.Bundle, selectors map[string]any) error {
	if !r.canUpdate {
		return fmt.Errorf("resource %s does not accept updates", r.name)
	}
	if r.store == nil {
		return r.errNoStore()
	}
	matches, err := r.store.Select(ctx, selectors)
	if err != nil {
		return err
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("%w: no %s matches the given values", field.ErrNotFound, r.name)
	case 1:
	default:
		return fmt.Errorf("%w: %d %s records match", field.ErrAmbiguousMatch, len(matches), r.name)
	}
	b.Obj = matches[0]
	if err := r.FullHydrate(ctx, b); err != nil {
		return err
	}
	return r.Save(ctx, b)
}

// Save validates the bundle, persists any freshly built to-one children,
// writes the object itself, then hydrates and persists its to-many
// children. The bundle's saved set keeps one object from being written
// twice across the whole graph.
func (r *Resource) Save(ctx context.Context, b *bundle.Bundle) error {
	if r.store == nil {
		return r.errNoStore()
	}
	if r.validator != nil {
		if err := r.validator.Validate(ctx, b); err != nil {
			return err
		}
	}
	if err := r.saveRelated(ctx, b); err != nil {
		return err
	}

	record, ok := b.Obj.(map[string]any)
	if !ok {
		return fmt.Errorf("resource %s: cannot persist %T, want map[string]any", r.name, b.Obj)
	}
	if id := r.Locator(record); id == "" || !b.Saved().Contains(id) {
		stored, err := r.store.Save(ctx, record)
		if err != nil {
			return fmt.Errorf("saving %s: %w", r.name, err)
		}
		b.Obj = stored
		if id := r.Locator(stored); id != "" {
			b.Saved().Mark(id)
		}
		r.logger.Debug("saved object",
			zap.String("resource", r.name),
			zap.String("locator", r.Locator(stored)))
	}

	return r.saveManyRelated(ctx, b)
}

// saveRelated persists the to-one children that arrived as nested data
// and are not yet written. Children referenced by locator already exist
// and are left alone.
func (r *Resource) saveRelated(ctx context.Context, b *bundle.Bundle) error {
	for _, f := range r.fields.Fields() {
		if !f.IsRelated() || f.IsToMany() || f.Readonly() || f.Attribute() == "" {
			continue
		}
		if f.Blank() {
			if _, ok := b.Data[f.Name()]; !ok {
				continue
			}
		}
		related, err := field.Attr(b.Obj, f.Attribute())
		if err != nil {
			return err
		}
		if !field.Truthy(related) {
			continue
		}
		data, ok := b.Data[f.Name()].(map[string]any)
		if !ok {
			continue
		}
		target, err := f.Target()
		if err != nil {
			return err
		}
		if id := target.Locator(related); id != "" && b.Saved().Contains(id) {
			continue
		}
		s, ok := target.(saver)
		if !ok {
			continue
		}
		child := bundle.New(
			bundle.WithObject(related),
			bundle.WithData(data),
			bundle.WithContext(ctx),
			bundle.WithSaved(b.Saved()),
		)
		if err := s.Save(ctx, child); err != nil {
			return err
		}
		if err := field.SetAttr(b.Obj, f.Attribute(), child.Obj); err != nil {
			return err
		}
	}
	return nil
}

// saveManyRelated hydrates each to-many field and persists its children.
// A declared back-reference is rewritten to the owner's primary key so
// stored records stay acyclic.
func (r *Resource) saveManyRelated(ctx context.Context, b *bundle.Bundle) error {
	for _, f := range r.fields.Fields() {
		if !f.IsToMany() || f.Readonly() {
			continue
		}
		children, err := f.HydrateMany(b)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			continue
		}
		target, err := f.Target()
		if err != nil {
			return err
		}
		s, canSave := target.(saver)
		ownerPK, err := field.Attr(b.Obj, r.pkField)
		if err != nil {
			return err
		}
		for _, child := range children {
			if f.RelatedName() != "" {
				if err := field.SetAttr(child.Obj, f.RelatedName(), ownerPK); err != nil {
					return err
				}
			}
			if !canSave {
				continue
			}
			if id := target.Locator(child.Obj); id != "" && b.Saved().Contains(id) {
				continue
			}
			if err := s.Save(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes the record a locator names.
func (r *Resource) Delete(ctx context.Context, locator string) error {
	pk, err := r.parseLocator(locator)
	if err != nil {
		return err
	}
	if r.store == nil {
		return r.errNoStore()
	}
	return r.store.Delete(ctx, pk)
}

func (r *Resource) errNoStore() error {
	return fmt.Errorf("resource %s has no store configured", r.name)
}
