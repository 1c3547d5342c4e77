package field

import (
	"context"

	"github.com/hydrant-api/hydrant/bundle"
)

// Resource is the contract a field descriptor requires of the resource
// that owns it and of the resources its relations point at. The concrete
// implementation lives elsewhere; the descriptor engine only drives the
// operations named here.
type Resource interface {
	// Name identifies the resource within a registry.
	Name() string

	// PrimaryKey names the attribute that carries an object's identity.
	PrimaryKey() string

	// Fields exposes the resource's descriptor set in declaration order.
	Fields() *Set

	// Locator renders a stable textual reference for obj, used when a
	// relation is serialized without embedding. An object with no
	// identity yields the empty string.
	Locator(obj any) string

	// ResolveLocator loads the object a locator refers to. A locator that
	// matches nothing reports ErrNotFound.
	ResolveLocator(ctx context.Context, locator string) (any, error)

	// FullDehydrate renders b.Obj into b.Data, one entry per visible
	// field. forList selects the list rendering of the resource.
	FullDehydrate(ctx context.Context, b *bundle.Bundle, forList bool) error

	// FullHydrate builds b.Obj from b.Data without persisting it.
	FullHydrate(ctx context.Context, b *bundle.Bundle) error

	// CanUpdate reports whether the resource accepts lookup-and-modify
	// requests from related data.
	CanUpdate() bool

	// Update finds the single object matching the selectors, merges
	// b.Data into it and persists the result, binding the object to b.
	// No match reports ErrNotFound, several report ErrAmbiguousMatch,
	// and selectors the backing store cannot apply report
	// ErrInvalidSelector.
	Update(ctx context.Context, b *bundle.Bundle, selectors map[string]any) error
}

// Resolver turns a registered resource name into the Resource it names.
// Relation descriptors declared with a string target defer to a Resolver
// the first time the target is needed.
type Resolver interface {
	Resolve(name string) (Resource, error)
}

// Collection is an unmaterialized to-many attribute value. A collection
// found at a relation's attribute path is asked for its members rather
// than iterated directly.
type Collection interface {
	All(ctx context.Context) ([]any, error)
}
