// Package bundle defines the transient carrier passed through every
// extraction and injection call. A Bundle pairs the domain object being
// processed with its flat representation and the ambient operation context.
// Bundles are created fresh per operation and never reused across requests.
package bundle

import "context"

// Bundle is the per-operation context for one object.
//
// Obj is a borrowed reference to the domain object; the engine never copies
// it. Data is the owned representation map, keyed by field name. RelatedObj
// and RelatedName form the parent back-pointer used during nested injection
// so a child can resolve its parent without a round trip.
type Bundle struct {
	Obj  any
	Data map[string]any

	RelatedObj  any
	RelatedName string

	ctx   context.Context
	saved *SavedSet
}

// Option configures a Bundle at construction.
type Option func(*Bundle)

// WithObject sets the domain object the bundle is bound to.
func WithObject(obj any) Option {
	return func(b *Bundle) { b.Obj = obj }
}

// WithData sets the representation data for the bundle.
func WithData(data map[string]any) Option {
	return func(b *Bundle) { b.Data = data }
}

// WithContext sets the operation context carried by the bundle.
func WithContext(ctx context.Context) Option {
	return func(b *Bundle) { b.ctx = ctx }
}

// WithRelated attaches the parent object and the linking field name used
// during nested injection.
func WithRelated(obj any, name string) Option {
	return func(b *Bundle) {
		b.RelatedObj = obj
		b.RelatedName = name
	}
}

// WithSaved shares an existing saved-object set with the bundle. Every
// bundle spawned within one nested operation must share the same set.
func WithSaved(s *SavedSet) Option {
	return func(b *Bundle) { b.saved = s }
}

// New creates a bundle. Without options it carries an empty data map, a
// background context, and a fresh saved-object set.
func New(opts ...Option) *Bundle {
	b := &Bundle{}
	for _, opt := range opts {
		opt(b)
	}
	if b.Data == nil {
		b.Data = make(map[string]any)
	}
	if b.saved == nil {
		b.saved = NewSavedSet()
	}
	return b
}

// Context returns the operation context, defaulting to context.Background.
func (b *Bundle) Context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// Saved returns the saved-object set shared across this operation's tree.
func (b *Bundle) Saved() *SavedSet {
	if b.saved == nil {
		b.saved = NewSavedSet()
	}
	return b.saved
}

// SavedSet tracks which objects have already been persisted during one
// nested operation, so deep recursive creation does not repeat side effects.
// It is scoped to a single operation's call tree and passed down, never
// copied, through every nested bundle the operation spawns.
type SavedSet struct {
	seen map[string]struct{}
}

// NewSavedSet creates an empty saved-object set.
func NewSavedSet() *SavedSet {
	return &SavedSet{seen: make(map[string]struct{})}
}

// Mark records an identifier as saved. It returns true if the identifier
// was not already present.
func (s *SavedSet) Mark(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains reports whether the identifier has been marked.
func (s *SavedSet) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of marked identifiers.
func (s *SavedSet) Len() int {
	return len(s.seen)
}
