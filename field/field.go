package field

import (
	"fmt"
	"sync"

	"github.com/hydrant-api/hydrant/bundle"
)

// Visibility says which renderings of a resource include a field.
type Visibility int

const (
	VisibleAll Visibility = iota
	VisibleList
	VisibleDetail
)

// String returns the lowercase name for the visibility.
func (v Visibility) String() string {
	switch v {
	case VisibleList:
		return "list"
	case VisibleDetail:
		return "detail"
	default:
		return "all"
	}
}

type relKind int

const (
	relNone relKind = iota
	relToOne
	relToMany
)

// gate decides embedding per bundle; with no predicate the fixed value
// applies.
type gate struct {
	fn    func(*bundle.Bundle) bool
	value bool
}

func (g gate) eval(b *bundle.Bundle) bool {
	if g.fn != nil {
		return g.fn(b)
	}
	return g.value
}

// Field describes how one representation entry maps onto object state:
// where the value lives (an attribute path or a computing func), how it
// converts (the Kind), and the policies that apply when data or state is
// absent. Relations carry a target resource on top of that. A Field has
// no per-operation state; every operation threads a Bundle instead.
type Field struct {
	name string
	kind Kind
	rel  relKind

	attr     attrPath
	attrFunc func(*bundle.Bundle) (any, error)
	hasAttr  bool

	def        any
	defFunc    func() any
	hasDefault bool

	null     bool
	blank    bool
	readonly bool
	unique   bool

	visibility Visibility
	visibleFn  func(*bundle.Bundle) bool

	helpText string

	owner Resource

	// Relation state. target holds what the descriptor was declared
	// with; resolved is the Resource it settles on, memoized by
	// resolveOnce.
	target        any
	relatedName   string
	embed         bool
	embedInList   gate
	embedInDetail gate
	selfRef       bool
	resolver      Resolver
	resolved      Resource
	resolveOnce   sync.Once
	resolveErr    error
}

// Option configures a Field at construction.
type Option func(*Field)

// WithAttribute sets the attribute path the field reads from and writes
// to, with segments separated by PathSeparator.
func WithAttribute(path string) Option {
	return func(f *Field) {
		f.attr = parsePath(path)
		f.hasAttr = path != ""
	}
}

// WithAttributeFunc computes the dehydrated value instead of reading an
// attribute path. Fields built this way are implicitly readonly for
// attribute lookups but still hydrate from their data key.
func WithAttributeFunc(fn func(*bundle.Bundle) (any, error)) Option {
	return func(f *Field) { f.attrFunc = fn }
}

// WithDefault supplies the value used when neither object state nor data
// provides one.
func WithDefault(value any) Option {
	return func(f *Field) {
		f.def = value
		f.hasDefault = true
	}
}

// WithDefaultFunc supplies a producer invoked each time the default is
// needed.
func WithDefaultFunc(fn func() any) Option {
	return func(f *Field) {
		f.defFunc = fn
		f.hasDefault = true
	}
}

// WithNull lets the field carry nil instead of failing when state is
// absent.
func WithNull() Option {
	return func(f *Field) { f.null = true }
}

// WithBlank lets hydration pass silently when the data key is absent.
func WithBlank() Option {
	return func(f *Field) { f.blank = true }
}

// WithReadonly excludes the field from hydration entirely.
func WithReadonly() Option {
	return func(f *Field) { f.readonly = true }
}

// WithUnique marks the field as identifying for related-data lookups.
func WithUnique() Option {
	return func(f *Field) { f.unique = true }
}

// WithVisibility restricts the field to the list or detail rendering.
func WithVisibility(v Visibility) Option {
	return func(f *Field) { f.visibility = v }
}

// WithVisibilityFunc decides per bundle whether the field is rendered.
func WithVisibilityFunc(fn func(*bundle.Bundle) bool) Option {
	return func(f *Field) { f.visibleFn = fn }
}

// WithHelpText overrides the kind's stock description.
func WithHelpText(s string) Option {
	return func(f *Field) { f.helpText = s }
}

// New builds a scalar descriptor of the given kind.
func New(kind Kind, opts ...Option) *Field {
	f := &Field{
		kind:          kind,
		embedInList:   gate{value: true},
		embedInDetail: gate{value: true},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the representation key the field was registered under.
func (f *Field) Name() string { return f.name }

// Kind returns the field's value kind.
func (f *Field) Kind() Kind { return f.kind }

// Attribute returns the raw attribute path, or "" when the field has
// none.
func (f *Field) Attribute() string {
	if !f.hasAttr {
		return ""
	}
	return f.attr.raw
}

// Null reports whether absent state dehydrates to nil.
func (f *Field) Null() bool { return f.null }

// Blank reports whether hydration tolerates an absent data key.
func (f *Field) Blank() bool { return f.blank }

// Readonly reports whether hydration skips the field.
func (f *Field) Readonly() bool { return f.readonly }

// Unique reports whether the field identifies objects in related-data
// lookups.
func (f *Field) Unique() bool { return f.unique }

// HasDefault reports whether a default value or producer was declared.
func (f *Field) HasDefault() bool { return f.hasDefault }

// Visibility returns the declared rendering restriction.
func (f *Field) Visibility() Visibility { return f.visibility }

// HelpText describes the field, falling back to the kind's stock text.
func (f *Field) HelpText() string {
	if f.helpText != "" {
		return f.helpText
	}
	return f.kind.HelpText()
}

// IsRelated reports whether the field points at another resource.
func (f *Field) IsRelated() bool { return f.rel != relNone }

// IsToMany reports whether the field carries a collection of related
// objects.
func (f *Field) IsToMany() bool { return f.rel == relToMany }

// RelatedName names the attribute on the target that points back at the
// owning object, or "" when no back-reference was declared.
func (f *Field) RelatedName() string { return f.relatedName }

// Embedded reports whether the relation renders full representations
// rather than locators.
func (f *Field) Embedded() bool { return f.embed }

// VisibleIn reports whether the field appears in the rendering selected
// by forList.
func (f *Field) VisibleIn(b *bundle.Bundle, forList bool) bool {
	if f.visibleFn != nil {
		return f.visibleFn(b)
	}
	switch f.visibility {
	case VisibleList:
		return forList
	case VisibleDetail:
		return !forList
	default:
		return true
	}
}

// bind attaches the descriptor to its owning resource. Relations pick up
// the resolver here, and a self target settles on the owner immediately.
func (f *Field) bind(owner Resource, resolver Resolver) {
	f.owner = owner
	if f.rel == relNone {
		return
	}
	f.resolver = resolver
	if f.selfRef && f.resolved == nil {
		f.resolved = owner
	}
}

// setName is called exactly once, by the Set the field joins.
func (f *Field) setName(name string) { f.name = name }

// defaultValue materializes the declared default, invoking a producer.
func (f *Field) defaultValue() any {
	if f.defFunc != nil {
		return f.defFunc()
	}
	return f.def
}

// Dehydrate extracts the field's value from b.Obj and converts it to
// representation form. forList selects which embed gate applies to
// relations.
func (f *Field) Dehydrate(b *bundle.Bundle, forList bool) (any, error) {
	switch f.rel {
	case relToOne:
		return f.dehydrateToOne(b, forList)
	case relToMany:
		return f.dehydrateToMany(b, forList)
	default:
		return f.dehydrateScalar(b)
	}
}

func (f *Field) dehydrateScalar(b *bundle.Bundle) (any, error) {
	if f.attrFunc != nil {
		v, err := f.attrFunc(b)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		return Convert(f.kind, f.name, v)
	}
	if !f.hasAttr {
		if f.hasDefault {
			return Convert(f.kind, f.name, f.defaultValue())
		}
		return nil, nil
	}

	current := b.Obj
	for _, seg := range f.attr.segments {
		next, err := getAttr(current, seg)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		if isNil(next) {
			if f.hasDefault {
				current = f.defaultValue()
				break
			}
			if f.null {
				return nil, nil
			}
			return nil, &AccessError{Field: f.name, Segment: seg, Parent: current}
		}
		current = next
	}

	v, err := callTerminal(current)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return Convert(f.kind, f.name, v)
}

// Hydrate pulls the field's value out of b.Data, falling back through the
// declared alternatives when the key is absent. To-one relations come
// back as a child *bundle.Bundle; to-many relations report nil here and
// hydrate through HydrateMany instead.
func (f *Field) Hydrate(b *bundle.Bundle) (any, error) {
	if f.rel == relToMany {
		return nil, nil
	}
	raw, err := f.hydrateRaw(b)
	if err != nil {
		return nil, err
	}
	if f.rel == relToOne {
		if isNil(raw) {
			return nil, nil
		}
		return f.buildRelated(b, raw, nil, "")
	}
	return hydrateCoerce(f.kind, f.name, raw)
}

func (f *Field) hydrateRaw(b *bundle.Bundle) (any, error) {
	if f.readonly {
		return nil, nil
	}
	if v, ok := b.Data[f.name]; ok {
		return v, nil
	}

	// The key is absent; fall through the declared alternatives.
	if f.rel == relToOne && !isNil(b.RelatedObj) {
		if (f.hasAttr && b.RelatedName == f.attr.raw) || b.RelatedName == f.name {
			return b.RelatedObj, nil
		}
	}
	if f.blank {
		return nil, nil
	}
	if f.hasAttr {
		if f.attr.isMulti() {
			return f.attr.walkTolerant(b.Obj)
		}
		v, err := getAttr(b.Obj, f.attr.raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		if truthy(v) {
			return v, nil
		}
	}
	if hasAttrOn(b.Obj, f.name) {
		v, err := getAttr(b.Obj, f.name)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		return v, nil
	}
	if f.hasDefault {
		return f.defaultValue(), nil
	}
	if f.null {
		return nil, nil
	}
	return nil, &AccessError{Field: f.name}
}
