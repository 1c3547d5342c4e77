package field

import "fmt"

// Set is an ordered collection of named field descriptors. Declaration
// order is the iteration order everywhere a resource renders or hydrates,
// so representations come out stable.
type Set struct {
	order  []string
	byName map[string]*Field
}

// NewSet returns an empty field set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Field)}
}

// Add declares a field under the given representation key. The key
// becomes the field's name; declaring the same key twice is an error.
func (s *Set) Add(name string, f *Field) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("field %q: descriptor is nil", name)
	}
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("field %q is already declared", name)
	}
	f.setName(name)
	s.byName[name] = f
	s.order = append(s.order, name)
	return nil
}

// Get looks a field up by name.
func (s *Set) Get(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Names returns the field names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Fields returns the descriptors in declaration order.
func (s *Set) Fields() []*Field {
	fields := make([]*Field, 0, len(s.order))
	for _, name := range s.order {
		fields = append(fields, s.byName[name])
	}
	return fields
}

// Len reports how many fields are declared.
func (s *Set) Len() int {
	return len(s.order)
}

// Bind attaches every field to its owning resource and hands relations
// the resolver they use for name targets. Self relations settle on the
// owner here.
func (s *Set) Bind(owner Resource, resolver Resolver) {
	for _, name := range s.order {
		s.byName[name].bind(owner, resolver)
	}
}
