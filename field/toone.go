package field

import (
	"fmt"

	"github.com/hydrant-api/hydrant/bundle"
)

// ToOne declares a relation carrying a single related object. The target
// is a Resource, a registered resource name, or Self; attribute is the
// path on the owning object that holds the related object.
func ToOne(target any, attribute string, opts ...Option) *Field {
	return newRelation(relToOne, target, attribute, opts...)
}

func (f *Field) dehydrateToOne(b *bundle.Bundle, forList bool) (any, error) {
	var (
		foreign any
		parent  any
		segment string
	)

	switch {
	case f.attrFunc != nil:
		v, err := f.attrFunc(b)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		foreign = v
		parent = b.Obj
		segment = f.name
	case f.hasAttr:
		v, p, seg, err := f.attr.walkRelation(b.Obj)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		foreign, parent, segment = v, p, seg
	}

	if !truthy(foreign) {
		if f.null {
			return nil, nil
		}
		return nil, &AccessError{Field: f.name, Segment: segment, Parent: parent}
	}

	target, err := f.Target()
	if err != nil {
		return nil, err
	}
	return f.dehydrateRelated(b, target, foreign, forList)
}
