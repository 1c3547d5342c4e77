package field

import (
	"fmt"
	"reflect"
	"strings"
)

// PathSeparator splits an attribute path into its traversal segments.
const PathSeparator = "__"

// attrPath is an attribute path with its segments precomputed at
// construction, so traversal never re-splits the path per call.
type attrPath struct {
	raw      string
	segments []string
}

func parsePath(s string) attrPath {
	return attrPath{raw: s, segments: strings.Split(s, PathSeparator)}
}

func (p attrPath) isMulti() bool {
	return len(p.segments) > 1
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// getAttr fetches one path segment from obj: a map entry, an exported
// struct field, or a zero-argument method, which is invoked. Identifier
// matching ignores case and underscores, so "created_at" finds CreatedAt.
// Missing segments yield nil rather than an error; a non-nil error comes
// only from an invoked accessor, and an accessor signalling ErrNotFound
// means the object the segment names does not exist.
func getAttr(obj any, segment string) (any, error) {
	if isNil(obj) {
		return nil, nil
	}
	if m, ok := obj.(map[string]any); ok {
		return m[segment], nil
	}

	v := reflect.ValueOf(obj)

	// Look for methods before dereferencing so pointer receivers are seen.
	if mv, ok := methodByAttr(v, segment); ok {
		return callValue(mv)
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		mv := v.MapIndex(reflect.ValueOf(segment))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		fv := v.FieldByNameFunc(func(name string) bool {
			return attrMatch(name, segment)
		})
		if fv.IsValid() && fv.CanInterface() {
			return fv.Interface(), nil
		}
		if mv, ok := methodByAttr(v, segment); ok {
			return callValue(mv)
		}
	}
	return nil, nil
}

// hasAttrOn reports whether obj exposes the segment at all, without
// invoking accessors. A present-but-nil map entry counts as exposed.
func hasAttrOn(obj any, segment string) bool {
	if isNil(obj) {
		return false
	}
	if m, ok := obj.(map[string]any); ok {
		_, present := m[segment]
		return present
	}
	v := reflect.ValueOf(obj)
	if _, ok := methodTypeByAttr(v.Type(), segment); ok {
		return true
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		return v.MapIndex(reflect.ValueOf(segment)).IsValid()
	case reflect.Struct:
		if _, ok := methodTypeByAttr(v.Type(), segment); ok {
			return true
		}
		return v.FieldByNameFunc(func(name string) bool {
			return attrMatch(name, segment)
		}).IsValid()
	}
	return false
}

// attrMatch reports whether a Go identifier corresponds to a path segment,
// ignoring case and underscores.
func attrMatch(goName, segment string) bool {
	return foldAttr(goName) == foldAttr(segment)
}

func foldAttr(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// methodTypeByAttr finds an exported method matching the segment whose
// signature takes no arguments and returns a value or a (value, error) pair.
func methodTypeByAttr(t reflect.Type, segment string) (reflect.Method, bool) {
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() || !attrMatch(m.Name, segment) {
			continue
		}
		// The receiver counts as the first in-parameter here.
		if m.Type.NumIn() != 1 || m.Type.NumOut() == 0 || m.Type.NumOut() > 2 {
			continue
		}
		if m.Type.NumOut() == 2 && !m.Type.Out(1).Implements(errType) {
			continue
		}
		return m, true
	}
	return reflect.Method{}, false
}

func methodByAttr(v reflect.Value, segment string) (reflect.Value, bool) {
	m, ok := methodTypeByAttr(v.Type(), segment)
	if !ok {
		return reflect.Value{}, false
	}
	return v.Method(m.Index), true
}

// callValue invokes a no-argument func value returning one value or a
// (value, error) pair.
func callValue(fn reflect.Value) (any, error) {
	out := fn.Call(nil)
	switch len(out) {
	case 1:
		return out[0].Interface(), nil
	case 2:
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
	return nil, nil
}

// callTerminal invokes value if it is a no-argument func, returning its
// result; any other value is returned unchanged.
func callTerminal(value any) (any, error) {
	if isNil(value) {
		return value, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Func {
		return value, nil
	}
	t := rv.Type()
	if t.NumIn() != 0 || t.NumOut() == 0 || t.NumOut() > 2 {
		return value, nil
	}
	if t.NumOut() == 2 && !t.Out(1).Implements(errType) {
		return value, nil
	}
	return callValue(rv)
}

// walkTolerant traverses every segment of the path, treating missing
// segments as nil and carrying on, and returns whatever the walk ends on.
func (p attrPath) walkTolerant(obj any) (any, error) {
	current := obj
	for _, seg := range p.segments {
		next, err := getAttr(current, seg)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// Attr resolves a full attribute path on obj, treating missing segments
// as nil. Terminal accessors are invoked; bare func values are not.
func Attr(obj any, path string) (any, error) {
	return parsePath(path).walkTolerant(obj)
}

// SetAttr assigns a single attribute on obj: a map entry or a settable
// struct field. The attribute name is used whole; paths are not walked on
// assignment.
func SetAttr(obj any, attr string, value any) error {
	if m, ok := obj.(map[string]any); ok {
		m[attr] = value
		return nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return fmt.Errorf("cannot set %q on a nil object", attr)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("cannot set %q: map keys of %T are not strings", attr, obj)
		}
		return setMapEntry(rv, attr, value)
	case reflect.Struct:
		fv := rv.FieldByNameFunc(func(name string) bool {
			return attrMatch(name, attr)
		})
		if !fv.IsValid() {
			return fmt.Errorf("no attribute %q on %T", attr, obj)
		}
		if !fv.CanSet() {
			return fmt.Errorf("attribute %q on %T is not settable", attr, obj)
		}
		return setValue(fv, attr, value)
	}
	return fmt.Errorf("cannot set attributes on %T", obj)
}

func setMapEntry(m reflect.Value, attr string, value any) error {
	elem := m.Type().Elem()
	if value == nil {
		m.SetMapIndex(reflect.ValueOf(attr), reflect.Zero(elem))
		return nil
	}
	vv := reflect.ValueOf(value)
	if !vv.Type().AssignableTo(elem) {
		if !vv.Type().ConvertibleTo(elem) {
			return fmt.Errorf("cannot store %T under %q", value, attr)
		}
		vv = vv.Convert(elem)
	}
	m.SetMapIndex(reflect.ValueOf(attr), vv)
	return nil
}

func setValue(fv reflect.Value, attr string, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	vv := reflect.ValueOf(value)
	if !vv.Type().AssignableTo(fv.Type()) {
		if !vv.Type().ConvertibleTo(fv.Type()) {
			return fmt.Errorf("cannot assign %T to attribute %q", value, attr)
		}
		vv = vv.Convert(fv.Type())
	}
	fv.Set(vv)
	return nil
}

// walkRelation resolves the attribute path for a relation. An accessor
// reporting ErrNotFound reads as an absent related object; traversal stops
// at the first empty value. The returned parent and segment say where the
// walk stopped, for error reporting.
func (p attrPath) walkRelation(obj any) (value any, parent any, segment string, err error) {
	value = obj
	for _, seg := range p.segments {
		parent = value
		segment = seg
		next, aerr := getAttr(value, seg)
		if aerr != nil {
			if IsNotFound(aerr) {
				return nil, parent, segment, nil
			}
			return nil, parent, segment, aerr
		}
		value = next
		if !truthy(value) {
			return value, parent, segment, nil
		}
	}
	return value, parent, segment, nil
}
