// Package field implements the typed descriptor engine: named, reusable
// units of bidirectional conversion between domain objects and their flat
// representation. A Field couples a scalar kind, an attribute path, and
// default/null/readonly/visibility policy; relation fields add a lazily
// resolved target resource with an embed-versus-locator policy.
package field

import "fmt"

// Kind identifies the scalar conversion rule a field applies.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindDecimal
	KindBool
	KindList
	KindMap
	KindDate
	KindDateTime
	KindTime
	KindFile
	KindRelated
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindFile:
		return "file"
	case KindRelated:
		return "related"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "integer":
		return KindInteger, nil
	case "float":
		return KindFloat, nil
	case "decimal":
		return KindDecimal, nil
	case "boolean":
		return KindBool, nil
	case "list":
		return KindList, nil
	case "map":
		return KindMap, nil
	case "date":
		return KindDate, nil
	case "datetime":
		return KindDateTime, nil
	case "time":
		return KindTime, nil
	case "file":
		return KindFile, nil
	case "related":
		return KindRelated, nil
	default:
		return 0, fmt.Errorf("unknown field kind: %s", s)
	}
}

// HelpText returns the default human-readable description for the kind.
func (k Kind) HelpText() string {
	switch k {
	case KindString:
		return `String data. Ex: "Hello World"`
	case KindInteger:
		return "Integer data. Ex: 2673"
	case KindFloat:
		return "Floating point numeric data. Ex: 26.73"
	case KindDecimal:
		return "Fixed precision numeric data. Ex: 26.73"
	case KindBool:
		return "Boolean data. Ex: true"
	case KindList:
		return `A list of data. Ex: ["abc", 26.73, 8]`
	case KindMap:
		return `A mapping of data. Ex: {"price": 26.73, "name": "Daniel"}`
	case KindDate:
		return `A date as a string. Ex: "2010-11-10"`
	case KindDateTime:
		return `A date & time as a string. Ex: "2010-11-10T03:07:43"`
	case KindTime:
		return `A time as a string. Ex: "20:05:23"`
	case KindFile:
		return `A file URL as a string. Ex: "http://media.example.com/media/photos/my_photo.jpg"`
	case KindRelated:
		return "A related resource. Can be either a locator or a set of nested resource data."
	default:
		return ""
	}
}
