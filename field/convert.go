package field

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Textual date forms are prefix-matched against fixed patterns; trailing
// text (timezone suffixes and the like) is ignored. Out-of-range components
// that fit the pattern normalize through time.Date rather than failing here.
var (
	dateRegex     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dateTimeRegex = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:T|\s+)(\d{2}):(\d{2}):(\d{2})`)
)

// FileValue is implemented by file-like values that expose a transport URL.
type FileValue interface {
	URL() string
}

type convertFunc func(name string, value any) (any, error)

// converters associates each kind with its scalar conversion rule. All
// dispatch goes through Convert.
var converters = map[Kind]convertFunc{
	KindString:   convertString,
	KindInteger:  convertInteger,
	KindFloat:    convertFloat,
	KindDecimal:  convertDecimal,
	KindBool:     convertBool,
	KindList:     convertList,
	KindMap:      convertMap,
	KindDate:     convertDate,
	KindDateTime: convertDateTime,
	KindTime:     convertTime,
	KindFile:     convertFile,
	KindRelated:  convertPassthrough,
}

// Convert coerces value according to the kind's conversion rule. Nil passes
// through every kind unchanged. The name is only used in error messages.
func Convert(kind Kind, name string, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	fn, ok := converters[kind]
	if !ok {
		return nil, fmt.Errorf("no converter for kind %d", int(kind))
	}
	return fn(name, value)
}

func convertString(_ string, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprintf("%v", value), nil
}

func convertInteger(name string, value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindInteger, Value: value, Err: err}
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindInteger, Value: value, Err: err}
		}
		return n, nil
	}
	return nil, &ConversionError{Field: name, Kind: KindInteger, Value: value}
}

func convertFloat(name string, value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindFloat, Value: value, Err: err}
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindFloat, Value: value, Err: err}
		}
		return f, nil
	}
	return nil, &ConversionError{Field: name, Kind: KindFloat, Value: value}
}

func convertDecimal(name string, value any) (any, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindDecimal, Value: value, Err: err}
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindDecimal, Value: value, Err: err}
		}
		return d, nil
	}
	return nil, &ConversionError{Field: name, Kind: KindDecimal, Value: value}
}

func convertBool(_ string, value any) (any, error) {
	return truthy(value), nil
}

func convertList(name string, value any) (any, error) {
	if v, ok := value.([]any); ok {
		out := make([]any, len(v))
		copy(out, v)
		return out, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, &ConversionError{Field: name, Kind: KindList, Value: value}
}

func convertMap(name string, value any) (any, error) {
	if v, ok := value.(map[string]any); ok {
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	return nil, &ConversionError{Field: name, Kind: KindMap, Value: value}
}

func convertDate(name string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		// Already-typed values pass through unchanged.
		return value, nil
	}
	m := dateRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, &ConversionError{Field: name, Kind: KindDate, Value: s}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func convertDateTime(name string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	m := dateTimeRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, &ConversionError{Field: name, Kind: KindDateTime, Value: s}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

func convertTime(name string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	t, err := parseClock(s)
	if err != nil {
		return nil, &ConversionError{Field: name, Kind: KindTime, Value: s, Err: err}
	}
	return t, nil
}

func convertFile(_ string, value any) (any, error) {
	if f, ok := value.(FileValue); ok {
		return f.URL(), nil
	}
	return value, nil
}

func convertPassthrough(_ string, value any) (any, error) {
	return value, nil
}

// parseClock parses a wall-clock string. The date components of the result
// are zero.
func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time of day", s)
}

// lenientLayouts is the parse set injection accepts for date and datetime
// text, wider than the strict extraction patterns.
var lenientLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
	"15:04:05",
}

func parseLenient(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date or time", s)
}

// hydrateCoerce normalizes the wire form of kinds whose representation is
// textual. It runs on whatever value the injection ladder produced.
func hydrateCoerce(kind Kind, name string, value any) (any, error) {
	if !truthy(value) {
		return value, nil
	}
	switch kind {
	case KindDecimal:
		if _, ok := value.(decimal.Decimal); ok {
			return value, nil
		}
		return convertDecimal(name, value)
	case KindDate:
		if _, ok := value.(time.Time); ok {
			return value, nil
		}
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		t, err := parseLenient(s)
		if err != nil {
			// Unparseable date text is kept as-is for the caller to reject.
			return value, nil
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	case KindDateTime:
		if _, ok := value.(time.Time); ok {
			return value, nil
		}
		s, ok := value.(string)
		if !ok {
			return nil, &ConversionError{Field: name, Kind: KindDateTime, Value: value}
		}
		t, err := parseLenient(s)
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindDateTime, Value: s, Err: err}
		}
		return t, nil
	case KindTime:
		if _, ok := value.(time.Time); ok {
			return value, nil
		}
		s, ok := value.(string)
		if !ok {
			return nil, &ConversionError{Field: name, Kind: KindTime, Value: value}
		}
		t, err := parseClock(s)
		if err != nil {
			return nil, &ConversionError{Field: name, Kind: KindTime, Value: s, Err: err}
		}
		return t, nil
	}
	return value, nil
}

// isNil reports whether the value is nil, including typed nils behind a
// non-nil interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Truthy reports whether a value counts as present under the engine's
// emptiness rules: nil, false, numeric zero, zero decimals and times, and
// empty strings, slices, maps, and arrays are empty; everything else,
// including non-nil pointers to zero structs, is present.
func Truthy(v any) bool {
	return truthy(v)
}

func truthy(v any) bool {
	if isNil(v) {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case decimal.Decimal:
		return !t.IsZero()
	case time.Time:
		return !t.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}
