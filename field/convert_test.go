package field

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerVal struct{}

func (stringerVal) String() string { return "stringy" }

type fileVal struct{ url string }

func (f fileVal) URL() string { return f.url }

func TestConvertNilPassesEveryKind(t *testing.T) {
	for _, kind := range allKinds {
		v, err := Convert(kind, "f", nil)
		require.NoError(t, err, "kind %s", kind)
		assert.Nil(t, v, "kind %s", kind)
	}
}

func TestConvertString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"hello", "hello"},
		{[]byte("bytes"), "bytes"},
		{stringerVal{}, "stringy"},
		{42, "42"},
		{2.5, "2.5"},
	}
	for _, tt := range tests {
		v, err := Convert(KindString, "f", tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}
}

func TestConvertInteger(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{42, 42},
		{int32(7), 7},
		{uint16(9), 9},
		{int64(-3), -3},
		{3.9, 3},
		{float32(2), 2},
		{true, 1},
		{false, 0},
		{"17", 17},
		{" 17 ", 17},
		{json.Number("12"), 12},
	}
	for _, tt := range tests {
		v, err := Convert(KindInteger, "count", tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, v, "input %v", tt.in)
	}

	_, err := Convert(KindInteger, "count", "abc")
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
	assert.Contains(t, err.Error(), `"count"`)

	_, err = Convert(KindInteger, "count", struct{}{})
	assert.True(t, IsConversionError(err))
}

func TestConvertFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{2.5, 2.5},
		{float32(0.5), 0.5},
		{3, 3},
		{int64(-4), -4},
		{"26.73", 26.73},
		{json.Number("1.5"), 1.5},
	}
	for _, tt := range tests {
		v, err := Convert(KindFloat, "price", tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, v, "input %v", tt.in)
	}

	_, err := Convert(KindFloat, "price", "cheap")
	assert.True(t, IsConversionError(err))
}

func TestConvertDecimal(t *testing.T) {
	v, err := Convert(KindDecimal, "total", "26.73")
	require.NoError(t, err)
	d, ok := v.(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("26.73")))

	v, err = Convert(KindDecimal, "total", 5)
	require.NoError(t, err)
	assert.True(t, v.(decimal.Decimal).Equal(decimal.NewFromInt(5)))

	existing := decimal.RequireFromString("1.01")
	v, err = Convert(KindDecimal, "total", existing)
	require.NoError(t, err)
	assert.True(t, v.(decimal.Decimal).Equal(existing))

	_, err = Convert(KindDecimal, "total", "one-and-fifty")
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
	assert.Contains(t, err.Error(), "not a valid decimal")
}

func TestConvertBoolIsTruthiness(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"", false},
		{"false", true}, // non-empty text is truthy, same as the data it mirrors
		{0, false},
		{1, true},
		{[]any{}, false},
		{[]any{1}, true},
	}
	for _, tt := range tests {
		v, err := Convert(KindBool, "flag", tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "input %#v", tt.in)
	}
}

func TestConvertList(t *testing.T) {
	v, err := Convert(KindList, "tags", []any{"a", 1})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, v)

	v, err = Convert(KindList, "tags", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, v)

	_, err = Convert(KindList, "tags", 42)
	assert.True(t, IsConversionError(err))
}

func TestConvertListCopies(t *testing.T) {
	src := []any{"a"}
	v, err := Convert(KindList, "tags", src)
	require.NoError(t, err)
	out := v.([]any)
	out[0] = "changed"
	assert.Equal(t, "a", src[0])
}

func TestConvertMap(t *testing.T) {
	v, err := Convert(KindMap, "meta", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, v)

	v, err = Convert(KindMap, "meta", map[string]int{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 3}, v)

	_, err = Convert(KindMap, "meta", map[int]string{1: "a"})
	assert.True(t, IsConversionError(err))
}

func TestConvertDate(t *testing.T) {
	v, err := Convert(KindDate, "when", "2010-11-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, time.November, 10, 0, 0, 0, 0, time.UTC), v)

	// Trailing time text is ignored by the date pattern.
	v, err = Convert(KindDate, "when", "2010-11-10T03:07:19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, time.November, 10, 0, 0, 0, 0, time.UTC), v)

	// Out-of-range components normalize instead of failing.
	v, err = Convert(KindDate, "when", "2010-13-40")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2011, time.February, 9, 0, 0, 0, 0, time.UTC), v)

	// Typed values pass through untouched.
	now := time.Date(2020, time.May, 4, 12, 0, 0, 0, time.UTC)
	v, err = Convert(KindDate, "when", now)
	require.NoError(t, err)
	assert.Equal(t, now, v)

	_, err = Convert(KindDate, "when", "not-a-date")
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
	assert.Contains(t, err.Error(), `"when"`)
	assert.Contains(t, err.Error(), "not-a-date")
}

func TestConvertDateTime(t *testing.T) {
	want := time.Date(2010, time.November, 10, 3, 7, 19, 0, time.UTC)

	v, err := Convert(KindDateTime, "at", "2010-11-10T03:07:19")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = Convert(KindDateTime, "at", "2010-11-10 03:07:19")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = Convert(KindDateTime, "at", "2010-11-10T03:07:19Z")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	_, err = Convert(KindDateTime, "at", "2010-11-10")
	assert.True(t, IsConversionError(err))
}

func TestConvertTime(t *testing.T) {
	v, err := Convert(KindTime, "opens", "20:05:23")
	require.NoError(t, err)
	assert.Equal(t, time.Date(0, time.January, 1, 20, 5, 23, 0, time.UTC), v)

	v, err = Convert(KindTime, "opens", "3:04 PM")
	require.NoError(t, err)
	assert.Equal(t, 15, v.(time.Time).Hour())

	_, err = Convert(KindTime, "opens", "late")
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
}

func TestConvertFile(t *testing.T) {
	v, err := Convert(KindFile, "photo", fileVal{url: "http://media.example.com/p.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "http://media.example.com/p.jpg", v)

	v, err = Convert(KindFile, "photo", "already-a-url")
	require.NoError(t, err)
	assert.Equal(t, "already-a-url", v)
}

func TestConvertIdempotent(t *testing.T) {
	samples := map[Kind]any{
		KindString:   "go",
		KindInteger:  7,
		KindFloat:    2.5,
		KindBool:     true,
		KindList:     []any{"a"},
		KindMap:      map[string]any{"k": "v"},
		KindDate:     "2010-11-10",
		KindDateTime: "2010-11-10T03:07:19",
		KindTime:     "08:00:00",
	}
	for kind, sample := range samples {
		once, err := Convert(kind, "f", sample)
		require.NoError(t, err, "kind %s", kind)
		twice, err := Convert(kind, "f", once)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, once, twice, "kind %s", kind)
	}
}

func TestHydrateCoerceDecimal(t *testing.T) {
	v, err := hydrateCoerce(KindDecimal, "total", "3.14")
	require.NoError(t, err)
	assert.True(t, v.(decimal.Decimal).Equal(decimal.RequireFromString("3.14")))

	existing := decimal.NewFromInt(2)
	v, err = hydrateCoerce(KindDecimal, "total", existing)
	require.NoError(t, err)
	assert.Equal(t, existing, v)

	// Empty values skip coercion entirely.
	v, err = hydrateCoerce(KindDecimal, "total", "")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestHydrateCoerceDate(t *testing.T) {
	v, err := hydrateCoerce(KindDate, "when", "2010-11-10T03:07:19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, time.November, 10, 0, 0, 0, 0, time.UTC), v)

	v, err = hydrateCoerce(KindDate, "when", "01/02/2006")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2006, time.January, 2, 0, 0, 0, 0, time.UTC), v)

	// Unparseable text is kept for the caller to reject downstream.
	v, err = hydrateCoerce(KindDate, "when", "garbage")
	require.NoError(t, err)
	assert.Equal(t, "garbage", v)

	now := time.Date(2020, time.May, 4, 12, 30, 0, 0, time.UTC)
	v, err = hydrateCoerce(KindDate, "when", now)
	require.NoError(t, err)
	assert.Equal(t, now, v)
}

func TestHydrateCoerceDateTime(t *testing.T) {
	v, err := hydrateCoerce(KindDateTime, "at", "2010-11-10 03:07:19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, time.November, 10, 3, 7, 19, 0, time.UTC), v)

	_, err = hydrateCoerce(KindDateTime, "at", "garbage")
	require.Error(t, err)
	assert.True(t, IsConversionError(err))

	_, err = hydrateCoerce(KindDateTime, "at", 42)
	require.Error(t, err)
	assert.True(t, IsConversionError(err))

	now := time.Now()
	v, err = hydrateCoerce(KindDateTime, "at", now)
	require.NoError(t, err)
	assert.Equal(t, now, v)
}

func TestHydrateCoerceTime(t *testing.T) {
	v, err := hydrateCoerce(KindTime, "opens", "22:30:00")
	require.NoError(t, err)
	assert.Equal(t, 22, v.(time.Time).Hour())

	_, err = hydrateCoerce(KindTime, "opens", "never")
	assert.True(t, IsConversionError(err))

	_, err = hydrateCoerce(KindTime, "opens", 42)
	assert.True(t, IsConversionError(err))
}

func TestHydrateCoerceLeavesOtherKinds(t *testing.T) {
	v, err := hydrateCoerce(KindString, "f", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = hydrateCoerce(KindInteger, "f", "17")
	require.NoError(t, err)
	assert.Equal(t, "17", v)
}

func TestTruthy(t *testing.T) {
	bio := "something"
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{(*testAuthor)(nil), false},
		{"", false},
		{"x", true},
		{0, false},
		{1, true},
		{0.0, false},
		{uint8(0), false},
		{false, false},
		{true, true},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{map[string]any{"a": 1}, true},
		{decimal.Decimal{}, false},
		{decimal.NewFromInt(1), true},
		{time.Time{}, false},
		{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{&testAuthor{}, true}, // a non-nil reference is an object, however empty
		{&bio, true},
		{testAuthor{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.in), "input %#v", tt.in)
	}
}

func TestIsNil(t *testing.T) {
	var typed *testAuthor
	var iface any = typed
	assert.True(t, isNil(nil))
	assert.True(t, isNil(typed))
	assert.True(t, isNil(iface))
	assert.True(t, isNil([]any(nil)))
	assert.False(t, isNil(0))
	assert.False(t, isNil(""))
	assert.False(t, isNil(&testAuthor{}))
}
