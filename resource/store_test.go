package resource

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/hydrant-api/hydrant/field"
)

func TestValidateSelectors(t *testing.T) {
	ok := map[string]any{
		"id":      "42",
		"count":   7,
		"rating":  decimal.New(45, -1),
		"active":  true,
		"born":    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"nothing": nil,
	}
	assert.NoError(t, ValidateSelectors(ok))
	assert.NoError(t, ValidateSelectors(nil))

	for name, bad := range map[string]any{
		"map":     map[string]any{"a": 1},
		"slice":   []string{"a"},
		"array":   [2]int{1, 2},
		"pointer": &struct{}{},
		"func":    func() {},
	} {
		err := ValidateSelectors(map[string]any{name: bad})
		assert.ErrorIs(t, err, field.ErrInvalidSelector, name)
		assert.Contains(t, err.Error(), name)
	}
}

func TestMatchesSelectors(t *testing.T) {
	record := map[string]any{"id": 42, "name": "Ada", "active": true, "gone": nil}

	assert.True(t, MatchesSelectors(record, nil))
	assert.True(t, MatchesSelectors(record, map[string]any{"id": "42"}))
	assert.True(t, MatchesSelectors(record, map[string]any{"id": 42, "name": "Ada"}))
	assert.True(t, MatchesSelectors(record, map[string]any{"active": "true"}))
	assert.True(t, MatchesSelectors(record, map[string]any{"gone": nil}))

	assert.False(t, MatchesSelectors(record, map[string]any{"id": 43}))
	assert.False(t, MatchesSelectors(record, map[string]any{"name": "ada"}))
	assert.False(t, MatchesSelectors(record, map[string]any{"missing": "x"}))
	assert.False(t, MatchesSelectors(record, map[string]any{"name": nil}))
}
