package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrant-api/hydrant/field"
)

func TestMemStoreDefaultsPrimaryKey(t *testing.T) {
	store := NewMemStore("")

	saved, err := store.Save(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved["id"])
}

func TestMemStoreSeedAndAll(t *testing.T) {
	store := NewMemStore("id")
	require.NoError(t, store.Seed(
		map[string]any{"id": "1", "name": "Ada"},
		map[string]any{"id": "2", "name": "Grace"},
		map[string]any{"name": "Barbara"},
	))

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Ada", all[0]["name"])
	assert.Equal(t, "Grace", all[1]["name"])
	assert.Equal(t, "Barbara", all[2]["name"])
	assert.NotEmpty(t, all[2]["id"])
}

func TestMemStoreSelectMatchesAcrossTypes(t *testing.T) {
	store := NewMemStore("id")
	require.NoError(t, store.Seed(
		map[string]any{"id": 42, "name": "Ada", "active": true},
		map[string]any{"id": 43, "name": "Grace", "active": false},
	))
	ctx := context.Background()

	// String-form comparison lets a text selector find a numeric key.
	matched, err := store.Select(ctx, map[string]any{"id": "42"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Ada", matched[0]["name"])

	matched, err = store.Select(ctx, map[string]any{"active": true})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Ada", matched[0]["name"])

	matched, err = store.Select(ctx, map[string]any{"name": "Grace", "active": false})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Grace", matched[0]["name"])

	matched, err = store.Select(ctx, map[string]any{"name": "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMemStoreSelectRejectsNonScalars(t *testing.T) {
	store := NewMemStore("id")
	ctx := context.Background()

	_, err := store.Select(ctx, map[string]any{"profile": map[string]any{}})
	assert.ErrorIs(t, err, field.ErrInvalidSelector)

	_, err = store.Select(ctx, map[string]any{"tags": []string{"go"}})
	assert.ErrorIs(t, err, field.ErrInvalidSelector)
}

func TestMemStoreSaveCopies(t *testing.T) {
	store := NewMemStore("id")
	ctx := context.Background()

	record := map[string]any{"id": "1", "name": "Ada"}
	saved, err := store.Save(ctx, record)
	require.NoError(t, err)

	// Mutating either side leaves the stored record alone.
	record["name"] = "mutated input"
	saved["name"] = "mutated output"

	matched, err := store.Select(ctx, map[string]any{"id": "1"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Ada", matched[0]["name"])
}

func TestMemStoreSaveNil(t *testing.T) {
	store := NewMemStore("id")

	_, err := store.Save(context.Background(), nil)
	assert.Error(t, err)
}

func TestMemStoreUpsertKeepsOrder(t *testing.T) {
	store := NewMemStore("id")
	require.NoError(t, store.Seed(
		map[string]any{"id": "1", "name": "Ada"},
		map[string]any{"id": "2", "name": "Grace"},
	))
	ctx := context.Background()

	_, err := store.Save(ctx, map[string]any{"id": "1", "name": "Ada Lovelace"})
	require.NoError(t, err)

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ada Lovelace", all[0]["name"])
	assert.Equal(t, "Grace", all[1]["name"])
}

func TestMemStoreDelete(t *testing.T) {
	store := NewMemStore("id")
	require.NoError(t, store.Seed(
		map[string]any{"id": "1", "name": "Ada"},
		map[string]any{"id": "2", "name": "Grace"},
		map[string]any{"id": "3", "name": "Barbara"},
	))
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "2"))
	assert.Equal(t, 2, store.Len())

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", all[0]["name"])
	assert.Equal(t, "Barbara", all[1]["name"])

	err = store.Delete(ctx, "2")
	assert.ErrorIs(t, err, field.ErrNotFound)
}
