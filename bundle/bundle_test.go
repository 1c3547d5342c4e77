package bundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		b := New()

		assert.Nil(t, b.Obj)
		assert.NotNil(t, b.Data)
		assert.Empty(t, b.Data)
		assert.NotNil(t, b.Saved())
		assert.Equal(t, context.Background(), b.Context())
	})

	t.Run("with options", func(t *testing.T) {
		type key string
		ctx := context.WithValue(context.Background(), key("user"), "daniel")
		obj := map[string]any{"id": "1"}
		data := map[string]any{"title": "Hello"}
		parent := map[string]any{"id": "9"}

		b := New(
			WithObject(obj),
			WithData(data),
			WithContext(ctx),
			WithRelated(parent, "author"),
		)

		assert.Equal(t, obj, b.Obj)
		assert.Equal(t, data, b.Data)
		assert.Equal(t, ctx, b.Context())
		assert.Equal(t, parent, b.RelatedObj)
		assert.Equal(t, "author", b.RelatedName)
	})

	t.Run("shared saved set", func(t *testing.T) {
		parent := New()
		child := New(WithSaved(parent.Saved()))

		parent.Saved().Mark("posts:1")

		assert.True(t, child.Saved().Contains("posts:1"))
	})
}

func TestSavedSet(t *testing.T) {
	s := NewSavedSet()

	require.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("posts:1"))

	assert.True(t, s.Mark("posts:1"))
	assert.False(t, s.Mark("posts:1"), "second mark should report already present")

	assert.True(t, s.Contains("posts:1"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Mark("authors:2"))
	assert.Equal(t, 2, s.Len())
}
