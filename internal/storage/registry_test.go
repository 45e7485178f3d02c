package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a, err := New(MemoryPath, WithRegistry(r), WithKey("a"))
	require.NoError(t, err)
	b, err := New(MemoryPath, WithRegistry(r), WithKey("b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	t.Run("release ignores replaced entries", func(t *testing.T) {
		other, err := New(MemoryPath, WithRegistry(nil))
		require.NoError(t, err)
		r.Release("b", other)
		got, ok := r.Get("b")
		require.True(t, ok)
		assert.Same(t, b, got)
	})

	t.Run("current slot", func(t *testing.T) {
		_, ok := r.Current()
		assert.False(t, ok)

		r.SetCurrent(a)
		cur, ok := r.Current()
		require.True(t, ok)
		assert.Same(t, a, cur)

		require.NoError(t, a.Close())
		_, ok = r.Current()
		assert.False(t, ok, "closing the current store empties the slot")
		_, ok = r.Get("a")
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		r.SetCurrent(b)
		r.ClearCurrent()
		_, ok := r.Current()
		assert.False(t, ok)

		r.Clear("b")
		assert.Empty(t, r.Keys())
	})
}
