package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Run("equal sets report no change", func(t *testing.T) {
		assert.Nil(t, Diff(NewSet("/3/0/1", "/3/0/9"), NewSet("/3/0/9", "/3/0/1")))
		assert.Nil(t, Diff(NewSet(), NewSet()))
		assert.Nil(t, Diff(nil, NewSet()))
	})

	t.Run("from empty", func(t *testing.T) {
		d := Diff(NewSet(), NewSet("a", "b"))
		require.NotNil(t, d)
		assert.Equal(t, []string{"a", "b"}, d.Added.Sorted())
		assert.Empty(t, d.Removed)
	})

	t.Run("to empty", func(t *testing.T) {
		d := Diff(NewSet("a", "b"), NewSet())
		require.NotNil(t, d)
		assert.Empty(t, d.Added)
		assert.Equal(t, []string{"a", "b"}, d.Removed.Sorted())
	})

	t.Run("overlap", func(t *testing.T) {
		d := Diff(NewSet("a", "b", "c"), NewSet("b", "c", "d"))
		require.NotNil(t, d)
		assert.Equal(t, []string{"d"}, d.Added.Sorted())
		assert.Equal(t, []string{"a"}, d.Removed.Sorted())
	})

	t.Run("nil delta accessors", func(t *testing.T) {
		var d *Delta
		assert.Empty(t, d.AddedPaths())
		assert.Empty(t, d.RemovedPaths())
	})
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []string{"b", "c"}, Intersect(NewSet("a", "b", "c"), NewSet("b", "c", "d")).Sorted())
	assert.Empty(t, Intersect(NewSet("a"), NewSet("b")))
	assert.Empty(t, Intersect(nil, NewSet("b")))
}

func TestSetOps(t *testing.T) {
	s := NewSet("a", "b")
	c := s.Clone()
	c.Add("z")

	assert.False(t, s.Has("z"), "Clone must not alias")
	assert.Equal(t, []string{"a", "b", "c"}, s.Union(NewSet("c")).Sorted())
	assert.Equal(t, []string{"a"}, s.Minus(NewSet("b")).Sorted())
	assert.True(t, s.Equal(NewSet("b", "a")))
	assert.False(t, s.Equal(NewSet("a")))
}
