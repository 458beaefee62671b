package ringlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushBelowCapacity(t *testing.T) {
	r := New[int](3)

	_, evicted := r.Push(1)
	assert.False(t, evicted)
	_, evicted = r.Push(2)
	assert.False(t, evicted)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{1, 2}, r.Items())
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}

	old, evicted := r.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1, old)

	old, evicted = r.Push(5)
	require.True(t, evicted)
	assert.Equal(t, 2, old)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := New[string](0)
	assert.Equal(t, DefaultCapacity, r.Cap())

	for i := 0; i < DefaultCapacity+1; i++ {
		r.Push("x")
	}
	assert.Equal(t, DefaultCapacity, r.Len())
}

func TestRing_ThousandAndFirstEvictsFirst(t *testing.T) {
	r := New[int](DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		r.Push(i)
	}

	old, evicted := r.Push(DefaultCapacity)
	require.True(t, evicted)
	assert.Equal(t, 0, old)

	items := r.Items()
	require.Len(t, items, DefaultCapacity)
	assert.Equal(t, 1, items[0])
	assert.Equal(t, DefaultCapacity, items[len(items)-1])
}

func TestFromSlice_KeepsMostRecent(t *testing.T) {
	r := FromSlice(2, []int{1, 2, 3, 4})
	assert.Equal(t, []int{3, 4}, r.Items())

	r.Push(5)
	assert.Equal(t, []int{4, 5}, r.Items())
}

func TestRing_EachStopsEarly(t *testing.T) {
	r := FromSlice(5, []int{1, 2, 3, 4})

	var seen []int
	r.Each(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}
