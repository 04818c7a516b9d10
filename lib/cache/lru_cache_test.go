package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	lru := NewLRU[int](2)

	lru.Put("a", 1)
	lru.Put("b", 2)

	// Touch "a" so "b" is the eviction candidate.
	_, ok := lru.Get("a")
	require.True(t, ok)

	lru.Put("c", 3)
	assert.Equal(t, 2, lru.Len())

	_, ok = lru.Get("b")
	assert.False(t, ok)

	v, ok := lru.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUPutReplacesExistingKey(t *testing.T) {
	lru := NewLRU[int](2)

	lru.Put("a", 1)
	lru.Put("a", 2)

	v, ok := lru.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, lru.Len())
}
