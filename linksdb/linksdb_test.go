package linksdb

import (
	"testing"

	"github.com/iParadigms/frontier/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksStoreInterface(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.Add([]byte("a"), []byte("b"), 1.0, 2.0))

	w1, w2, found, err := s.Get([]byte("a"), []byte("b"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, w1)
	assert.Equal(t, 2.0, w2)

	_, _, found, err = s.Get([]byte("a"), []byte("c"))
	require.NoError(t, err)
	assert.False(t, found)

	// Add is idempotent: a second Add with different weights is ignored.
	require.NoError(t, s.Add([]byte("a"), []byte("b"), 9.0, 9.0))
	w1, w2, _, err = s.Get([]byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, w1)
	assert.Equal(t, 2.0, w2)

	require.NoError(t, s.Set([]byte("a"), []byte("b"), 5.0, 6.0))
	w1, w2, _, err = s.Get([]byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, 5.0, w1)
	assert.Equal(t, 6.0, w2)

	require.NoError(t, s.Delete([]byte("a"), []byte("b")))
	_, _, found, err = s.Get([]byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLinksStoreDistinctFromReverseEdge(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.Add([]byte("a"), []byte("b"), 1.0, 1.0))
	require.NoError(t, s.Add([]byte("b"), []byte("a"), 2.0, 2.0))

	w1, _, found, err := s.Get([]byte("a"), []byte("b"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, w1)

	w1, _, found, err = s.Get([]byte("b"), []byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.0, w1)
}

func TestLinksStoreClearAndCount(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.Add([]byte("a"), []byte("b"), 1.0, 1.0))
	require.NoError(t, s.Add([]byte("a"), []byte("c"), 1.0, 1.0))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Clear())
	count, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
