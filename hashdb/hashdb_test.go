package hashdb

import (
	"testing"

	"github.com/iParadigms/frontier/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStoreInterface(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	_, found, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set([]byte("a"), []byte{0xde, 0xad, 0xbe, 0xef}))
	digest, found, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, digest)

	require.NoError(t, s.Set([]byte("a"), []byte{0x01}))
	digest, _, err = s.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, digest)

	require.NoError(t, s.Delete([]byte("a")))
	_, found, err = s.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHashStoreClear(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.Set([]byte("a"), []byte{0x01}))
	require.NoError(t, s.Set([]byte("b"), []byte{0x02}))
	require.NoError(t, s.Clear())

	_, found, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)
}
