package graph

import (
	"sort"
	"testing"

	"github.com/iParadigms/frontier/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pid(s string) []byte { return []byte(s) }

func sortedStrings(ids [][]byte) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	sort.Strings(out)
	return out
}

// buildGraph1 mirrors test_opic.py's create_test_graph_1:
//
//	a ----> b ---> d
//	 \            ^
//	  \           |
//	   ---> c-----+
func buildGraph1(t *testing.T, s *Store) {
	t.Helper()
	for _, n := range []string{"a", "b", "c", "d"} {
		_, err := s.AddNode(pid(n))
		require.NoError(t, err)
	}
	_, err := s.AddEdge(pid("a"), pid("b"), 0, 0)
	require.NoError(t, err)
	_, err = s.AddEdge(pid("a"), pid("c"), 0, 0)
	require.NoError(t, err)
	_, err = s.AddEdge(pid("b"), pid("d"), 0, 0)
	require.NoError(t, err)
	_, err = s.AddEdge(pid("c"), pid("d"), 0, 0)
	require.NoError(t, err)
}

func TestGraphStoreInterface(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	buildGraph1(t, s)

	has, err := s.HasNode(pid("a"))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasNode(pid("x"))
	require.NoError(t, err)
	assert.False(t, has)

	succA, err := s.Successors(pid("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, sortedStrings(succA))

	succB, err := s.Successors(pid("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, sortedStrings(succB))

	succD, err := s.Successors(pid("d"))
	require.NoError(t, err)
	assert.Empty(t, succD)

	predA, err := s.Predecessors(pid("a"))
	require.NoError(t, err)
	assert.Empty(t, predA)

	predB, err := s.Predecessors(pid("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sortedStrings(predB))

	predD, err := s.Predecessors(pid("d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, sortedStrings(predD))

	require.NoError(t, s.DeleteNode(pid("b")))
	succA, err = s.Successors(pid("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sortedStrings(succA))

	predD, err = s.Predecessors(pid("d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sortedStrings(predD))
}

func TestAddEdgeIdempotent(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	added, err := s.AddEdge(pid("a"), pid("b"), 1, 2)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddEdge(pid("a"), pid("b"), 1, 2)
	require.NoError(t, err)
	assert.False(t, added)

	w1, w2, found, err := s.EdgeWeights(pid("a"), pid("b"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, w1)
	assert.Equal(t, 2.0, w2)
}

func TestAddNodeIdempotent(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	added, err := s.AddNode(pid("a"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddNode(pid("a"))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestPageIDsWithEmbeddedZeroByte(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)

	a := []byte{0x00, 'x'}
	b := []byte{'y', 0x00}

	_, err = s.AddEdge(a, b, 0, 0)
	require.NoError(t, err)

	succ, err := s.Successors(a)
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Equal(t, b, succ[0])
}

func TestClear(t *testing.T) {
	s, err := Open(store.NewMemory())
	require.NoError(t, err)
	buildGraph1(t, s)
	require.NoError(t, s.Clear())

	has, err := s.HasNode(pid("a"))
	require.NoError(t, err)
	assert.False(t, has)
}
