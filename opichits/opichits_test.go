package opichits

import (
	"testing"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/graph"
	"github.com/iParadigms/frontier/hitsdb"
	"github.com/iParadigms/frontier/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pid(s string) []byte { return []byte(s) }

// buildHubGraph mirrors test_opic.py's create_test_graph_2: node 0 is a hub
// linked to/from every other node, the outer ring is 1->2->3->4->1.
func buildHubGraph(t *testing.T, g *graph.Store) {
	t.Helper()
	for _, n := range []string{"0", "1", "2", "3", "4"} {
		_, err := g.AddNode(pid(n))
		require.NoError(t, err)
	}
	edges := [][2]string{
		{"0", "1"}, {"0", "2"}, {"0", "3"}, {"0", "4"},
		{"1", "0"}, {"1", "2"},
		{"2", "0"}, {"2", "3"},
		{"3", "0"}, {"3", "4"},
		{"4", "0"}, {"4", "1"},
	}
	for _, e := range edges {
		_, err := g.AddEdge(pid(e[0]), pid(e[1]), 0, 0)
		require.NoError(t, err)
	}
}

// TestHubRecognition mirrors test_opic.py's test_opic (S1).
func TestHubRecognition(t *testing.T) {
	db := store.NewMemory()
	g, err := graph.Open(db)
	require.NoError(t, err)
	buildHubGraph(t, g)

	h, err := hitsdb.Open(db)
	require.NoError(t, err)

	e, err := New(db, g, h, nil, Config{})
	require.NoError(t, err)

	_, _, err = e.Update(100)
	require.NoError(t, err)

	hRel0, aRel0, err := e.GetScores(pid("0"))
	require.NoError(t, err)
	assert.True(t, hRel0 >= 0.25 && hRel0 <= 0.30, "h_rel(0)=%v", hRel0)
	assert.True(t, aRel0 >= 0.25 && aRel0 <= 0.30, "a_rel(0)=%v", aRel0)

	for _, n := range []string{"1", "2", "3", "4"} {
		hRel, aRel, err := e.GetScores(pid(n))
		require.NoError(t, err)
		assert.True(t, hRel >= 0.15 && hRel <= 0.20, "h_rel(%s)=%v", n, hRel)
		assert.True(t, aRel >= 0.15 && aRel <= 0.20, "a_rel(%s)=%v", n, aRel)
	}
}

// TestCashConservation mirrors S6: on a closed cycle with no time window,
// total cash across real pages plus the virtual page is preserved.
func TestCashConservation(t *testing.T) {
	db := store.NewMemory()
	g, err := graph.Open(db)
	require.NoError(t, err)

	for _, n := range []string{"a", "b", "c"} {
		_, err := g.AddNode(pid(n))
		require.NoError(t, err)
	}
	_, err = g.AddEdge(pid("a"), pid("b"), 0, 0)
	require.NoError(t, err)
	_, err = g.AddEdge(pid("b"), pid("c"), 0, 0)
	require.NoError(t, err)
	_, err = g.AddEdge(pid("c"), pid("a"), 0, 0)
	require.NoError(t, err)

	h, err := hitsdb.Open(db)
	require.NoError(t, err)

	e, err := New(db, g, h, nil, Config{})
	require.NoError(t, err)

	initialTotal, err := totalCash(e, h)
	require.NoError(t, err)

	_, _, err = e.Update(50)
	require.NoError(t, err)

	finalTotal, err := totalCash(e, h)
	require.NoError(t, err)

	assert.InDelta(t, initialTotal, finalTotal, 1e-9)
}

func totalCash(e *Engine, h *hitsdb.Store) (float64, error) {
	total := e.virtual.HCash + e.virtual.ACash
	err := h.Iter(func(_ frontier.PageID, sc frontier.HitsScore) (bool, error) {
		total += sc.HCash + sc.ACash
		return true, nil
	})
	return total, err
}

func TestAddPageIdempotent(t *testing.T) {
	db := store.NewMemory()
	g, err := graph.Open(db)
	require.NoError(t, err)
	h, err := hitsdb.Open(db)
	require.NoError(t, err)
	e, err := New(db, g, h, nil, Config{})
	require.NoError(t, err)

	added, err := e.AddPage(pid("x"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.AddPage(pid("x"))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestZClampedNonNegativeAndBounded(t *testing.T) {
	assert.Equal(t, 0.0, z(0.0, 5))
	assert.Equal(t, 0.0, z(0.5, 0))

	for n := 1; n <= 10; n++ {
		for _, r := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
			val := z(r, n)
			assert.GreaterOrEqual(t, val, 0.0)
			assert.LessOrEqual(t, val, 1.0/float64(n)+1e-12)
		}
	}
}

// TestMarkUpdateForcesInclusionDespiteLowCash covers the maintainer-flagged
// gap: a page marked via MarkUpdate must be refreshed even when its cash
// would never rank it into a batch sized by BatchMultiplier alone.
func TestMarkUpdateForcesInclusionDespiteLowCash(t *testing.T) {
	db := store.NewMemory()
	g, err := graph.Open(db)
	require.NoError(t, err)
	buildHubGraph(t, g)
	h, err := hitsdb.Open(db)
	require.NoError(t, err)

	e, err := New(db, g, h, nil, Config{BatchMultiplier: 1})
	require.NoError(t, err)

	// Drive cash flow so the hub-graph pages accumulate cash well above the
	// default 1.0 a freshly added page starts with.
	_, _, err = e.Update(20)
	require.NoError(t, err)

	added, err := e.AddPage(pid("late"))
	require.NoError(t, err)
	require.True(t, added)
	e.MarkUpdate(pid("late"))

	hubUpdated, authUpdated, err := e.Update(1)
	require.NoError(t, err)

	assert.Contains(t, hubUpdated, frontier.PageID("late"))
	assert.Contains(t, authUpdated, frontier.PageID("late"))
}

func TestCloseAndReopenRestoresVirtualState(t *testing.T) {
	db := store.NewMemory()
	g, err := graph.Open(db)
	require.NoError(t, err)
	buildHubGraph(t, g)
	h, err := hitsdb.Open(db)
	require.NoError(t, err)

	e, err := New(db, g, h, nil, Config{})
	require.NoError(t, err)
	_, _, err = e.Update(10)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := New(db, g, h, nil, Config{})
	require.NoError(t, err)
	assert.InDelta(t, e.time, e2.time, 1e-12)
	assert.InDelta(t, e.virtual.HCash, e2.virtual.HCash, 1e-12)
	assert.InDelta(t, e.virtual.ACash, e2.virtual.ACash, 1e-12)
}
