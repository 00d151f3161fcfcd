package hitsdb

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sc(hh, hc, hl, ah, ac, al float64) frontier.HitsScore {
	return frontier.HitsScore{HHistory: hh, HCash: hc, HLast: hl, AHistory: ah, ACash: ac, ALast: al}
}

// TestHitsDBInterface mirrors test_opic.py's _test_hits_db.
func TestHitsDBInterface(t *testing.T) {
	db, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, db.Add([]byte("a"), sc(1, 2, 0, 3, 4, 0)))
	require.NoError(t, db.Add([]byte("b"), sc(5, 5, 0, 5, 5, 0)))
	require.NoError(t, db.Add([]byte("c"), sc(9, 8, 0, 7, 6, 0)))

	aGet, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, aGet.HHistory)
	assert.Equal(t, 2.0, aGet.HCash)
	assert.Equal(t, 3.0, aGet.AHistory)
	assert.Equal(t, 4.0, aGet.ACash)

	bGet, _, err := db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, 5.0, bGet.HHistory)

	contains, err := db.Contains([]byte("a"))
	require.NoError(t, err)
	assert.True(t, contains)
	contains, err = db.Contains([]byte("x"))
	require.NoError(t, err)
	assert.False(t, contains)

	require.NoError(t, db.Set([]byte("b"), sc(-1, -2, 0, -3, -4, 0)))
	bGet, _, err = db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, -1.0, bGet.HHistory)
	assert.Equal(t, -2.0, bGet.HCash)
	assert.Equal(t, -3.0, bGet.AHistory)
	assert.Equal(t, -4.0, bGet.ACash)

	require.NoError(t, db.Delete([]byte("a")))
	_, found, err = db.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Add([]byte("0"), sc(0, 0.1, 0, 0, 0.2, 0)))
	require.NoError(t, db.Add([]byte("1"), sc(0, 1.1, 0, 0, 1.2, 0)))
	require.NoError(t, db.Add([]byte("2"), sc(0, 2.1, 0, 0, 2.2, 0)))

	require.NoError(t, db.IncreaseHCash([]frontier.PageID{[]byte("0"), []byte("1"), []byte("2")}, 0.5))
	require.NoError(t, db.IncreaseACash([]frontier.PageID{[]byte("0"), []byte("1"), []byte("2")}, 0.5))

	assertNear(t, db, "0", 0.6, 0.7)
	assertNear(t, db, "1", 1.6, 1.7)
	assertNear(t, db, "2", 2.6, 2.7)

	require.NoError(t, db.IncreaseAllCash(1.0, 2.0))

	assertNear(t, db, "0", 1.6, 2.7)
	assertNear(t, db, "1", 2.6, 3.7)
	assertNear(t, db, "2", 3.6, 4.7)

	require.NoError(t, db.Set([]byte("0"), sc(1, 2, 1, 3, 1, 4)))
	zeroGet, _, err := db.Get([]byte("0"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, zeroGet.HHistory)
	assert.Equal(t, 2.0, zeroGet.HCash)
	assert.Equal(t, 1.0, zeroGet.HLast)
	assert.Equal(t, 3.0, zeroGet.AHistory)
	assert.Equal(t, 1.0, zeroGet.ACash)
	assert.Equal(t, 4.0, zeroGet.ALast)

	require.NoError(t, db.IncreaseHCash([]frontier.PageID{[]byte("0"), []byte("1"), []byte("2")}, 0.1))
	require.NoError(t, db.IncreaseACash([]frontier.PageID{[]byte("0"), []byte("1"), []byte("2")}, 0.1))

	assertNear(t, db, "0", 2.1, 1.1)
	assertNear(t, db, "1", 2.7, 3.8)
	assertNear(t, db, "2", 3.7, 4.8)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func assertNear(t *testing.T, db *Store, id string, hCash, aCash float64) {
	t.Helper()
	got, found, err := db.Get([]byte(id))
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, hCash, got.HCash, 1e-6)
	assert.InDelta(t, aCash, got.ACash, 1e-6)
}

func TestHighestCashOrdering(t *testing.T) {
	db, err := Open(store.NewMemory())
	require.NoError(t, err)

	require.NoError(t, db.Add([]byte("low"), sc(0, 1, 0, 0, 9, 0)))
	require.NoError(t, db.Add([]byte("mid"), sc(0, 5, 0, 0, 5, 0)))
	require.NoError(t, db.Add([]byte("high"), sc(0, 9, 0, 0, 1, 0)))

	top, err := db.HighestHCash(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "high", string(top[0].PageID))
	assert.Equal(t, "mid", string(top[1].PageID))

	topA, err := db.HighestACash(2)
	require.NoError(t, err)
	require.Len(t, topA, 2)
	assert.Equal(t, "low", string(topA[0].PageID))
}

func TestAddIsIdempotent(t *testing.T) {
	db, err := Open(store.NewMemory())
	require.NoError(t, err)
	require.NoError(t, db.Add([]byte("a"), sc(1, 1, 0, 1, 1, 0)))
	require.NoError(t, db.Add([]byte("a"), sc(99, 99, 99, 99, 99, 99)))

	got, found, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1.0, got.HHistory)
}

func TestCashDeltaRoundTripAgainstNaiveReference(t *testing.T) {
	// Testable property 6: with the delta trick, repeated IncreaseAllCash
	// calls must match a naive O(N) "touch every row" reference.
	db, err := Open(store.NewMemory())
	require.NoError(t, err)

	naive := map[string]float64{}
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.Add([]byte(id), sc(0, 1.0, 0, 0, 1.0, 0)))
		naive[id] = 1.0
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, db.IncreaseAllCash(0.3, 0))
		for id := range naive {
			naive[id] += 0.3
		}
	}

	for id, want := range naive {
		got, found, err := db.Get([]byte(id))
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, math.Abs(got.HCash-want) < 1e-9)
	}
}

func TestCloseAndReopenRoundTripsDeltas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hits.db")
	bolt, err := store.OpenBolt(path)
	require.NoError(t, err)

	db, err := Open(bolt)
	require.NoError(t, err)
	require.NoError(t, db.Add([]byte("a"), sc(0, 1, 0, 0, 1, 0)))
	require.NoError(t, db.IncreaseAllCash(2.5, -1.5))
	require.NoError(t, db.Close())
	require.NoError(t, bolt.Close())

	bolt2, err := store.OpenBolt(path)
	require.NoError(t, err)
	defer bolt2.Close()

	db2, err := Open(bolt2)
	require.NoError(t, err)
	got, found, err := db2.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 3.5, got.HCash, 1e-9)
	assert.InDelta(t, -0.5, got.ACash, 1e-9)
}
