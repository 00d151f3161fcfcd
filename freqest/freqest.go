// Package freqest implements FreqEstimator (spec §4.5): an online estimator
// of a page's change frequency from the history of its refresh outcomes.
package freqest

import (
	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/updatesdb"
	lru "github.com/hashicorp/golang-lru"
)

// Estimator is the FreqEstimator contract. Implementations other than
// Simple may be swapped in; callers only depend on Frequency.
type Estimator interface {
	Add(p frontier.PageID) error
	Delete(p frontier.PageID) error
	Refresh(p frontier.PageID, changed bool) error
	Frequency(p frontier.PageID) (float64, bool, error)
}

// Clock returns the current time, in the same units the caller feeds to
// Refresh calls. Tests inject a manually-advanced Clock for determinism.
type Clock func() float64

// Simple tracks (first_seen, last_seen, n_updates) per page and reports
// n_updates / (last_seen - first_seen) as the estimated change frequency. An
// optional bounded LRU front-ends the store for reads, the same read-through
// shape as the teacher's domainCache: repeated Frequency calls on a hot page
// are served from the cache. Add and Refresh always write the store and drop
// the page's cached row.
type Simple struct {
	store *updatesdb.Store
	clock Clock
	cache *lru.Cache
}

// NewSimple builds a Simple estimator over store, using clock to timestamp
// Add and Refresh calls.
func NewSimple(store *updatesdb.Store, clock Clock) *Simple {
	return &Simple{store: store, clock: clock}
}

// NewSimpleWithCache builds a Simple estimator backed by an LRU of at most
// maxEntries recently-touched rows in front of store.
func NewSimpleWithCache(store *updatesdb.Store, clock Clock, maxEntries int) (*Simple, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Simple{store: store, clock: clock, cache: cache}, nil
}

// Add registers p with first_seen = last_seen = clock(), n_updates = 0.
// Re-adding an already-known page is a no-op (UpdatesStore.Add semantics).
func (s *Simple) Add(p frontier.PageID) error {
	t := s.clock()
	row := frontier.UpdateRow{FirstSeen: t, LastSeen: t, NUpdates: 0}
	if err := s.store.Add(p, row); err != nil {
		return err
	}
	// The store keeps an existing row untouched, so the cache must not be
	// primed with row here; the next lookup reads the stored row back.
	if s.cache != nil {
		s.cache.Remove(string(p))
	}
	return nil
}

// Delete drops p's row entirely.
func (s *Simple) Delete(p frontier.PageID) error {
	if s.cache != nil {
		s.cache.Remove(string(p))
	}
	return s.store.Delete(p)
}

// Refresh records a refresh outcome for p at the current clock value: if
// changed, n_updates is incremented; last_seen is always advanced. Refreshing
// a page never seen by Add is a no-op (matches UpdatesStore.Increment on an
// unknown page).
func (s *Simple) Refresh(p frontier.PageID, changed bool) error {
	delta := 0
	if changed {
		delta = 1
	}
	t := s.clock()
	if err := s.store.Increment(p, t, delta); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(string(p))
	}
	return nil
}

// Frequency returns n_updates / (last_seen - first_seen) for p. It returns
// (0, false, nil) if p is unknown or last_seen == first_seen, guarding the
// divide-by-zero case called out in spec §4.5.
func (s *Simple) Frequency(p frontier.PageID) (float64, bool, error) {
	row, found, err := s.lookup(p)
	if err != nil || !found {
		return 0, false, err
	}
	elapsed := row.LastSeen - row.FirstSeen
	if elapsed == 0 {
		return 0, false, nil
	}
	return float64(row.NUpdates) / elapsed, true, nil
}

func (s *Simple) lookup(p frontier.PageID) (frontier.UpdateRow, bool, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(string(p)); ok {
			return v.(frontier.UpdateRow), true, nil
		}
	}
	row, found, err := s.store.Get(p)
	if err != nil || !found {
		return row, found, err
	}
	s.cachePut(p, row)
	return row, true, nil
}

func (s *Simple) cachePut(p frontier.PageID, row frontier.UpdateRow) {
	if s.cache != nil {
		s.cache.Add(string(p), row)
	}
}
