// Package freqdb implements FreqStore (spec §4.6): the refresh scheduler
// that interleaves re-fetches of already-crawled pages so that each page is,
// in expectation, selected at a rate proportional to its own target
// frequency — a deficit-round-robin over non-integer quanta, grounded on the
// same "smallest score wins, then gets pushed back" discipline as the
// teacher's container/heap-based PriorityURL, realised here over a
// store.Table secondary index so it persists across restart.
package freqdb

import (
	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const (
	tableRows  = "freqdb_rows"  // page id -> (frequency, score)
	tableIndex = "freqdb_index" // score(8 bytes)||page id -> page id
)

// Store is a FreqStore backed by a store.DB.
type Store struct {
	rows  store.Table
	index store.Table
}

// Open builds a Store over db.
func Open(db store.DB) (*Store, error) {
	rows, err := db.Table(tableRows)
	if err != nil {
		return nil, err
	}
	index, err := db.Table(tableIndex)
	if err != nil {
		return nil, err
	}
	return &Store{rows: rows, index: index}, nil
}

type row struct {
	frequency, score float64
}

func encodeRow(r row) []byte {
	return append(store.OrderedFloat64(r.frequency), store.OrderedFloat64(r.score)...)
}

func decodeRow(buf []byte) row {
	return row{
		frequency: store.DecodeOrderedFloat64(buf[0:8]),
		score:     store.DecodeOrderedFloat64(buf[8:16]),
	}
}

func indexKey(score float64, p frontier.PageID) []byte {
	return store.ConcatKey(store.OrderedFloat64(score), p)
}

func (s *Store) minScore() (float64, error) {
	var min float64
	var found bool
	err := s.index.Scan(true, nil, 1, func(key, _ []byte) (bool, error) {
		min = store.DecodeOrderedFloat64(key[:8])
		found = true
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return min, nil
}

// Add associates freq (Hz) with p. freq<=0 is a silently ignored no-op, per
// spec.md §7's documented invalid-input behaviour. fresh selects the
// admission score: a freshly-crawled page is scheduled a full period out
// (score0 + 1/freq); a page flagged urgent (fresh=false) is scheduled
// immediately (score0), jumping the queue. Re-adding an already-known page
// is a no-op.
func (s *Store) Add(p frontier.PageID, freq float64, fresh bool) error {
	if freq <= 0 {
		return nil
	}
	if _, found, err := s.rows.Get(p); err != nil {
		return err
	} else if found {
		return nil
	}

	min, err := s.minScore()
	if err != nil {
		return err
	}
	score := min
	if fresh {
		score += 1.0 / freq
	}

	r := row{frequency: freq, score: score}
	if _, err := s.rows.PutIfAbsent(p, encodeRow(r)); err != nil {
		return err
	}
	return s.index.Put(indexKey(score, p), p)
}

// Set changes p's target frequency. freq<=0 deletes the row. For an
// existing row, the score is adjusted by -1/oldFreq + 1/newFreq so its
// position in the queue shifts by exactly the change in period; for an
// unknown page it behaves like Add with fresh=true.
func (s *Store) Set(p frontier.PageID, freq float64) error {
	if freq <= 0 {
		return s.Delete(p)
	}

	buf, found, err := s.rows.Get(p)
	if err != nil {
		return err
	}
	if !found {
		return s.Add(p, freq, true)
	}

	old := decodeRow(buf)
	newScore := old.score - 1.0/old.frequency + 1.0/freq
	newRow := row{frequency: freq, score: newScore}

	if err := s.index.Delete(indexKey(old.score, p)); err != nil {
		return err
	}
	if err := s.rows.Put(p, encodeRow(newRow)); err != nil {
		return err
	}
	return s.index.Put(indexKey(newScore, p), p)
}

// ForceUrgent resets p's score to 0 — the most urgent position in the
// queue — without touching its frequency. Used when a seed names a page
// already known to the scheduler that should be re-fetched immediately.
// A no-op if p has no row.
func (s *Store) ForceUrgent(p frontier.PageID) error {
	buf, found, err := s.rows.Get(p)
	if err != nil || !found {
		return err
	}
	r := decodeRow(buf)
	if err := s.index.Delete(indexKey(r.score, p)); err != nil {
		return err
	}
	r.score = 0
	if err := s.rows.Put(p, encodeRow(r)); err != nil {
		return err
	}
	return s.index.Put(indexKey(0, p), p)
}

// Delete removes p's row, if present.
func (s *Store) Delete(p frontier.PageID) error {
	buf, found, err := s.rows.Get(p)
	if err != nil || !found {
		return err
	}
	old := decodeRow(buf)
	if err := s.index.Delete(indexKey(old.score, p)); err != nil {
		return err
	}
	return s.rows.Delete(p)
}

// Get returns p's current (frequency, score), if known.
func (s *Store) Get(p frontier.PageID) (frequency, score float64, found bool, err error) {
	buf, found, err := s.rows.Get(p)
	if err != nil || !found {
		return 0, 0, found, err
	}
	r := decodeRow(buf)
	return r.frequency, r.score, true, nil
}

// Contains reports whether p has a row.
func (s *Store) Contains(p frontier.PageID) (bool, error) {
	_, found, err := s.rows.Get(p)
	return found, err
}

// GetNextPages selects the n rows with smallest score (ties broken by page
// id order, since index keys are score||page_id), then bumps each selected
// row's score by 1/frequency — the deficit-round-robin step that keeps a
// high-frequency page cycling back into view roughly 1/freq of
// schedule-virtual-time later.
func (s *Store) GetNextPages(n int) ([]frontier.PageID, error) {
	if n <= 0 {
		return nil, nil
	}

	var selected []frontier.PageID
	err := s.index.Scan(true, nil, n, func(_, value []byte) (bool, error) {
		selected = append(selected, append([]byte(nil), value...))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range selected {
		buf, found, err := s.rows.Get(p)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		r := decodeRow(buf)
		newScore := r.score + 1.0/r.frequency
		if err := s.index.Delete(indexKey(r.score, p)); err != nil {
			return nil, err
		}
		r.score = newScore
		if err := s.rows.Put(p, encodeRow(r)); err != nil {
			return nil, err
		}
		if err := s.index.Put(indexKey(newScore, p), p); err != nil {
			return nil, err
		}
	}

	return selected, nil
}

// Count returns the number of scheduled rows.
func (s *Store) Count() (int, error) {
	return s.rows.Count()
}

// Clear removes every row.
func (s *Store) Clear() error {
	if err := s.rows.Clear(); err != nil {
		return err
	}
	return s.index.Clear()
}
