// Package hitsdb implements HitsScoreStore (spec §4 L2): the map from page
// id to a six-field hub/authority HitsScore record, plus the cash-delta
// optimisation of spec §4.2.5 that makes a global "add to every row"
// (IncreaseAllCash) an O(1) operation instead of touching every row.
package hitsdb

import (
	"encoding/binary"
	"math"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const (
	tableScores = "hitsdb_scores"
	tableHIndex = "hitsdb_h_index"
	tableAIndex = "hitsdb_a_index"
	tableDeltas = "hitsdb_deltas"
)

var deltasKey = []byte("deltas")

// ScoredPage pairs a page id with a cash value, as returned by the
// highest-cash queries used to drive the OPIC-HITS selection policy.
type ScoredPage struct {
	PageID frontier.PageID
	Cash   float64
}

// Store is a HitsScoreStore backed by a store.DB.
type Store struct {
	scores store.Table
	hIndex store.Table
	aIndex store.Table
	deltas store.Table

	deltaH, deltaA float64
}

// Open builds a Store over db, restoring the persisted (deltaH, deltaA) row
// if one exists (so a restart reproduces exactly the values a caller would
// have seen via Get before shutdown, per spec testable property 4).
func Open(db store.DB) (*Store, error) {
	scores, err := db.Table(tableScores)
	if err != nil {
		return nil, err
	}
	hIndex, err := db.Table(tableHIndex)
	if err != nil {
		return nil, err
	}
	aIndex, err := db.Table(tableAIndex)
	if err != nil {
		return nil, err
	}
	deltas, err := db.Table(tableDeltas)
	if err != nil {
		return nil, err
	}

	s := &Store{scores: scores, hIndex: hIndex, aIndex: aIndex, deltas: deltas}

	if raw, found, err := deltas.Get(deltasKey); err != nil {
		return nil, err
	} else if found {
		s.deltaH, s.deltaA = decodeDeltas(raw)
	}

	// If the score table is non-empty but the deltas row was never written
	// (e.g. a store created by hand, not through Open/Close), an invariant
	// the facade relies on is violated.
	if count, err := scores.Count(); err != nil {
		return nil, err
	} else if count > 0 {
		if _, found, err := deltas.Get(deltasKey); err != nil {
			return nil, err
		} else if !found {
			return nil, frontier.ErrCorruptState
		}
	}

	return s, nil
}

type rawScore struct {
	hHistory, hCash, hLast float64
	aHistory, aCash, aLast float64
}

func encodeRaw(r rawScore) []byte {
	buf := make([]byte, 48)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(r.hHistory))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(r.hCash))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(r.hLast))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(r.aHistory))
	binary.BigEndian.PutUint64(buf[32:40], math.Float64bits(r.aCash))
	binary.BigEndian.PutUint64(buf[40:48], math.Float64bits(r.aLast))
	return buf
}

func decodeRaw(buf []byte) rawScore {
	return rawScore{
		hHistory: math.Float64frombits(binary.BigEndian.Uint64(buf[0:8])),
		hCash:    math.Float64frombits(binary.BigEndian.Uint64(buf[8:16])),
		hLast:    math.Float64frombits(binary.BigEndian.Uint64(buf[16:24])),
		aHistory: math.Float64frombits(binary.BigEndian.Uint64(buf[24:32])),
		aCash:    math.Float64frombits(binary.BigEndian.Uint64(buf[32:40])),
		aLast:    math.Float64frombits(binary.BigEndian.Uint64(buf[40:48])),
	}
}

func encodeDeltas(dh, da float64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(dh))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(da))
	return buf
}

func decodeDeltas(buf []byte) (float64, float64) {
	return math.Float64frombits(binary.BigEndian.Uint64(buf[0:8])),
		math.Float64frombits(binary.BigEndian.Uint64(buf[8:16]))
}

func (s *Store) toRaw(sc frontier.HitsScore) rawScore {
	return rawScore{
		hHistory: sc.HHistory,
		hCash:    sc.HCash - s.deltaH,
		hLast:    sc.HLast,
		aHistory: sc.AHistory,
		aCash:    sc.ACash - s.deltaA,
		aLast:    sc.ALast,
	}
}

func (s *Store) fromRaw(r rawScore) frontier.HitsScore {
	return frontier.HitsScore{
		HHistory: r.hHistory,
		HCash:    r.hCash + s.deltaH,
		HLast:    r.hLast,
		AHistory: r.aHistory,
		ACash:    r.aCash + s.deltaA,
		ALast:    r.aLast,
	}
}

func hIndexKey(raw rawScore, p frontier.PageID) []byte {
	return store.ConcatKey(store.OrderedFloat64(raw.hCash), p)
}

func aIndexKey(raw rawScore, p frontier.PageID) []byte {
	return store.ConcatKey(store.OrderedFloat64(raw.aCash), p)
}

// Add inserts a new HitsScore for p if p is not already present. Re-adding
// an existing page is a no-op (spec testable property 5).
func (s *Store) Add(p frontier.PageID, sc frontier.HitsScore) error {
	raw := s.toRaw(sc)
	inserted, err := s.scores.PutIfAbsent(p, encodeRaw(raw))
	if err != nil || !inserted {
		return err
	}
	if err := s.hIndex.Put(hIndexKey(raw, p), p); err != nil {
		return err
	}
	return s.aIndex.Put(aIndexKey(raw, p), p)
}

// Get returns the HitsScore for p, with the live cash deltas applied.
func (s *Store) Get(p frontier.PageID) (frontier.HitsScore, bool, error) {
	buf, found, err := s.scores.Get(p)
	if err != nil || !found {
		return frontier.HitsScore{}, found, err
	}
	return s.fromRaw(decodeRaw(buf)), true, nil
}

// Set overwrites the HitsScore for p. A Set on an unknown page is a no-op,
// matching the original store's "UPDATE OR IGNORE" semantics.
func (s *Store) Set(p frontier.PageID, sc frontier.HitsScore) error {
	oldBuf, found, err := s.scores.Get(p)
	if err != nil || !found {
		return err
	}
	oldRaw := decodeRaw(oldBuf)
	newRaw := s.toRaw(sc)

	if err := s.hIndex.Delete(hIndexKey(oldRaw, p)); err != nil {
		return err
	}
	if err := s.aIndex.Delete(aIndexKey(oldRaw, p)); err != nil {
		return err
	}
	if err := s.scores.Put(p, encodeRaw(newRaw)); err != nil {
		return err
	}
	if err := s.hIndex.Put(hIndexKey(newRaw, p), p); err != nil {
		return err
	}
	return s.aIndex.Put(aIndexKey(newRaw, p), p)
}

// Delete removes p's score record and its index entries.
func (s *Store) Delete(p frontier.PageID) error {
	oldBuf, found, err := s.scores.Get(p)
	if err != nil || !found {
		return err
	}
	oldRaw := decodeRaw(oldBuf)
	if err := s.hIndex.Delete(hIndexKey(oldRaw, p)); err != nil {
		return err
	}
	if err := s.aIndex.Delete(aIndexKey(oldRaw, p)); err != nil {
		return err
	}
	return s.scores.Delete(p)
}

// Contains reports whether p has an associated score.
func (s *Store) Contains(p frontier.PageID) (bool, error) {
	_, found, err := s.scores.Get(p)
	return found, err
}

// Iter calls f for every (page id, score) pair until f returns false. Per
// spec Open Question 1, deltaH is always applied to HCash and deltaA to
// ACash — never swapped, unlike the original source's inconsistent
// iteritems().
func (s *Store) Iter(f func(frontier.PageID, frontier.HitsScore) (bool, error)) error {
	return s.scores.Scan(true, nil, 0, func(key, value []byte) (bool, error) {
		p := append([]byte(nil), key...)
		sc := s.fromRaw(decodeRaw(value))
		return f(p, sc)
	})
}

// HighestHCash returns the n pages with the largest hub cash.
func (s *Store) HighestHCash(n int) ([]ScoredPage, error) {
	return s.highest(s.hIndex, n, s.deltaH)
}

// HighestACash returns the n pages with the largest authority cash.
func (s *Store) HighestACash(n int) ([]ScoredPage, error) {
	return s.highest(s.aIndex, n, s.deltaA)
}

func (s *Store) highest(index store.Table, n int, delta float64) ([]ScoredPage, error) {
	var out []ScoredPage
	err := index.Scan(false, nil, n, func(key, value []byte) (bool, error) {
		raw := store.DecodeOrderedFloat64(key[:8])
		out = append(out, ScoredPage{PageID: append([]byte(nil), value...), Cash: raw + delta})
		return true, nil
	})
	return out, err
}

// IncreaseAllCash bumps every page's hub and authority cash by dh and da in
// O(1), via the cash-delta trick: only the two scalar deltas change.
func (s *Store) IncreaseAllCash(dh, da float64) error {
	s.deltaH += dh
	s.deltaA += da
	return nil
}

// IncreaseHCash adds dh to the (delta-adjusted) hub cash of each page in
// pages, a targeted bulk update distinct from IncreaseAllCash.
func (s *Store) IncreaseHCash(pages []frontier.PageID, dh float64) error {
	for _, p := range pages {
		if err := s.bumpOne(p, dh, 0); err != nil {
			return err
		}
	}
	return nil
}

// IncreaseACash adds da to the (delta-adjusted) authority cash of each page
// in pages.
func (s *Store) IncreaseACash(pages []frontier.PageID, da float64) error {
	for _, p := range pages {
		if err := s.bumpOne(p, 0, da); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) bumpOne(p frontier.PageID, dh, da float64) error {
	buf, found, err := s.scores.Get(p)
	if err != nil || !found {
		return err
	}
	oldRaw := decodeRaw(buf)
	newRaw := oldRaw
	newRaw.hCash += dh
	newRaw.aCash += da

	if err := s.hIndex.Delete(hIndexKey(oldRaw, p)); err != nil {
		return err
	}
	if err := s.aIndex.Delete(aIndexKey(oldRaw, p)); err != nil {
		return err
	}
	if err := s.scores.Put(p, encodeRaw(newRaw)); err != nil {
		return err
	}
	if err := s.hIndex.Put(hIndexKey(newRaw, p), p); err != nil {
		return err
	}
	return s.aIndex.Put(aIndexKey(newRaw, p), p)
}

// Count returns the number of scored pages.
func (s *Store) Count() (int, error) {
	return s.scores.Count()
}

// HTotal returns the sum of h_history over all pages.
func (s *Store) HTotal() (float64, error) {
	var total float64
	err := s.scores.Scan(true, nil, 0, func(_, value []byte) (bool, error) {
		total += decodeRaw(value).hHistory
		return true, nil
	})
	return total, err
}

// ATotal returns the sum of a_history over all pages.
func (s *Store) ATotal() (float64, error) {
	var total float64
	err := s.scores.Scan(true, nil, 0, func(_, value []byte) (bool, error) {
		total += decodeRaw(value).aHistory
		return true, nil
	})
	return total, err
}

// Close flushes the (deltaH, deltaA) row so it survives restart.
func (s *Store) Close() error {
	return s.deltas.Put(deltasKey, encodeDeltas(s.deltaH, s.deltaA))
}
