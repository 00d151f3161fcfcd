// Package updatesdb implements UpdatesStore (spec §4.7): the per-page
// first-seen/last-seen/update-count row freqest.Simple builds its frequency
// estimate from.
package updatesdb

import (
	"encoding/binary"
	"math"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const tableUpdates = "updatesdb_updates"

// Store is an UpdatesStore backed by a store.DB.
type Store struct {
	rows store.Table
}

// Open builds a Store over db.
func Open(db store.DB) (*Store, error) {
	rows, err := db.Table(tableUpdates)
	if err != nil {
		return nil, err
	}
	return &Store{rows: rows}, nil
}

func encodeRow(r frontier.UpdateRow) []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(r.FirstSeen))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(r.LastSeen))
	binary.BigEndian.PutUint32(buf[16:20], uint32(r.NUpdates))
	return buf
}

func decodeRow(buf []byte) frontier.UpdateRow {
	return frontier.UpdateRow{
		FirstSeen: math.Float64frombits(binary.BigEndian.Uint64(buf[0:8])),
		LastSeen:  math.Float64frombits(binary.BigEndian.Uint64(buf[8:16])),
		NUpdates:  int(int32(binary.BigEndian.Uint32(buf[16:20]))),
	}
}

// Add inserts row for p if p is not already present; a no-op otherwise.
func (s *Store) Add(p frontier.PageID, row frontier.UpdateRow) error {
	_, err := s.rows.PutIfAbsent(p, encodeRow(row))
	return err
}

// Get returns the UpdateRow for p, if any.
func (s *Store) Get(p frontier.PageID) (frontier.UpdateRow, bool, error) {
	buf, found, err := s.rows.Get(p)
	if err != nil || !found {
		return frontier.UpdateRow{}, found, err
	}
	return decodeRow(buf), true, nil
}

// Increment sets LastSeen to lastSeen and adds deltaUpdates to NUpdates,
// leaving FirstSeen untouched. Incrementing an unknown page is a no-op.
func (s *Store) Increment(p frontier.PageID, lastSeen float64, deltaUpdates int) error {
	buf, found, err := s.rows.Get(p)
	if err != nil || !found {
		return err
	}
	row := decodeRow(buf)
	row.LastSeen = lastSeen
	row.NUpdates += deltaUpdates
	return s.rows.Put(p, encodeRow(row))
}

// Delete removes p's row, if present.
func (s *Store) Delete(p frontier.PageID) error {
	return s.rows.Delete(p)
}

// Clear removes every row.
func (s *Store) Clear() error {
	return s.rows.Clear()
}
