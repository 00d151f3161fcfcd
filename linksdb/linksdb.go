// Package linksdb implements LinksStore (spec §4.5): the durable per-edge
// weight record the backend facade reads and writes on page_crawled. It is
// deliberately distinct from graph's edge table, which exists only to answer
// the connectivity queries the engine needs hot.
package linksdb

import (
	"encoding/binary"
	"math"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const tableLinks = "linksdb_links"

// Store is a LinksStore backed by a store.DB.
type Store struct {
	links store.Table
}

// Open builds a Store over db.
func Open(db store.DB) (*Store, error) {
	links, err := db.Table(tableLinks)
	if err != nil {
		return nil, err
	}
	return &Store{links: links}, nil
}

// linkKey is self-delimiting (4-byte length header on src) for the same
// reason graph's edge keys are: a PageID can contain any byte value,
// including 0x00, so a separator byte would be ambiguous.
func linkKey(src, dst frontier.PageID) []byte {
	k := make([]byte, 0, 4+len(src)+len(dst))
	h := make([]byte, 4)
	binary.BigEndian.PutUint32(h, uint32(len(src)))
	k = append(k, h...)
	k = append(k, src...)
	k = append(k, dst...)
	return k
}

func encodeWeights(w1, w2 float64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(w1))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(w2))
	return buf
}

func decodeWeights(b []byte) (float64, float64) {
	return math.Float64frombits(binary.BigEndian.Uint64(b[0:8])),
		math.Float64frombits(binary.BigEndian.Uint64(b[8:16]))
}

// Add inserts the (w1, w2) weight record for src->dst if it is not already
// present; a no-op otherwise.
func (s *Store) Add(src, dst frontier.PageID, w1, w2 float64) error {
	_, err := s.links.PutIfAbsent(linkKey(src, dst), encodeWeights(w1, w2))
	return err
}

// Get returns the stored weights for src->dst, if present.
func (s *Store) Get(src, dst frontier.PageID) (w1, w2 float64, found bool, err error) {
	buf, found, err := s.links.Get(linkKey(src, dst))
	if err != nil || !found {
		return 0, 0, found, err
	}
	w1, w2 = decodeWeights(buf)
	return w1, w2, true, nil
}

// Set overwrites the weights for src->dst unconditionally.
func (s *Store) Set(src, dst frontier.PageID, w1, w2 float64) error {
	return s.links.Put(linkKey(src, dst), encodeWeights(w1, w2))
}

// Delete removes the weight record for src->dst, if present.
func (s *Store) Delete(src, dst frontier.PageID) error {
	return s.links.Delete(linkKey(src, dst))
}

// Clear removes every weight record.
func (s *Store) Clear() error {
	return s.links.Clear()
}

// Count returns the number of stored links.
func (s *Store) Count() (int, error) {
	return s.links.Count()
}
