// Package hashdb implements HashStore (spec §4.6): a plain page-id -> digest
// map used by pagechange to detect whether a re-crawled page's body changed.
package hashdb

import (
	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const tableHashes = "hashdb_hashes"

// Store is a HashStore backed by a store.DB.
type Store struct {
	hashes store.Table
}

// Open builds a Store over db.
func Open(db store.DB) (*Store, error) {
	hashes, err := db.Table(tableHashes)
	if err != nil {
		return nil, err
	}
	return &Store{hashes: hashes}, nil
}

// Get returns the stored digest for p, if any.
func (s *Store) Get(p frontier.PageID) (digest []byte, found bool, err error) {
	return s.hashes.Get(p)
}

// Set overwrites the digest for p.
func (s *Store) Set(p frontier.PageID, digest []byte) error {
	return s.hashes.Put(p, digest)
}

// Delete removes p's digest, if present.
func (s *Store) Delete(p frontier.PageID) error {
	return s.hashes.Delete(p)
}

// Clear removes every digest.
func (s *Store) Clear() error {
	return s.hashes.Clear()
}
