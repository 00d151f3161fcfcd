// Package pagedb implements PageMetaStore (spec §4.4): the map from page id
// to the URL/domain pair the backend facade uses to answer queries about a
// page without touching the graph or score stores.
package pagedb

import (
	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const tableMeta = "pagedb_meta"

// Store is a PageMetaStore backed by a store.DB.
type Store struct {
	meta store.Table
}

// Open builds a Store over db.
func Open(db store.DB) (*Store, error) {
	meta, err := db.Table(tableMeta)
	if err != nil {
		return nil, err
	}
	return &Store{meta: meta}, nil
}

func encodeMeta(m frontier.PageMeta) []byte {
	url := []byte(m.URL)
	buf := make([]byte, 4+len(url)+len(m.Domain))
	buf[0] = byte(len(url) >> 24)
	buf[1] = byte(len(url) >> 16)
	buf[2] = byte(len(url) >> 8)
	buf[3] = byte(len(url))
	copy(buf[4:], url)
	copy(buf[4+len(url):], m.Domain)
	return buf
}

func decodeMeta(buf []byte) frontier.PageMeta {
	n := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	url := string(buf[4 : 4+n])
	domain := string(buf[4+n:])
	return frontier.PageMeta{URL: url, Domain: domain}
}

// Add inserts m for p if p is not already present; a no-op otherwise.
func (s *Store) Add(p frontier.PageID, m frontier.PageMeta) error {
	_, err := s.meta.PutIfAbsent(p, encodeMeta(m))
	return err
}

// Get returns the PageMeta for p.
func (s *Store) Get(p frontier.PageID) (frontier.PageMeta, bool, error) {
	buf, found, err := s.meta.Get(p)
	if err != nil || !found {
		return frontier.PageMeta{}, found, err
	}
	return decodeMeta(buf), true, nil
}

// Set overwrites p's PageMeta with the fields present in patch, leaving any
// empty-string field unchanged (a partial update, per spec.md §3: a page is
// "mutated on re-discovery only to the extent the caller requests"). Set on
// an unknown page inserts a fresh row using patch as given.
func (s *Store) Set(p frontier.PageID, patch frontier.PageMeta) error {
	existing, found, err := s.Get(p)
	if err != nil {
		return err
	}
	if !found {
		return s.meta.Put(p, encodeMeta(patch))
	}
	merged := existing
	if patch.URL != "" {
		merged.URL = patch.URL
	}
	if patch.Domain != "" {
		merged.Domain = patch.Domain
	}
	return s.meta.Put(p, encodeMeta(merged))
}

// Delete removes p's PageMeta, if present.
func (s *Store) Delete(p frontier.PageID) error {
	return s.meta.Delete(p)
}

// Clear removes every row.
func (s *Store) Clear() error {
	return s.meta.Clear()
}

// Count returns the number of pages with metadata on file.
func (s *Store) Count() (int, error) {
	return s.meta.Count()
}
