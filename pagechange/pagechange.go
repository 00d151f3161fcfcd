// Package pagechange implements ChangeDetector (spec §4.4): classifies a
// freshly-crawled page body against the previously stored digest of the
// same page.
package pagechange

import (
	"bytes"
	"crypto/sha1"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/hashdb"
	lru "github.com/hashicorp/golang-lru"
)

// Status is the classification Update returns.
type Status int

const (
	// New indicates p had no stored digest before this call.
	New Status = iota
	// Equal indicates body's digest matches the stored one; unchanged.
	Equal
	// Updated indicates body's digest differs from the stored one.
	Updated
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Equal:
		return "EQUAL"
	case Updated:
		return "UPDATED"
	default:
		return "UNKNOWN"
	}
}

// Detector classifies page bodies using a SHA-1 content digest stored in a
// hashdb.Store. An optional bounded LRU front-ends the store the way the
// teacher's dnscache/domainCache front-end Cassandra, so a huge crawl's
// hot-page digests don't round-trip through the store on every call.
type Detector struct {
	store *hashdb.Store
	cache *lru.Cache
}

// New builds a Detector over store, with no cache (every Update round-trips
// through store).
func New(store *hashdb.Store) *Detector {
	return &Detector{store: store}
}

// NewWithCache builds a Detector backed by an LRU of at most maxEntries
// recently-seen digests in front of store.
func NewWithCache(store *hashdb.Store, maxEntries int) (*Detector, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &Detector{store: store, cache: cache}, nil
}

// Update computes sha1(body), compares it against the digest stored for p,
// classifies the result, and writes the new digest.
func (d *Detector) Update(p frontier.PageID, body []byte) (Status, error) {
	sum := sha1.Sum(body)
	digest := sum[:]

	old, found, err := d.lookup(p)
	if err != nil {
		return New, err
	}

	var status Status
	switch {
	case !found:
		status = New
	case bytes.Equal(old, digest):
		status = Equal
	default:
		status = Updated
	}

	if err := d.store.Set(p, digest); err != nil {
		return status, err
	}
	if d.cache != nil {
		d.cache.Add(string(p), digest)
	}
	return status, nil
}

func (d *Detector) lookup(p frontier.PageID) ([]byte, bool, error) {
	if d.cache != nil {
		if v, ok := d.cache.Get(string(p)); ok {
			return v.([]byte), true, nil
		}
	}
	return d.store.Get(p)
}

// Reset clears every stored digest, so every subsequent Update reports New.
func (d *Detector) Reset() error {
	if d.cache != nil {
		d.cache.Purge()
	}
	return d.store.Clear()
}
