// Package frontier implements the ranking and refresh-scheduling core of a
// web-crawl frontier: an OPIC-HITS score store and an adaptive refresh
// scheduler, exposed through the Backend contract in backend.go-equivalent
// packages. Fetching, HTML parsing, URL normalisation and politeness belong
// to the crawler glue that consumes this package; they are not implemented
// here.
package frontier

import (
	"bytes"
	"errors"
)

// PageID is an opaque, non-empty byte string identifying a page. Equality is
// byte-exact. Callers typically supply a cryptographic hash of a canonical
// URL; the core never hashes URLs itself.
type PageID []byte

// Equal reports whether two page ids are byte-exact identical.
func (p PageID) Equal(o PageID) bool {
	return bytes.Equal(p, o)
}

// String renders the page id for logging. Not guaranteed to be printable;
// callers that need a stable text form should supply ids that already are.
func (p PageID) String() string {
	return string(p)
}

// ErrEmptyPageID is returned when a zero-length PageID is given to
// graph.Store.AddNode/AddEdge or to the backend's AddSeeds/PageCrawled.
var ErrEmptyPageID = errors.New("frontier: page id must not be empty")

// PageMeta holds the URL and registrable domain associated with a page.
type PageMeta struct {
	URL    string
	Domain string
}

// Edge is a directed link between two pages with two opaque scalar weights.
// Self-loops (Src.Equal(Dst)) are legal to store but are excluded from
// OPIC-HITS cash distribution.
type Edge struct {
	Src, Dst PageID
	W1, W2   float64
}

// HitsScore is the six-field hub/authority record the OPIC-HITS engine
// maintains for every known page (and, internally, for the virtual page).
type HitsScore struct {
	HHistory, HCash, HLast float64
	AHistory, ACash, ALast float64
}

// UpdateRow tracks the crawl history of a page: when it was first and last
// seen and how many times its content changed.
type UpdateRow struct {
	FirstSeen, LastSeen float64
	NUpdates            int
}

// FreqEntry is one row of the refresh scheduler: a page, its estimated
// change frequency in Hz, and the scheduler's ordering key (lower = sooner).
type FreqEntry struct {
	PageID    PageID
	Frequency float64
	Score     float64
}

// ErrorKind classifies a failed fetch reported via RequestError.
type ErrorKind int

const (
	// ErrorUnknown is the zero value for ErrorKind.
	ErrorUnknown ErrorKind = iota
	// ErrorTimeout indicates the fetch did not complete in time.
	ErrorTimeout
	// ErrorConnection indicates a network-level failure.
	ErrorConnection
	// ErrorOther covers every other failure kind the glue may report.
	ErrorOther
)

// Request is the minimal unit of work the backend contract exchanges with
// crawler glue: enough to identify a page and enqueue it, nothing about HTTP
// transport (that belongs to the glue, not the core).
type Request struct {
	Fingerprint PageID
	URL         string
	Domain      string
	Depth       int
}

// Response is the minimal result of a fetch the backend contract consumes.
type Response struct {
	Request Request
	Body    []byte
}

// ErrCorruptState is returned by a backend Open call when persisted state
// violates an invariant the core relies on (for example, a non-empty score
// table with no cash-delta row).
var ErrCorruptState = errors.New("frontier: persisted state failed an invariant check")
