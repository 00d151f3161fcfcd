// Package backend implements the Backend facade (spec §4.7, §6.1): the
// single composition root that owns every store, the OPIC-HITS engine, the
// change detector and the frequency estimator, and exposes the crawler-glue
// boundary contract.
package backend

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/freqdb"
	"github.com/iParadigms/frontier/freqest"
	"github.com/iParadigms/frontier/graph"
	"github.com/iParadigms/frontier/hashdb"
	"github.com/iParadigms/frontier/hitsdb"
	"github.com/iParadigms/frontier/linksdb"
	"github.com/iParadigms/frontier/opichits"
	"github.com/iParadigms/frontier/pagechange"
	"github.com/iParadigms/frontier/pagedb"
	"github.com/iParadigms/frontier/store"
	"github.com/iParadigms/frontier/updatesdb"
	"github.com/sirupsen/logrus"
)

const tableClock = "backend_clock"

var clockKey = []byte("clock")

// Backend composes every store and component into the crawler-boundary
// contract. Mutation is not re-entrant by design (spec §5's single-writer
// model); Mu is exposed for callers who want to serialise a concurrent
// read-only path (e.g. a stats goroutine) against the single writer.
type Backend struct {
	Mu sync.RWMutex

	cfg frontier.FrontierConfig
	db  store.DB

	graph    *graph.Store
	hits     *hitsdb.Store
	meta     *pagedb.Store
	links    *linksdb.Store
	hashes   *hashdb.Store
	updates  *updatesdb.Store
	freq     *freqdb.Store
	detector *pagechange.Detector
	freqEst  *freqest.Simple
	engine   *opichits.Engine

	clockTable store.Table
	clockVal   float64
}

// Open opens or creates every store under cfg.WorkDir (or entirely
// in-memory if cfg.InMemory), restoring all persisted state — the
// cash-delta row, the OPIC-HITS virtual clock, and the scheduler's own
// tick — and ensures every known graph node has a score row.
func Open(cfg frontier.FrontierConfig) (*Backend, error) {
	var db store.DB
	if cfg.InMemory {
		db = store.NewMemory()
	} else {
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			return nil, err
		}
		bolt, err := store.OpenBolt(filepath.Join(cfg.WorkDir, "frontier.db"))
		if err != nil {
			return nil, err
		}
		db = bolt
	}

	g, err := graph.Open(db)
	if err != nil {
		return nil, err
	}
	h, err := hitsdb.Open(db)
	if err != nil {
		return nil, err
	}
	m, err := pagedb.Open(db)
	if err != nil {
		return nil, err
	}
	l, err := linksdb.Open(db)
	if err != nil {
		return nil, err
	}
	hd, err := hashdb.Open(db)
	if err != nil {
		return nil, err
	}
	u, err := updatesdb.Open(db)
	if err != nil {
		return nil, err
	}
	f, err := freqdb.Open(db)
	if err != nil {
		return nil, err
	}
	clockTable, err := db.Table(tableClock)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		cfg: cfg, db: db,
		graph: g, hits: h, meta: m, links: l, hashes: hd, updates: u, freq: f,
		clockTable: clockTable,
	}

	if buf, found, err := clockTable.Get(clockKey); err != nil {
		return nil, err
	} else if found {
		b.clockVal = math.Float64frombits(binary.BigEndian.Uint64(buf))
	}

	if cfg.WorkingSetCacheSize > 0 {
		b.detector, err = pagechange.NewWithCache(hd, cfg.WorkingSetCacheSize)
		if err != nil {
			return nil, err
		}
		b.freqEst, err = freqest.NewSimpleWithCache(u, b.clock, cfg.WorkingSetCacheSize)
		if err != nil {
			return nil, err
		}
	} else {
		b.detector = pagechange.New(hd)
		b.freqEst = freqest.NewSimple(u, b.clock)
	}

	engine, err := opichits.New(db, g, h, nil, opichits.Config{
		TimeWindow:      cfg.TimeWindow,
		BatchMultiplier: cfg.BatchMultiplier,
	})
	if err != nil {
		return nil, err
	}
	b.engine = engine

	logrus.WithField("workdir", cfg.WorkDir).WithField("in_memory", cfg.InMemory).Info("frontier backend opened")
	return b, nil
}

// Engine exposes the underlying OpicHits engine for read-only operational
// tooling (spec §8.4's frontierctl stats command).
func (b *Backend) Engine() *opichits.Engine { return b.engine }

func (b *Backend) clock() float64 { return b.clockVal }

func (b *Backend) tick() float64 {
	b.clockVal++
	return b.clockVal
}

// Stop flushes every store's pending state (in particular the cash-delta
// row and the OPIC-HITS virtual clock) and closes the underlying handle.
func (b *Backend) Stop() error {
	b.Mu.Lock()
	defer b.Mu.Unlock()

	if err := b.engine.Close(); err != nil {
		return err
	}
	if err := b.hits.Close(); err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(b.clockVal))
	if err := b.clockTable.Put(clockKey, buf); err != nil {
		return err
	}
	return b.db.Close()
}

// AddSeeds registers each request's fingerprint as a graph node and a
// scored page. A seed naming an already-known page is pushed to the front
// of the refresh queue (an explicit must-fetch); a seed naming a brand new
// page relies on OpicHits cash alone, per spec §6.1.
func (b *Backend) AddSeeds(reqs []frontier.Request) error {
	b.Mu.Lock()
	defer b.Mu.Unlock()

	for _, r := range reqs {
		if len(r.Fingerprint) == 0 {
			return frontier.ErrEmptyPageID
		}
		if _, err := b.graph.AddNode(r.Fingerprint); err != nil {
			return err
		}
		if _, err := b.engine.AddPage(r.Fingerprint); err != nil {
			return err
		}
		if err := b.meta.Add(r.Fingerprint, frontier.PageMeta{URL: r.URL, Domain: r.Domain}); err != nil {
			return err
		}

		known, err := b.freq.Contains(r.Fingerprint)
		if err != nil {
			return err
		}
		if known {
			if err := b.freq.ForceUrgent(r.Fingerprint); err != nil {
				return err
			}
		}
	}
	return nil
}

// PageCrawled records a fetch: classifies the body via the change detector,
// updates PageMetaStore/GraphStore/LinksStore/UpdatesStore, feeds the
// frequency estimator, marks the crawled page and every newly discovered
// link for an OpicHits update, runs one engine iteration, then refreshes
// the page's FreqStore row with its newly estimated frequency.
func (b *Backend) PageCrawled(resp frontier.Response, links []frontier.Request) error {
	b.Mu.Lock()
	defer b.Mu.Unlock()

	p := resp.Request.Fingerprint
	if len(p) == 0 {
		return frontier.ErrEmptyPageID
	}

	status, err := b.detector.Update(p, resp.Body)
	if err != nil {
		return err
	}
	if err := b.meta.Set(p, frontier.PageMeta{URL: resp.Request.URL, Domain: resp.Request.Domain}); err != nil {
		return err
	}
	if _, err := b.graph.AddNode(p); err != nil {
		return err
	}
	if _, err := b.engine.AddPage(p); err != nil {
		return err
	}

	for _, link := range links {
		if len(link.Fingerprint) == 0 {
			continue
		}
		if b.cfg.DomainDepth > 0 && link.Depth > b.cfg.DomainDepth {
			continue
		}
		if _, err := b.graph.AddEdge(p, link.Fingerprint, 1, 1); err != nil {
			return err
		}
		if err := b.links.Add(p, link.Fingerprint, 1, 1); err != nil {
			return err
		}
		if err := b.meta.Add(link.Fingerprint, frontier.PageMeta{URL: link.URL, Domain: link.Domain}); err != nil {
			return err
		}
		if _, err := b.engine.AddPage(link.Fingerprint); err != nil {
			return err
		}
		b.engine.MarkUpdate(link.Fingerprint)
	}

	b.tick()
	if err := b.freqEst.Add(p); err != nil {
		return err
	}

	b.tick()
	changed := status != pagechange.Equal
	if err := b.freqEst.Refresh(p, changed); err != nil {
		return err
	}

	b.engine.MarkUpdate(p)
	if _, _, err := b.engine.Update(1); err != nil {
		return err
	}

	if freq, found, err := b.freqEst.Frequency(p); err != nil {
		return err
	} else if found {
		if err := b.freq.Set(p, freq); err != nil {
			return err
		}
	}

	return nil
}

// RequestError treats a failed fetch as a missed refresh: the page's
// estimated frequency is nudged down by recording changed=false, and no
// graph mutation happens, per spec §6.1.
func (b *Backend) RequestError(req frontier.Request, kind frontier.ErrorKind) error {
	b.Mu.Lock()
	defer b.Mu.Unlock()

	b.tick()
	return b.freqEst.Refresh(req.Fingerprint, false)
}

// refreshCeiling bounds how many of maxN results GetNextRequests may satisfy
// from the refresh scheduler before falling back to new-page candidates, so
// a batch never starves new-page discovery entirely.
func (b *Backend) refreshCeiling(maxN int) int {
	ceiling := int(float64(maxN) * b.cfg.RefreshCeilingFraction)
	if ceiling > maxN {
		ceiling = maxN
	}
	if ceiling < 0 {
		ceiling = 0
	}
	return ceiling
}

func (b *Backend) requestFor(p frontier.PageID) (frontier.Request, bool, error) {
	m, found, err := b.meta.Get(p)
	if err != nil || !found {
		return frontier.Request{}, found, err
	}
	return frontier.Request{Fingerprint: p, URL: m.URL, Domain: m.Domain}, true, nil
}

// fillFromNew returns up to n requests for pages OpicHits ranks highest by
// hub cash that the refresh scheduler does not yet track — i.e. pages
// discovered but never crawled.
func (b *Backend) fillFromNew(n int) ([]frontier.Request, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := b.hits.HighestHCash(n*4 + 8)
	if err != nil {
		return nil, err
	}

	var out []frontier.Request
	for _, c := range candidates {
		if len(out) >= n {
			break
		}
		known, err := b.freq.Contains(c.PageID)
		if err != nil {
			return nil, err
		}
		if known {
			continue
		}
		req, found, err := b.requestFor(c.PageID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// GetNextRequests fills up to maxN requests by draining the refresh
// scheduler up to refreshCeiling(maxN), then filling the remainder from
// OpicHits' highest-ranked new candidates. Neither draw is guaranteed to
// return everything asked of it (the scheduler may hold fewer pages than
// requested; new-candidate ranking may be exhausted of untracked pages), so
// whichever source comes up short is backfilled from the other, mirroring
// the teacher's buildLinksToDispatch trailing backfill loops: if either
// source is empty, the other is used exclusively, per spec §4.7.
func (b *Backend) GetNextRequests(maxN int) ([]frontier.Request, error) {
	b.Mu.Lock()
	defer b.Mu.Unlock()

	if maxN <= 0 {
		return nil, nil
	}

	freqCount, err := b.freq.Count()
	if err != nil {
		return nil, err
	}
	if freqCount == 0 {
		return b.fillFromNew(maxN)
	}

	ceiling := b.refreshCeiling(maxN)
	refreshIDs, err := b.freq.GetNextPages(ceiling)
	if err != nil {
		return nil, err
	}

	var out []frontier.Request
	for _, p := range refreshIDs {
		req, found, err := b.requestFor(p)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, req)
		}
	}

	remaining := maxN - len(out)
	if remaining > 0 {
		fresh, err := b.fillFromNew(remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, fresh...)
		remaining = maxN - len(out)
	}

	// fillFromNew came up short (every ranked candidate is already tracked
	// by FreqStore, or OpicHits has nothing left to rank): drain further
	// into the refresh scheduler beyond ceiling rather than return a
	// truncated batch while the scheduler still has supply.
	if remaining > 0 {
		more, err := b.freq.GetNextPages(ceiling + remaining)
		if err != nil {
			return nil, err
		}
		alreadyOut := make(map[string]struct{}, len(out))
		for _, r := range out {
			alreadyOut[string(r.Fingerprint)] = struct{}{}
		}
		for _, p := range more {
			if remaining <= 0 {
				break
			}
			if _, ok := alreadyOut[string(p)]; ok {
				continue
			}
			req, found, err := b.requestFor(p)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			out = append(out, req)
			alreadyOut[string(p)] = struct{}{}
			remaining--
		}
	}

	return out, nil
}
