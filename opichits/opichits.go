// Package opichits implements the OPIC-HITS engine (spec §4.2): an
// incremental, cash-flow approximation of HITS hub/authority scoring, with a
// virtual sink page absorbing cash from dangling nodes and a
// relevance-weighted authority-flow rule deciding how much authority cash a
// page returns to its in-links versus the sink.
package opichits

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/graph"
	"github.com/iParadigms/frontier/hitsdb"
	"github.com/iParadigms/frontier/store"
)

const tableState = "opichits_state"

var stateKey = []byte("state")

// Config tunes the engine's behaviour.
type Config struct {
	// TimeWindow, when non-zero, makes history roll-up a leaky-integrator
	// approximation over this window instead of an exact cumulative sum
	// (spec §4.2.3). Zero disables the window.
	TimeWindow float64

	// BatchMultiplier scales how many top-cash pages are refreshed per
	// Update iteration: n = BatchMultiplier * max(1, len(marked)). Defaults
	// to 20 if zero, matching the original "update proportional to the rate
	// of graph growth" heuristic (Open Question 2).
	BatchMultiplier int
}

func (c Config) batchMultiplier() int {
	if c.BatchMultiplier <= 0 {
		return 20
	}
	return c.BatchMultiplier
}

// RelevanceFunc returns a page's external relevance in [0, 1], or found=false
// if unknown, in which case the engine treats it as 0.5 (no information).
type RelevanceFunc func(p frontier.PageID) (relevance float64, found bool)

// Engine runs the OPIC-HITS iteration over a graph.Store/hitsdb.Store pair.
type Engine struct {
	graph     *graph.Store
	scores    *hitsdb.Store
	relevance RelevanceFunc
	cfg       Config
	state     store.Table

	nPages         int
	hTotal, aTotal float64
	toUpdate       []frontier.PageID
	time           float64
	virtual        frontier.HitsScore
}

// New builds an Engine over g/s, restoring persisted virtual-page and
// virtual-clock state from db if this is a reopened store (spec §4.3: "must
// persist across process restart"), then registering any graph node that has
// no score yet.
func New(db store.DB, g *graph.Store, s *hitsdb.Store, relevance RelevanceFunc, cfg Config) (*Engine, error) {
	state, err := db.Table(tableState)
	if err != nil {
		return nil, err
	}

	count, err := s.Count()
	if err != nil {
		return nil, err
	}
	hTotal, err := s.HTotal()
	if err != nil {
		return nil, err
	}
	aTotal, err := s.ATotal()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		graph:     g,
		scores:    s,
		relevance: relevance,
		cfg:       cfg,
		state:     state,
		nPages:    count,
		hTotal:    hTotal,
		aTotal:    aTotal,
		virtual:   frontier.HitsScore{HCash: 1.0, ACash: 1.0},
	}

	if buf, found, err := state.Get(stateKey); err != nil {
		return nil, err
	} else if found {
		e.time, e.virtual = decodeState(buf)
	}

	if err := g.Nodes(func(p frontier.PageID) (bool, error) {
		_, err := e.AddPage(p)
		return true, err
	}); err != nil {
		return nil, err
	}

	return e, nil
}

func encodeState(t float64, v frontier.HitsScore) []byte {
	buf := make([]byte, 56)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(t))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(v.HHistory))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(v.HCash))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(v.HLast))
	binary.BigEndian.PutUint64(buf[32:40], math.Float64bits(v.AHistory))
	binary.BigEndian.PutUint64(buf[40:48], math.Float64bits(v.ACash))
	binary.BigEndian.PutUint64(buf[48:56], math.Float64bits(v.ALast))
	return buf
}

func decodeState(buf []byte) (float64, frontier.HitsScore) {
	t := math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))
	v := frontier.HitsScore{
		HHistory: math.Float64frombits(binary.BigEndian.Uint64(buf[8:16])),
		HCash:    math.Float64frombits(binary.BigEndian.Uint64(buf[16:24])),
		HLast:    math.Float64frombits(binary.BigEndian.Uint64(buf[24:32])),
		AHistory: math.Float64frombits(binary.BigEndian.Uint64(buf[32:40])),
		ACash:    math.Float64frombits(binary.BigEndian.Uint64(buf[40:48])),
		ALast:    math.Float64frombits(binary.BigEndian.Uint64(buf[48:56])),
	}
	return t, v
}

// MarkUpdate flags p to be prioritised in the next Update call, irrespective
// of its accumulated cash.
func (e *Engine) MarkUpdate(p frontier.PageID) {
	e.toUpdate = append(e.toUpdate, p)
}

// AddPage registers p with a fresh HitsScore (cash=1 on both channels) if it
// is not already scored. Returns whether it was newly added.
func (e *Engine) AddPage(p frontier.PageID) (bool, error) {
	contains, err := e.scores.Contains(p)
	if err != nil {
		return false, err
	}
	if contains {
		return false, nil
	}

	e.nPages++
	sc := frontier.HitsScore{
		HHistory: 0, HCash: 1.0, HLast: e.time,
		AHistory: 0, ACash: 1.0, ALast: e.time,
	}
	if err := e.scores.Add(p, sc); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) getPageScore(p frontier.PageID) (frontier.HitsScore, error) {
	if _, err := e.AddPage(p); err != nil {
		return frontier.HitsScore{}, err
	}
	sc, _, err := e.scores.Get(p)
	return sc, err
}

func (e *Engine) historyInterpolator(delta, history, cash float64) float64 {
	f := delta / e.cfg.TimeWindow
	if f < 1.0 {
		return history*(1.0-f) + cash
	}
	return cash / f
}

func (e *Engine) updatedPageH(sc frontier.HitsScore) frontier.HitsScore {
	var hHistoryNew float64
	if e.cfg.TimeWindow == 0 {
		hHistoryNew = sc.HHistory + sc.HCash
	} else {
		hHistoryNew = e.historyInterpolator(e.time-sc.HLast, sc.HHistory, sc.HCash)
	}
	return frontier.HitsScore{
		HHistory: hHistoryNew, HCash: 0, HLast: e.time,
		AHistory: sc.AHistory, ACash: sc.ACash, ALast: sc.ALast,
	}
}

func (e *Engine) updatedPageA(sc frontier.HitsScore) frontier.HitsScore {
	var aHistoryNew float64
	if e.cfg.TimeWindow == 0 {
		aHistoryNew = sc.AHistory + sc.ACash
	} else {
		aHistoryNew = e.historyInterpolator(e.time-sc.ALast, sc.AHistory, sc.ACash)
	}
	return frontier.HitsScore{
		HHistory: sc.HHistory, HCash: sc.HCash, HLast: sc.HLast,
		AHistory: aHistoryNew, ACash: 0, ALast: e.time,
	}
}

func (e *Engine) updateVirtualPage() error {
	if e.nPages <= 0 {
		return nil
	}
	hDist := e.virtual.ACash / float64(e.nPages)
	aDist := e.virtual.HCash / float64(e.nPages)
	if err := e.scores.IncreaseAllCash(hDist, aDist); err != nil {
		return err
	}
	e.virtual = e.updatedPageH(e.updatedPageA(e.virtual))
	return nil
}

// excludeSelf drops p from ids, since self-loops are legal graph edges
// (spec.md §3) but the cash-flow steps must not distribute a page's cash to
// itself, or the per-iteration conservation invariant breaks.
func excludeSelf(p frontier.PageID, ids []frontier.PageID) []frontier.PageID {
	out := ids[:0:0]
	for _, id := range ids {
		if !p.Equal(id) {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) updatePageH(p frontier.PageID) error {
	sc, err := e.getPageScore(p)
	if err != nil {
		return err
	}
	succAll, err := e.graph.Successors(p)
	if err != nil {
		return err
	}
	succ := excludeSelf(p, succAll)

	aDist := sc.HCash / float64(len(succ)+1)
	if len(succ) > 0 {
		if err := e.scores.IncreaseACash(succ, aDist); err != nil {
			return err
		}
	}
	e.virtual.ACash += aDist

	newSc := e.updatedPageH(sc)
	if err := e.scores.Set(p, newSc); err != nil {
		return err
	}
	e.hTotal += newSc.HHistory - sc.HHistory
	e.time += sc.HCash
	return nil
}

// z computes the relevance-weighted authority-flow fraction: the share of a
// page's authority cash that flows back to its predecessors rather than the
// virtual sink. z(0)=0, z(1)=1/N, z(0.5)=1/(N+1) (the virtual page counts as
// any other predecessor); the polynomial below is the unique second-order
// fit through those three points. Clamped to [0, 1/N] (Open Question 3) so
// neither the hub share nor the sink share ("1 - z*N") goes negative.
func z(r float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	nf := float64(n)
	val := 2.0 * r / nf * (2.0*nf/(nf+1)*(1-r) + (r - 0.5))
	if val < 0 {
		return 0
	}
	if 1-val*nf < 0 {
		return 1 / nf
	}
	return val
}

func (e *Engine) updatePageA(p frontier.PageID) error {
	sc, err := e.getPageScore(p)
	if err != nil {
		return err
	}
	predAll, err := e.graph.Predecessors(p)
	if err != nil {
		return err
	}
	pred := excludeSelf(p, predAll)
	n := len(pred)

	r := 0.5
	if e.relevance != nil {
		if rel, found := e.relevance(p); found {
			r = rel
		}
	}
	zr := z(r, n)

	if n > 0 {
		if err := e.scores.IncreaseHCash(pred, sc.ACash*zr); err != nil {
			return err
		}
	}
	e.virtual.HCash += sc.ACash * (1 - zr*float64(n))

	newSc := e.updatedPageA(sc)
	if err := e.scores.Set(p, newSc); err != nil {
		return err
	}
	e.aTotal += newSc.AHistory - sc.AHistory
	e.time += sc.ACash
	return nil
}

type mixedEntry struct {
	cash   float64
	pageID frontier.PageID
	isHub  bool
}

func entryKey(m mixedEntry) string {
	if m.isHub {
		return "h:" + string(m.pageID)
	}
	return "a:" + string(m.pageID)
}

// Update runs nIter cash-flow iterations. Each iteration refreshes the top
// BatchMultiplier*max(1,len(marked)) pages by cash (merging the highest-hub
// and highest-authority candidates), unconditionally adds every marked page
// as both a hub and an authority entry (the must-update set bypasses
// cash-based selection entirely, it is never competed out by truncation),
// then drains accumulated virtual-page cash back into every page. Returns
// the pages whose hub/authority score was touched in the final iteration.
func (e *Engine) Update(nIter int) (hubUpdated, authUpdated []frontier.PageID, err error) {
	marked := e.toUpdate
	nUpdates := e.cfg.batchMultiplier() * maxInt(1, len(marked))

	var mixed []mixedEntry
	for i := 0; i < nIter; i++ {
		highestH, err := e.scores.HighestHCash(nUpdates)
		if err != nil {
			return nil, nil, err
		}
		highestA, err := e.scores.HighestACash(nUpdates)
		if err != nil {
			return nil, nil, err
		}

		mixed = mixed[:0]
		for _, sp := range highestH {
			mixed = append(mixed, mixedEntry{cash: sp.Cash, pageID: sp.PageID, isHub: true})
		}
		for _, sp := range highestA {
			mixed = append(mixed, mixedEntry{cash: sp.Cash, pageID: sp.PageID, isHub: false})
		}
		sort.SliceStable(mixed, func(i, j int) bool {
			if mixed[i].cash != mixed[j].cash {
				return mixed[i].cash > mixed[j].cash
			}
			return string(mixed[i].pageID) > string(mixed[j].pageID)
		})
		if len(mixed) > nUpdates {
			mixed = mixed[:nUpdates]
		}

		seen := make(map[string]struct{}, len(mixed)+2*len(marked))
		for _, m := range mixed {
			seen[entryKey(m)] = struct{}{}
		}
		for _, p := range marked {
			for _, isHub := range [...]bool{true, false} {
				m := mixedEntry{pageID: p, isHub: isHub}
				key := entryKey(m)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				mixed = append(mixed, m)
			}
		}

		for _, m := range mixed {
			if m.isHub {
				err = e.updatePageH(m.pageID)
			} else {
				err = e.updatePageA(m.pageID)
			}
			if err != nil {
				return nil, nil, err
			}
		}

		if err := e.updateVirtualPage(); err != nil {
			return nil, nil, err
		}
	}
	e.toUpdate = nil

	for _, m := range mixed {
		if m.isHub {
			hubUpdated = append(hubUpdated, m.pageID)
		} else {
			authUpdated = append(authUpdated, m.pageID)
		}
	}
	return hubUpdated, authUpdated, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e *Engine) relativeScore(sc frontier.HitsScore) (hRel, aRel float64) {
	if e.hTotal > 0 {
		hRel = sc.HHistory / e.hTotal
	}
	if e.aTotal > 0 {
		aRel = sc.AHistory / e.aTotal
	}
	return hRel, aRel
}

// GetScores returns the normalised hub and authority score for p.
func (e *Engine) GetScores(p frontier.PageID) (hRel, aRel float64, err error) {
	sc, err := e.getPageScore(p)
	if err != nil {
		return 0, 0, err
	}
	hRel, aRel = e.relativeScore(sc)
	return hRel, aRel, nil
}

// IterScores calls f with the normalised hub/authority score of every known
// page, until f returns false.
func (e *Engine) IterScores(f func(p frontier.PageID, hRel, aRel float64) bool) error {
	return e.scores.Iter(func(p frontier.PageID, sc frontier.HitsScore) (bool, error) {
		hRel, aRel := e.relativeScore(sc)
		return f(p, hRel, aRel), nil
	})
}

// HMean returns the mean hub history across all scored pages (1.0 if none),
// supplementing the contract with the original source's h_mean/a_mean
// properties, useful for normalisation diagnostics.
func (e *Engine) HMean() float64 {
	if e.nPages <= 0 {
		return 1.0
	}
	return e.hTotal / float64(e.nPages)
}

// AMean returns the mean authority history across all scored pages.
func (e *Engine) AMean() float64 {
	if e.nPages <= 0 {
		return 1.0
	}
	return e.aTotal / float64(e.nPages)
}

// Close persists virtual-page and virtual-clock state so a later New call
// against the same store restores them exactly.
func (e *Engine) Close() error {
	return e.state.Put(stateKey, encodeState(e.time, e.virtual))
}
