// Package graph implements GraphStore (spec §4 L2): a directed multigraph of
// page ids with successor/predecessor enumeration, stored as an adjacency
// table keyed by edge endpoints rather than linked objects (spec §9 "Cyclic
// references"). Cycles need no special handling here.
package graph

import (
	"encoding/binary"
	"math"

	"github.com/iParadigms/frontier"
	"github.com/iParadigms/frontier/store"
)

const (
	tableNodes = "graph_nodes"
	tableEdges = "graph_edges_by_src" // key: len(src)(4 bytes BE)||src||dst -> w1,w2
	tablePreds = "graph_edges_by_dst" // key: len(dst)(4 bytes BE)||dst||src -> w1,w2
)

// lenPrefix renders a 4-byte big-endian length header. Keys are built as
// lenPrefix(a)||a||b so that a's prefix is self-delimiting: a can contain any
// byte value (including 0x00) without creating ambiguity when later keys are
// split back into their two page-id components.
func lenPrefix(b []byte) []byte {
	h := make([]byte, 4)
	binary.BigEndian.PutUint32(h, uint32(len(b)))
	return h
}

// Store is a directed multigraph of frontier.PageID nodes.
type Store struct {
	nodes *nodeTable
	edges store.Table
	preds store.Table
}

type nodeTable struct {
	t store.Table
}

// Open builds a graph Store over the named tables of db.
func Open(db store.DB) (*Store, error) {
	nodes, err := db.Table(tableNodes)
	if err != nil {
		return nil, err
	}
	edges, err := db.Table(tableEdges)
	if err != nil {
		return nil, err
	}
	preds, err := db.Table(tablePreds)
	if err != nil {
		return nil, err
	}
	return &Store{nodes: &nodeTable{t: nodes}, edges: edges, preds: preds}, nil
}

func edgeKey(src, dst frontier.PageID) []byte {
	k := make([]byte, 0, 4+len(src)+len(dst))
	k = append(k, lenPrefix(src)...)
	k = append(k, src...)
	k = append(k, dst...)
	return k
}

func predKey(src, dst frontier.PageID) []byte {
	k := make([]byte, 0, 4+len(dst)+len(src))
	k = append(k, lenPrefix(dst)...)
	k = append(k, dst...)
	k = append(k, src...)
	return k
}

// edgePrefix returns the self-delimiting prefix identifying every edge
// keyed by a given first component (src for tableEdges, dst for tablePreds).
func edgePrefix(first frontier.PageID) []byte {
	p := make([]byte, 0, 4+len(first))
	p = append(p, lenPrefix(first)...)
	p = append(p, first...)
	return p
}

func encodeWeights(w1, w2 float64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(w1))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(w2))
	return buf
}

func decodeWeights(b []byte) (float64, float64) {
	w1 := math.Float64frombits(binary.BigEndian.Uint64(b[0:8]))
	w2 := math.Float64frombits(binary.BigEndian.Uint64(b[8:16]))
	return w1, w2
}

// AddNode idempotently registers p as a known node. Returns whether it was
// newly added.
func (s *Store) AddNode(p frontier.PageID) (bool, error) {
	if len(p) == 0 {
		return false, frontier.ErrEmptyPageID
	}
	return s.nodes.t.PutIfAbsent(p, []byte{})
}

// HasNode reports whether p has been registered, directly or via AddEdge.
func (s *Store) HasNode(p frontier.PageID) (bool, error) {
	_, found, err := s.nodes.t.Get(p)
	return found, err
}

// AddEdge idempotently registers a directed edge src->dst with weights
// (w1, w2), registering both endpoints as nodes if they are new. Re-adding
// an edge with identical weights changes nothing (spec testable property 5).
func (s *Store) AddEdge(src, dst frontier.PageID, w1, w2 float64) (bool, error) {
	if len(src) == 0 || len(dst) == 0 {
		return false, frontier.ErrEmptyPageID
	}
	if _, err := s.AddNode(src); err != nil {
		return false, err
	}
	if _, err := s.AddNode(dst); err != nil {
		return false, err
	}

	encoded := encodeWeights(w1, w2)
	existing, found, err := s.edges.Get(edgeKey(src, dst))
	if err != nil {
		return false, err
	}
	if found && string(existing) == string(encoded) {
		return false, nil
	}
	if err := s.edges.Put(edgeKey(src, dst), encoded); err != nil {
		return false, err
	}
	if err := s.preds.Put(predKey(src, dst), encoded); err != nil {
		return false, err
	}
	return !found, nil
}

// EdgeWeights returns the stored weights for src->dst, if the edge exists.
func (s *Store) EdgeWeights(src, dst frontier.PageID) (w1, w2 float64, found bool, err error) {
	v, found, err := s.edges.Get(edgeKey(src, dst))
	if err != nil || !found {
		return 0, 0, found, err
	}
	w1, w2 = decodeWeights(v)
	return w1, w2, true, nil
}

// DeleteNode removes p and every edge touching it, in both directions.
func (s *Store) DeleteNode(p frontier.PageID) error {
	succ, err := s.Successors(p)
	if err != nil {
		return err
	}
	for _, dst := range succ {
		if err := s.edges.Delete(edgeKey(p, dst)); err != nil {
			return err
		}
		if err := s.preds.Delete(predKey(p, dst)); err != nil {
			return err
		}
	}

	pred, err := s.Predecessors(p)
	if err != nil {
		return err
	}
	for _, src := range pred {
		if err := s.edges.Delete(edgeKey(src, p)); err != nil {
			return err
		}
		if err := s.preds.Delete(predKey(src, p)); err != nil {
			return err
		}
	}

	return s.nodes.t.Delete(p)
}

// Successors returns every dst such that an edge p->dst exists.
func (s *Store) Successors(p frontier.PageID) ([]frontier.PageID, error) {
	prefix := edgePrefix(p)
	var out []frontier.PageID
	err := s.edges.Scan(true, prefix, 0, func(key, _ []byte) (bool, error) {
		dst := append([]byte{}, key[len(prefix):]...)
		out = append(out, dst)
		return true, nil
	})
	return out, err
}

// Predecessors returns every src such that an edge src->p exists.
func (s *Store) Predecessors(p frontier.PageID) ([]frontier.PageID, error) {
	prefix := edgePrefix(p)
	var out []frontier.PageID
	err := s.preds.Scan(true, prefix, 0, func(key, _ []byte) (bool, error) {
		src := append([]byte{}, key[len(prefix):]...)
		out = append(out, src)
		return true, nil
	})
	return out, err
}

// Nodes calls f for every known node until f returns false.
func (s *Store) Nodes(f func(frontier.PageID) (bool, error)) error {
	return s.nodes.t.Scan(true, nil, 0, func(key, _ []byte) (bool, error) {
		return f(append([]byte{}, key...))
	})
}

// Edges calls f for every stored edge until f returns false.
func (s *Store) Edges(f func(frontier.Edge) (bool, error)) error {
	return s.edges.Scan(true, nil, 0, func(key, value []byte) (bool, error) {
		srcLen := binary.BigEndian.Uint32(key[0:4])
		src := append([]byte{}, key[4:4+srcLen]...)
		dst := append([]byte{}, key[4+srcLen:]...)
		w1, w2 := decodeWeights(value)
		return f(frontier.Edge{Src: src, Dst: dst, W1: w1, W2: w2})
	})
}

// Clear deletes every node and edge.
func (s *Store) Clear() error {
	if err := s.nodes.t.Clear(); err != nil {
		return err
	}
	if err := s.edges.Clear(); err != nil {
		return err
	}
	return s.preds.Clear()
}
