package store

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory DB, used for tests and for frontier.Config.InMemory
// deployments. It implements the same Table contract as Bolt.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
	closed bool
}

// NewMemory constructs an empty in-memory DB.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Table returns the named in-memory table, creating it on first reference.
func (m *Memory) Table(name string) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{data: make(map[string][]byte)}
		m.tables[name] = t
	}
	return t, nil
}

// Close marks the DB closed. In-memory tables hold no external resources.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memoryTable struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (t *memoryTable) PutIfAbsent(key, value []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	if _, ok := t.data[k]; ok {
		return false, nil
	}
	t.data[k] = append([]byte(nil), value...)
	return true, nil
}

func (t *memoryTable) Put(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTable) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, string(key))
	return nil
}

func (t *memoryTable) Get(key []byte) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *memoryTable) Scan(ascending bool, prefix []byte, limit int, f func(key, value []byte) (bool, error)) error {
	t.mu.Lock()
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		if len(prefix) > 0 && !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if ascending {
			return keys[i] < keys[j]
		}
		return keys[i] > keys[j]
	})
	// snapshot values under the lock so f can run without holding it
	type kv struct{ k, v []byte }
	snapshot := make([]kv, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, kv{k: []byte(k), v: append([]byte(nil), t.data[k]...)})
	}
	t.mu.Unlock()

	for i, e := range snapshot {
		if limit > 0 && i >= limit {
			break
		}
		keepGoing, err := f(e.k, e.v)
		if err != nil {
			return err
		}
		if !keepGoing {
			break
		}
	}
	return nil
}

func (t *memoryTable) Count() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.data), nil
}

func (t *memoryTable) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string][]byte)
	return nil
}
