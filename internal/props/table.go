package props

import (
	"fmt"
	"io"
	"sync"
)

// Table is a concurrency safe string map. A lookup that misses falls back to
// the parent table, if any.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
	origins map[string]string
	parent  *Table
}

// NewTable returns an empty table falling back to parent, which may be nil.
func NewTable(parent *Table) *Table {
	return &Table{
		entries: make(map[string]string),
		origins: make(map[string]string),
		parent:  parent,
	}
}

// Parent returns the fallback table.
func (t *Table) Parent() *Table {
	return t.parent
}

// Get returns the value of key from t or, failing that, from its parents.
func (t *Table) Get(key string) (string, bool) {
	for tbl := t; tbl != nil; tbl = tbl.parent {
		tbl.mu.RLock()
		v, ok := tbl.entries[key]
		tbl.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return "", false
}

// Set stores value under key in t itself.
func (t *Table) Set(key, value string) {
	t.SetWithOrigin(key, value, "")
}

// SetWithOrigin stores value and records where it came from.
func (t *Table) SetWithOrigin(key, value, origin string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = value
	if origin == "" {
		delete(t.origins, key)
	} else {
		t.origins[key] = origin
	}
}

// Origin returns the recorded origin of key, searching parents like Get.
func (t *Table) Origin(key string) (string, bool) {
	for tbl := t; tbl != nil; tbl = tbl.parent {
		tbl.mu.RLock()
		_, found := tbl.entries[key]
		origin, ok := tbl.origins[key]
		tbl.mu.RUnlock()
		if found {
			return origin, ok
		}
	}
	return "", false
}

// Len returns the number of entries held by t itself.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Load parses a properties document from r into t, recording origin as the
// source of every entry.
func (t *Table) Load(r io.Reader, origin string) error {
	err := Parse(r, origin, func(key, value string) {
		t.SetWithOrigin(key, value, origin)
	})
	if err != nil {
		return fmt.Errorf("cannot load properties: %w", err)
	}
	return nil
}
