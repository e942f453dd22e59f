package runtime

import (
	"sort"

	"github.com/cornelk/hashmap"
)

// Table is the concurrency-safe id to context store. Lookups are lock-free.
type Table struct {
	m *hashmap.HashMap
}

// NewTable constructs an empty table.
func NewTable() *Table {
	return &Table{m: &hashmap.HashMap{}}
}

// Insert stores c unless a context already holds its id.
func (t *Table) Insert(c *Context) bool {
	return t.m.Insert(c.id, c)
}

// Get returns the live context for id.
func (t *Table) Get(id string) (*Context, bool) {
	v, ok := t.m.GetStringKey(id)
	if !ok {
		return nil, false
	}
	c, ok := v.(*Context)
	return c, ok && c != nil
}

// Remove deletes the entry for c if it is still the stored context.
func (t *Table) Remove(c *Context) {
	if current, ok := t.Get(c.id); ok && current == c {
		t.m.Del(c.id)
	}
}

// Len returns the number of live contexts.
func (t *Table) Len() int {
	return t.m.Len()
}

// Contexts returns every live context ordered by id.
func (t *Table) Contexts() []*Context {
	out := make([]*Context, 0, t.m.Len())
	for kv := range t.m.Iter() {
		if c, ok := kv.Value.(*Context); ok && c != nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
