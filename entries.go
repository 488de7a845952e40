// Ordered, read-only view of a catalog's runs.
package runlog

import (
	"fmt"
	"iter"
	"strconv"
)

// Entries presents a catalog as a mapping from run uid to Entry, in index
// order. Entries are built on every access; nothing is materialised up
// front, so membership tests and single lookups stay cheap on large
// catalogs.
type Entries struct {
	c *Catalog
}

// Entries returns the catalog's entry view.
func (c *Catalog) Entries() *Entries {
	return &Entries{c: c}
}

// Len returns the number of entries.
func (e *Entries) Len() int {
	return len(e.c.index.order)
}

// Keys yields run uids in index order.
func (e *Entries) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, uid := range e.c.index.order {
			if !yield(uid) {
				return
			}
		}
	}
}

// Values yields entries in index order.
func (e *Entries) Values() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, uid := range e.c.index.order {
			if !yield(e.c.entry(e.c.index.runs[uid])) {
				return
			}
		}
	}
}

// Items yields uid and entry pairs in index order.
func (e *Entries) Items() iter.Seq2[string, *Entry] {
	return func(yield func(string, *Entry) bool) {
		for _, uid := range e.c.index.order {
			if !yield(uid, e.c.entry(e.c.index.runs[uid])) {
				return
			}
		}
	}
}

// Get returns the entry for uid. Integer keys are reserved for positional
// addressing, which is not supported, and return ErrNotImplemented.
func (e *Entries) Get(uid string) (*Entry, error) {
	if positional(uid) {
		return nil, fmt.Errorf("%w: positional lookup %s", ErrNotImplemented, uid)
	}
	r, err := e.c.index.get(uid)
	if err != nil {
		return nil, err
	}
	return e.c.entry(r), nil
}

// Contains reports whether uid is in the catalog without building an entry.
func (e *Entries) Contains(uid string) bool {
	if positional(uid) {
		return false
	}
	_, ok := e.c.index.runs[uid]
	return ok
}

// positional reports whether key is an integer index such as "0" or "-1".
func positional(key string) bool {
	_, err := strconv.Atoi(key)
	return err == nil
}
