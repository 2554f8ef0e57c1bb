// Package spt implements the per-process supplemental page table: the
// map from a page-aligned user virtual address to its page descriptor.
// It is built on the same lock-striped hash table the rest of this
// codebase uses for other large keyed collections, keyed here by va.
package spt

import (
	"vmkaist/defs"
	"vmkaist/hashtable"
	"vmkaist/mem"
	"vmkaist/page"
)

/// Table is one process's supplemental page table. Keys are unique:
/// a duplicate Insert fails with defs.EDUP.
type Table struct {
	ht *hashtable.Hashtable_t
}

/// New creates an empty SPT sized for an initial estimate of nslots
/// distinct pages; the underlying hash table grows chain length, not
/// bucket count, so nslots is a tuning knob, not a hard limit.
func New(nslots int) *Table {
	if nslots <= 0 {
		nslots = 64
	}
	return &Table{ht: hashtable.MkHash(nslots)}
}

/// Find rounds va down to its page and returns the owning page
/// descriptor, if any.
func (t *Table) Find(va uintptr) (*page.Page, bool) {
	key := mem.PgRoundDown(va)
	v, ok := t.ht.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*page.Page), true
}

/// Insert adds p under its own (already page-aligned) VA. It fails
/// with defs.EDUP if an entry already exists at that address.
func (t *Table) Insert(p *page.Page) defs.Err_t {
	_, inserted := t.ht.Set(p.VA, p)
	if !inserted {
		return defs.EDUP
	}
	return 0
}

/// Remove unlinks and destroys the page at va. It is a no-op if no
/// entry exists there.
func (t *Table) Remove(va uintptr) {
	key := mem.PgRoundDown(va)
	v, ok := t.ht.Get(key)
	if !ok {
		return
	}
	p := v.(*page.Page)
	p.Destroy()
	t.ht.Del(key)
}

/// Kill destroys every entry, tolerating pages in any state (uninit,
/// resident, or swapped out). Used at process exit.
func (t *Table) Kill() {
	for _, pair := range t.ht.Elems() {
		p := pair.Value.(*page.Page)
		p.Destroy()
		t.ht.Del(pair.Key)
	}
}

/// Copy populates dst with one counterpart of every entry in src, per
/// the fork-copy rule: uninit entries get an identical lazy clone,
/// anything else shares the parent's frame under a forced read-only
/// mapping on both sides. dstEnv supplies the child process's own MMU
/// mapper (and the process-wide frame/swap tables, unchanged).
func Copy(dst *Table, dstEnv *page.Env, src *Table) defs.Err_t {
	for _, e := range src.Elems() {
		child, err := e.Page.Fork(dstEnv)
		if err != 0 {
			return err
		}
		if ins := dst.Insert(child); ins != 0 {
			return ins
		}
	}
	return 0
}

/// Len reports the number of live entries, mainly for tests and P1/P2
/// bookkeeping.
func (t *Table) Len() int {
	return t.ht.Size()
}

/// Elems returns every (va, page) pair currently in the table.
func (t *Table) Elems() []Entry {
	pairs := t.ht.Elems()
	out := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Entry{VA: p.Key.(uintptr), Page: p.Value.(*page.Page)})
	}
	return out
}

/// Entry is one (va, page) pair, as returned by Elems.
type Entry struct {
	VA   uintptr
	Page *page.Page
}
