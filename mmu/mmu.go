// Package mmu is the simulated hardware MMU this module's fault
// handler drives: per-address-space mappings with accessed and dirty
// bits, queried and cleared the same way a real page-table walker
// would expose PTE_A/PTE_D. It is the concrete implementation of
// page.Mapper used by the vm package and by tests.
package mmu

import "sync"

type entry struct {
	kva      []byte
	writable bool
	accessed bool
	dirty    bool
}

/// Table is one process's simulated page table: a mapping from user
/// virtual address to the frame backing it, plus the accessed/dirty
/// bits the frame table's clock algorithm and the file back-end's
/// write-back decision each depend on.
type Table struct {
	mu      sync.Mutex
	entries map[uintptr]*entry
}

/// New creates an empty mapping table.
func New() *Table {
	return &Table{entries: make(map[uintptr]*entry)}
}

/// SetMapping installs or replaces the mapping for va. A freshly
/// installed mapping starts marked accessed, matching real hardware,
/// which sets the accessed bit on the very translation that created
/// it.
func (t *Table) SetMapping(va uintptr, kva []byte, writable bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[va] = &entry{kva: kva, writable: writable, accessed: true}
	return nil
}

/// ClearMapping removes va's mapping entirely.
func (t *Table) ClearMapping(va uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, va)
}

/// IsAccessed implements page.Mapper.
func (t *Table) IsAccessed(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[va]
	return e != nil && e.accessed
}

/// SetAccessed implements page.Mapper.
func (t *Table) SetAccessed(va uintptr, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.entries[va]; e != nil {
		e.accessed = v
	}
}

/// IsDirty implements page.Mapper.
func (t *Table) IsDirty(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[va]
	return e != nil && e.dirty
}

/// SetDirty implements page.Mapper.
func (t *Table) SetDirty(va uintptr, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.entries[va]; e != nil {
		e.dirty = v
	}
}

/// Present reports whether va currently has a hardware mapping, and if
/// so, whether it is writable, which is enough to tell a protection
/// fault (present, wrong permission) from a not-present fault without
/// reaching into package page's internals. The fault handler itself
/// takes that distinction as its notPresent argument.
func (t *Table) Present(va uintptr) (writable, present bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[va]
	if e == nil {
		return false, false
	}
	return e.writable, true
}
