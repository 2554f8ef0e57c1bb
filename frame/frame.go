// Package frame implements the global physical-frame pool: the
// doubly-linked frame table, second-chance (clock) eviction, and the
// reference counting that lets copy-on-write pages share a frame. It
// is the one place in the subsystem that knows how to turn "no free
// physical pages" into "a victim, written back if needed".
package frame

import (
	"container/list"
	"sync"

	"vmkaist/mem"
	"vmkaist/oommsg"
	"vmkaist/stats"
)

/// Evictable is the capability a resident page must give the frame
/// table so it can be considered, and if chosen, written back during a
/// clock scan. It is implemented by *page.Page; the frame table never
/// imports package page, which is what keeps the page<->frame cycle
/// from becoming a Go import cycle.
type Evictable interface {
	/// Accessed reports the hardware accessed bit for this page.
	Accessed() bool
	/// ClearAccessed gives the page a second chance.
	ClearAccessed()
	/// SwapOut writes the page's frame back to its backing store (swap
	/// or file) and detaches it. It returns false if the write-back
	/// failed (e.g. swap exhausted), in which case the frame is not a
	/// usable victim and the scan must move on.
	SwapOut() bool
	/// Label identifies the page for diagnostics (package diag), e.g.
	/// its virtual address.
	Label() string
}

/// Frame is the software descriptor for one physical user-pool page.
type Frame struct {
	/// Kva is the frame's backing storage.
	Kva []byte
	/// Owner is the page currently resident in this frame, or nil
	/// between eviction and reuse.
	Owner Evictable
	/// RefCnt is >=1 for any frame still linked into the table; >1
	/// means the frame is shared by copy-on-write siblings.
	RefCnt int32

	elem *list.Element
}

/// Stat counts frame-table activity. Exported so package metrics can
/// mirror it into Prometheus gauges/counters.
var Stat struct {
	Gets      stats.Counter_t
	Evictions stats.Counter_t
	OOMs      stats.Counter_t
}

/// Table is the global frame table: a clock list of resident frames
/// plus the lock that serializes allocation, eviction, and refcount
/// changes, per the lock-ordering rule that frame_table_lock is always
/// the outermost lock taken.
type Table struct {
	sync.Mutex
	pool mem.Pool
	list *list.List
	hand *list.Element
}

/// NewTable creates a frame table backed by the given physical pool.
func NewTable(pool mem.Pool) *Table {
	return &Table{
		pool: pool,
		list: list.New(),
	}
}

/// Get returns a frame ready for a new owner: either a fresh page from
/// the pool, or a victim evicted via second-chance clock replacement.
/// The returned frame has RefCnt==1, Owner==nil, and zeroed contents.
func (t *Table) Get() (*Frame, bool) {
	t.Lock()
	defer t.Unlock()

	if kva, ok := t.pool.Alloc(true); ok {
		f := &Frame{Kva: kva, RefCnt: 1}
		f.elem = t.list.PushBack(f)
		if t.hand == nil {
			t.hand = f.elem
		}
		Stat.Gets.Inc()
		return f, true
	}

	f, ok := t.evict()
	if !ok {
		Stat.OOMs.Inc()
		oommsg.Notify(1)
		return nil, false
	}
	Stat.Gets.Inc()
	return f, true
}

// evict implements the second-chance clock scan described in the frame
// table's eviction algorithm. The caller must already hold t.Mutex;
// the lock is held for the scan's entirety so no other thread can
// evict the same frame out from under it.
func (t *Table) evict() (*Frame, bool) {
	n := t.list.Len()
	if n == 0 {
		return nil, false
	}
	// Two full passes are sufficient: the first clears every access
	// bit it finds set, so the second is guaranteed to find a victim
	// unless every swap_out attempt along the way fails.
	for i := 0; i < 2*n; i++ {
		e := t.hand
		f := e.Value.(*Frame)
		t.advance()

		if f.Owner == nil {
			zero(f.Kva)
			f.RefCnt = 1
			Stat.Evictions.Inc()
			return f, true
		}
		if f.Owner.Accessed() {
			f.Owner.ClearAccessed()
			continue
		}
		if f.Owner.SwapOut() {
			f.Owner = nil
			zero(f.Kva)
			f.RefCnt = 1
			Stat.Evictions.Inc()
			return f, true
		}
		// swap_out failed (e.g. out of swap slots); this frame is not
		// a usable victim, try the next one.
	}
	return nil, false
}

func (t *Table) advance() {
	next := t.hand.Next()
	if next == nil {
		next = t.list.Front()
	}
	t.hand = next
}

/// Ref bumps a frame's reference count; used when a fork makes a page
/// copy-on-write shared with its child.
func (t *Table) Ref(f *Frame) {
	t.Lock()
	defer t.Unlock()
	f.RefCnt++
}

/// Unref drops a frame's reference count by one. When the count
/// reaches zero the frame is unlinked from the table and its storage
/// is returned to the physical pool; Unref reports whether that
/// happened.
func (t *Table) Unref(f *Frame) bool {
	t.Lock()
	defer t.Unlock()
	f.RefCnt--
	if f.RefCnt < 0 {
		panic("frame refcount underflow")
	}
	if f.RefCnt > 0 {
		return false
	}
	if t.hand == f.elem {
		t.advance()
		if t.hand == f.elem {
			t.hand = nil
		}
	}
	t.list.Remove(f.elem)
	f.elem = nil
	f.Owner = nil
	t.pool.Free(f.Kva)
	return true
}

/// Len reports the number of frames currently linked into the table
/// (resident or mid-eviction), for tests and metrics.
func (t *Table) Len() int {
	t.Lock()
	defer t.Unlock()
	return t.list.Len()
}

/// Snapshot is a point-in-time description of one frame, for
/// diagnostics.
type Snapshot struct {
	Resident bool
	Label    string
}

/// Snapshots reports one Snapshot per frame currently in the table, in
/// clock order.
func (t *Table) Snapshots() []Snapshot {
	t.Lock()
	defer t.Unlock()
	out := make([]Snapshot, 0, t.list.Len())
	for e := t.list.Front(); e != nil; e = e.Next() {
		f := e.Value.(*Frame)
		if f.Owner == nil {
			out = append(out, Snapshot{Resident: false, Label: "free"})
			continue
		}
		out = append(out, Snapshot{Resident: true, Label: f.Owner.Label()})
	}
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
