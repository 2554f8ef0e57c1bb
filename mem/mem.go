// Package mem manages the physical user-pool pages that back every
// resident frame in the system. It knows nothing about virtual
// addresses, page tables, or processes -- it just hands out and takes
// back fixed-size byte pages, the same separation of concerns the
// frame table (package frame) relies on via the Pool interface.
package mem

import (
	"sync"

	"vmkaist/util"
)

/// PageShift is the base-2 exponent for the page size.
const PageShift = 12

/// PageSize is the size of a single page in bytes.
const PageSize = 1 << PageShift

/// PageOffsetMask masks the offset bits within a page.
const PageOffsetMask = PageSize - 1

/// Pool is the boundary contract a physical-page allocator must satisfy.
/// It is the "Physical allocator" collaborator from the external
/// interfaces: alloc_user_page(zeroed?) and free_user_page(kva).
type Pool interface {
	/// Alloc returns a fresh page-sized slice, or ok=false if the pool
	/// is exhausted. When zeroed is true the returned page is all zero
	/// bytes.
	Alloc(zeroed bool) (kva []byte, ok bool)
	/// Free returns a page obtained from Alloc back to the pool. kva
	/// must be exactly the slice that Alloc returned.
	Free(kva []byte)
	/// Cap reports the pool's total and currently-free page counts.
	Cap() (total, free int)
}

/// Hostpool_t is a Pool backed by plain host memory: a fixed number of
/// page-sized byte slices pre-allocated at construction time and handed
/// out from a free list under a single lock. It plays the role that
/// Physmem_t's free list plays in the original kernel, minus the
/// per-CPU caches and pmap bookkeeping -- those exist to amortize
/// contention on a real multi-core boot image and to track page-table
/// pages, neither of which this subsystem's MMU boundary exposes.
type Hostpool_t struct {
	sync.Mutex
	pages [][]byte
	free  [][]byte
}

/// NewHostpool allocates npages page-sized buffers up front and returns
/// a Pool that serves them.
func NewHostpool(npages int) *Hostpool_t {
	if npages <= 0 {
		panic("bad pool size")
	}
	hp := &Hostpool_t{
		pages: make([][]byte, npages),
		free:  make([][]byte, 0, npages),
	}
	for i := range hp.pages {
		hp.pages[i] = make([]byte, PageSize)
		hp.free = append(hp.free, hp.pages[i])
	}
	return hp
}

/// Alloc implements Pool.
func (hp *Hostpool_t) Alloc(zeroed bool) ([]byte, bool) {
	hp.Lock()
	defer hp.Unlock()
	n := len(hp.free)
	if n == 0 {
		return nil, false
	}
	pg := hp.free[n-1]
	hp.free = hp.free[:n-1]
	if zeroed {
		zero(pg)
	}
	return pg, true
}

/// Free implements Pool.
func (hp *Hostpool_t) Free(kva []byte) {
	if len(kva) != PageSize {
		panic("not a page")
	}
	hp.Lock()
	defer hp.Unlock()
	if len(hp.free) == cap(hp.free) {
		panic("double free of physical page")
	}
	hp.free = append(hp.free, kva)
}

/// Cap implements Pool.
func (hp *Hostpool_t) Cap() (int, int) {
	hp.Lock()
	defer hp.Unlock()
	return len(hp.pages), len(hp.free)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

/// PgRoundDown aligns a virtual address down to the containing page.
func PgRoundDown(va uintptr) uintptr {
	return util.Rounddown(va, uintptr(PageSize))
}

/// PgRoundUp aligns a virtual address up to the next page boundary.
func PgRoundUp(va uintptr) uintptr {
	return util.Roundup(va, uintptr(PageSize))
}

/// PgOfs returns the in-page offset of a virtual address.
func PgOfs(va uintptr) uintptr {
	return va & PageOffsetMask
}
