// Package vm is the public surface of the virtual-memory subsystem:
// one AddressSpace per process, the mmap/munmap/fork/exit operations,
// and the page-fault resolution state machine that ties the
// supplemental page table, the frame table, and a page's back-end
// together. Everything below this package (frame, page, spt, swap,
// vfile) is a collaborator it drives; this is where their contracts
// meet the caller.
package vm

import (
	"sync"

	"vmkaist/defs"
	"vmkaist/frame"
	"vmkaist/mem"
	"vmkaist/mmu"
	"vmkaist/page"
	"vmkaist/spt"
	"vmkaist/swap"
	"vmkaist/vfile"
)

const (
	/// UserStackTop is the address immediately above the user stack,
	/// matching the layout a stack-growth fault is checked against.
	UserStackTop = uintptr(0x47480000)
	/// StackGrowthMax bounds how far below UserStackTop a fault is
	/// still considered stack growth rather than a bad access.
	StackGrowthMax = uintptr(1 << 20)
)

// mapping records one mmap'd region so munmap can tear it down in
// address order and close its file once, after the last page. The
// file is the handle passed to Mmap; it is not reopened.
type mapping struct {
	addr   uintptr
	npages int
	file   vfile.File
}

/// AddressSpace is one process's virtual memory: its supplemental page
/// table, its simulated MMU, and the set of active mmap regions. Each
/// process owns its AddressSpace exclusively except during fork, where
/// the parent is quiescent while its SPT is copied.
type AddressSpace struct {
	sync.Mutex

	Mapper *mmu.Table
	env    *page.Env
	spt    *spt.Table

	mmaps map[uintptr]*mapping
}

/// New creates an empty address space backed by the given process-wide
/// frame table and swap table singletons.
func New(frames *frame.Table, swaps *swap.Table) *AddressSpace {
	m := mmu.New()
	return &AddressSpace{
		Mapper: m,
		env:    &page.Env{Mapper: m, Frames: frames, Swap: swaps},
		spt:    spt.New(64),
		mmaps:  make(map[uintptr]*mapping),
	}
}

/// AllocPageWithInitializer registers a lazy page of the given eventual
/// type at va; its contents are produced by init(aux) the first time
/// the page is claimed.
func (as *AddressSpace) AllocPageWithInitializer(target page.Type, va uintptr, writable bool, init page.Initializer, aux interface{}) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	va = mem.PgRoundDown(va)
	p := page.NewUninit(as.env, va, writable, target, init, aux)
	return as.spt.Insert(p)
}

/// ClaimPage forces the page at va resident now.
func (as *AddressSpace) ClaimPage(va uintptr) defs.Err_t {
	as.Lock()
	p, ok := as.spt.Find(va)
	as.Unlock()
	if !ok {
		return defs.EFAULT
	}
	return p.Claim()
}

/// TryHandleFault classifies and resolves a page fault per the
// not-present / protection-violation state machine: stack growth,
// lazy load, swap-in, and COW all funnel through here. It reports
// whether the fault was handled; the caller translates false into
// process termination.
func (as *AddressSpace) TryHandleFault(fa uintptr, user, write, notPresent bool, rsp uintptr) bool {
	if fa == 0 {
		return false
	}

	if notPresent {
		if fa >= UserStackTop-StackGrowthMax && fa < UserStackTop && fa >= rsp-8 {
			return as.growStack(mem.PgRoundDown(fa)) == 0
		}

		as.Lock()
		p, ok := as.spt.Find(fa)
		as.Unlock()
		if !ok {
			return false
		}
		if write && !p.Writable {
			return false
		}
		return p.Claim() == 0
	}

	as.Lock()
	p, ok := as.spt.Find(fa)
	as.Unlock()
	if !ok {
		return false
	}
	return p.HandleWP()
}

// growStack allocates an immediately-resident anonymous page for a
// stack-growth fault. A concurrent fault that already grew the same
// page is treated as handled, not a duplicate-mapping error.
func (as *AddressSpace) growStack(va uintptr) defs.Err_t {
	as.Lock()
	defer as.Unlock()

	if _, ok := as.spt.Find(va); ok {
		return 0
	}
	f, ok := as.env.Frames.Get()
	if !ok {
		return defs.ENOMEM
	}
	p := page.NewAnonResident(as.env, va, true, f)
	if err := as.env.Mapper.SetMapping(va, f.Kva, true); err != nil {
		as.env.Frames.Unref(f)
		return defs.EFAULT
	}
	if err := as.spt.Insert(p); err != 0 {
		as.env.Mapper.ClearMapping(va)
		as.env.Frames.Unref(f)
		return err
	}
	return 0
}

/// Mmap tiles [addr, addr+length) with lazy file-backed pages reading
/// from file starting at offset. The pages read and write through file
/// itself; Mmap does not reopen it. It fails and rolls back any page
/// already registered if addr is misaligned, zero, overlapping an
/// existing mapping, or length is non-positive.
func (as *AddressSpace) Mmap(addr uintptr, length int, writable bool, file vfile.File, offset int64) (uintptr, defs.Err_t) {
	if addr == 0 || addr%mem.PageSize != 0 || length <= 0 {
		return 0, defs.EINVAL
	}

	as.Lock()
	defer as.Unlock()

	npages := int(mem.PgRoundUp(uintptr(length))) / mem.PageSize
	for i := 0; i < npages; i++ {
		if _, ok := as.spt.Find(addr + uintptr(i*mem.PageSize)); ok {
			return 0, defs.EDUP
		}
	}

	remaining := int64(length)
	for i := 0; i < npages; i++ {
		va := addr + uintptr(i*mem.PageSize)
		readBytes := int64(mem.PageSize)
		if remaining < readBytes {
			readBytes = remaining
		}
		zeroBytes := int64(mem.PageSize) - readBytes
		p := page.NewFile(as.env, va, writable, file, offset+int64(i*mem.PageSize), readBytes, zeroBytes)
		if err := as.spt.Insert(p); err != 0 {
			as.rollbackMmap(addr, i)
			return 0, err
		}
		remaining -= readBytes
	}

	as.mmaps[addr] = &mapping{addr: addr, npages: npages, file: file}
	return addr, 0
}

func (as *AddressSpace) rollbackMmap(addr uintptr, done int) {
	for i := 0; i < done; i++ {
		as.spt.Remove(addr + uintptr(i*mem.PageSize))
	}
}

/// Munmap tears down the mapping whose head page is at addr, writing
/// back dirty pages as each is destroyed, then closes the file handle
/// that was passed to Mmap, if it has a Close method. Per P6, munmap of an address that is not a mapping's head is
/// an error rather than a silent no-op; a second munmap of the same
/// head also fails, since the first call already removed it from
/// as.mmaps.
func (as *AddressSpace) Munmap(addr uintptr) defs.Err_t {
	as.Lock()
	defer as.Unlock()

	m, ok := as.mmaps[addr]
	if !ok {
		return defs.EINVAL
	}
	for i := 0; i < m.npages; i++ {
		as.spt.Remove(addr + uintptr(i*mem.PageSize))
	}
	delete(as.mmaps, addr)
	if c, ok := m.file.(interface{ Close() error }); ok {
		c.Close()
	}
	return 0
}

/// Fork copies this address space's SPT into child, sharing frames
/// copy-on-write per spt.Copy. The parent must be quiescent for the
/// duration of the call, as the spec requires.
func (as *AddressSpace) Fork(child *AddressSpace) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	child.Lock()
	defer child.Unlock()
	return spt.Copy(child.spt, child.env, as.spt)
}

/// Exit tears down every page in this address space: dirty file pages
/// are written back, frames and swap slots are released. Never fails;
/// write-back I/O errors during teardown are best-effort.
func (as *AddressSpace) Exit() {
	as.Lock()
	defer as.Unlock()
	as.spt.Kill()
	as.mmaps = make(map[uintptr]*mapping)
}

// access resolves va for a read or write access, faulting the page in
// (including COW resolution) as needed, and returns a slice into its
// resident frame. It underlies Userbuf's page-at-a-time copies.
func (as *AddressSpace) access(va uintptr, write bool) ([]byte, defs.Err_t) {
	as.Lock()
	p, ok := as.spt.Find(va)
	as.Unlock()
	if !ok {
		return nil, defs.EFAULT
	}

	if write && !p.Writable {
		if !p.HandleWP() {
			return nil, defs.EFAULT
		}
	}

	kva := p.Kva()
	if kva == nil {
		if err := p.Claim(); err != 0 {
			return nil, err
		}
		kva = p.Kva()
	}
	if write {
		as.Mapper.SetDirty(va, true)
	}
	return kva, 0
}
