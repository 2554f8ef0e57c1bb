// Package page implements the page descriptor and its three back-ends
// (uninitialized/lazy, anonymous, file-backed). Each back-end exposes
// the small operation set the fault handler and frame table drive:
// swapIn, swapOut, destroy. The uninit -> {anon, file} transition is a
// one-shot replacement of that operation set, done in place so callers
// who already hold a *Page never need to re-lookup it.
package page

import (
	"fmt"
	"sync"

	"vmkaist/defs"
	"vmkaist/frame"
	"vmkaist/swap"
	"vmkaist/vfile"
)

/// Type tags which back-end currently owns a page.
type Type int

const (
	Uninit Type = iota
	Anon
	File
)

func (t Type) String() string {
	switch t {
	case Uninit:
		return "uninit"
	case Anon:
		return "anon"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

/// Mapper is the MMU boundary contract: install, clear, and query the
/// hardware mapping for one process's address space. A real kernel
/// implements this over page tables; the demo/test harness implements
/// it over a plain map.
type Mapper interface {
	SetMapping(va uintptr, kva []byte, writable bool) error
	ClearMapping(va uintptr)
	IsAccessed(va uintptr) bool
	SetAccessed(va uintptr, v bool)
	IsDirty(va uintptr) bool
	SetDirty(va uintptr, v bool)
}

/// Initializer fills a freshly-claimed frame's contents for a page
/// still in the uninit state -- zeroing for anonymous memory, or a
/// positional file read for a memory-mapped file.
type Initializer func(kva []byte, aux interface{}) defs.Err_t

// backend is the vtable every page variant implements. It is
// unexported: callers only ever see *Page and its exported methods.
type backend interface {
	swapIn(p *Page, kva []byte) defs.Err_t
	swapOut(p *Page) defs.Err_t
	destroy(p *Page)
	kind() Type
}

/// Env bundles the collaborators a page needs to act on itself: the
/// process's MMU mapper, the global frame table, and the global swap
/// table. Every page in the same address space shares one Env.
type Env struct {
	Mapper Mapper
	Frames *frame.Table
	Swap   *swap.Table
}

/// Page is the software descriptor for one user virtual page. It is
/// identified by its page-aligned virtual address and is owned by
/// exactly one back-end at a time.
type Page struct {
	sync.Mutex

	env *Env

	VA             uintptr
	Writable       bool
	ParentWritable bool

	Frame *frame.Frame

	be backend
}

/// NewUninit creates a lazy page that will become target (Anon or
/// File) the first time it is claimed. init runs against the freshly
/// acquired frame; aux is opaque back-end payload (e.g. the source
/// file and offset for a file mapping).
func NewUninit(env *Env, va uintptr, writable bool, target Type, init Initializer, aux interface{}) *Page {
	p := &Page{env: env, VA: va, Writable: writable, ParentWritable: writable}
	p.be = &uninitBackend{target: target, init: init, aux: aux}
	return p
}

/// NewAnonResident creates an anonymous page that is immediately
/// resident in frame f (used by stack growth, which claims on
/// creation rather than lazily).
func NewAnonResident(env *Env, va uintptr, writable bool, f *frame.Frame) *Page {
	p := &Page{env: env, VA: va, Writable: writable, ParentWritable: writable, Frame: f}
	p.be = &anonBackend{slot: swap.NoSlot}
	f.Owner = p
	return p
}

/// NewFile creates a lazy file-backed page covering [offset,
/// offset+readBytes) of f, zero-filled for the remaining bytes up to a
/// full page.
func NewFile(env *Env, va uintptr, writable bool, f vfile.File, offset, readBytes, zeroBytes int64) *Page {
	target := &fileBackend{file: f, offset: offset, readBytes: readBytes, zeroBytes: zeroBytes}
	return NewUninit(env, va, writable, File, fileInitializer, target)
}

/// Kind reports the page's current back-end variant.
func (p *Page) Kind() Type {
	p.Lock()
	defer p.Unlock()
	return p.be.kind()
}

/// Resident reports whether the page currently occupies a frame.
func (p *Page) Resident() bool {
	p.Lock()
	defer p.Unlock()
	return p.Frame != nil
}

/// Kva returns the resident frame's backing bytes, or nil if the page
/// is not currently resident.
func (p *Page) Kva() []byte {
	p.Lock()
	defer p.Unlock()
	if p.Frame == nil {
		return nil
	}
	return p.Frame.Kva
}

/// SwapIn fills kva with the page's contents through its current
/// back-end. Claim does not go through it: claimLocked calls the
/// back-end directly, since it already holds the page lock.
func (p *Page) SwapIn(kva []byte) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	return p.be.swapIn(p, kva)
}

/// Destroy tears the page down: write back if dirty, release any swap
/// slot, drop the frame reference, clear the MMU mapping. It does not
/// touch the owning SPT; the caller (spt.Remove or spt.Kill) is
/// responsible for unlinking the entry.
func (p *Page) Destroy() {
	p.Lock()
	defer p.Unlock()
	p.be.destroy(p)
}

// Accessed, ClearAccessed, and SwapOut implement frame.Evictable so
// the frame table can drive eviction through this page without
// importing package page.

func (p *Page) Accessed() bool {
	p.Lock()
	defer p.Unlock()
	if p.Frame == nil {
		return false
	}
	return p.env.Mapper.IsAccessed(p.VA)
}

func (p *Page) Label() string {
	p.Lock()
	defer p.Unlock()
	return fmt.Sprintf("%#x/%s", p.VA, p.be.kind())
}

func (p *Page) ClearAccessed() {
	p.Lock()
	defer p.Unlock()
	p.env.Mapper.SetAccessed(p.VA, false)
}

func (p *Page) SwapOut() bool {
	p.Lock()
	defer p.Unlock()
	return p.be.swapOut(p) == 0
}

// detach clears the frame<->page cyclic link; it is what makes the
// frame back-pointer a weak relation, per the rule that it must be
// cleared whenever ownership moves.
func (p *Page) detach() {
	if p.Frame != nil {
		if p.Frame.Owner == p {
			p.Frame.Owner = nil
		}
		p.Frame = nil
	}
}

/// Claim makes the page resident now: obtain a frame, fill its
/// contents via the back-end's swapIn, then install the MMU mapping.
// The source this was distilled from installs the mapping before
// swapIn and says elsewhere that swapIn must finish before the
// mapping goes live; this implementation resolves that in favor of
// content-before-mapping, so a concurrent reader can never observe a
// live mapping to not-yet-initialized frame contents.
func (p *Page) Claim() defs.Err_t {
	p.Lock()
	defer p.Unlock()
	return p.claimLocked()
}

func (p *Page) claimLocked() defs.Err_t {
	if p.Frame != nil {
		return 0
	}
	f, ok := p.env.Frames.Get()
	if !ok {
		return defs.ENOMEM
	}
	f.Owner = p
	p.Frame = f

	if err := p.be.swapIn(p, f.Kva); err != 0 {
		p.detach()
		p.env.Frames.Unref(f)
		return err
	}
	if err := p.env.Mapper.SetMapping(p.VA, f.Kva, p.Writable); err != nil {
		p.detach()
		p.env.Frames.Unref(f)
		return defs.EFAULT
	}
	return 0
}

/// Fork builds this page's counterpart in a child address space, per
/// the SPT copy rule: an uninit page gets an identical lazy entry
/// sharing the same initializer aux (safe, since uninit payloads are
/// read-only until first fault); any other page is force-claimed if
/// not already resident, then shares the parent's frame with both
/// sides' mappings forced read-only, deferring the eventual write to
/// the first write-fault's COW resolution.
func (p *Page) Fork(dstEnv *Env) (*Page, defs.Err_t) {
	p.Lock()
	defer p.Unlock()

	if u, ok := p.be.(*uninitBackend); ok {
		child := &Page{env: dstEnv, VA: p.VA, Writable: p.Writable, ParentWritable: p.ParentWritable}
		child.be = &uninitBackend{target: u.target, init: u.init, aux: u.aux}
		return child, 0
	}

	if p.Frame == nil {
		if err := p.claimLocked(); err != 0 {
			return nil, err
		}
	}

	var childBE backend
	switch b := p.be.(type) {
	case *anonBackend:
		childBE = &anonBackend{slot: swap.NoSlot}
	case *fileBackend:
		childBE = &fileBackend{file: b.file, offset: b.offset, readBytes: b.readBytes, zeroBytes: b.zeroBytes}
	default:
		panic("fork: unrecognized resident back-end")
	}

	orig := p.ParentWritable
	p.env.Frames.Ref(p.Frame)

	child := &Page{env: dstEnv, VA: p.VA, Writable: false, ParentWritable: orig, Frame: p.Frame, be: childBE}

	p.ParentWritable = orig
	p.Writable = false
	if err := p.env.Mapper.SetMapping(p.VA, p.Frame.Kva, false); err != nil {
		return nil, defs.EFAULT
	}
	if err := dstEnv.Mapper.SetMapping(child.VA, child.Frame.Kva, false); err != nil {
		return nil, defs.EFAULT
	}
	return child, 0
}

/// HandleWP resolves a write fault against a page whose MMU mapping is
/// present but read-only due to COW sharing (§4.6). It returns false
/// when ref_cnt==1 and the mapping was nonetheless read-only, which
/// the caller must treat as a genuine protection violation rather than
/// COW.
func (p *Page) HandleWP() bool {
	p.Lock()
	defer p.Unlock()

	if p.Frame == nil {
		return false
	}
	if p.Frame.RefCnt == 1 {
		return false
	}

	newFrame, ok := p.env.Frames.Get()
	if !ok {
		return false
	}
	copy(newFrame.Kva, p.Frame.Kva)
	newFrame.Owner = p

	old := p.Frame
	p.env.Mapper.ClearMapping(p.VA)
	p.env.Frames.Unref(old)

	p.Frame = newFrame
	p.Writable = p.ParentWritable
	if err := p.env.Mapper.SetMapping(p.VA, newFrame.Kva, p.Writable); err != nil {
		return false
	}
	return true
}
