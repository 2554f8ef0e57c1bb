package vm

import (
	"vmkaist/defs"
	"vmkaist/mem"
)

// Userbuf assists copying a contiguous range of user virtual memory to
// or from a kernel-side buffer, one resident page at a time, resolving
// a page fault (including COW) for each page it touches along the
// way. It plays the same chunk-at-a-page-boundary role the original
// kernel's userbuf does, but is driven by the SPT/frame machinery
// instead of raw page-table entries.
type Userbuf struct {
	as  *AddressSpace
	va  uintptr
	len int
	off int
}

/// NewUserbuf builds a Userbuf over [va, va+length) of as's address
/// space.
func NewUserbuf(as *AddressSpace, va uintptr, length int) *Userbuf {
	return &Userbuf{as: as, va: va, len: length}
}

/// Remain reports the number of bytes not yet transferred.
func (u *Userbuf) Remain() int { return u.len - u.off }

/// Totalsz reports the buffer's total length.
func (u *Userbuf) Totalsz() int { return u.len }

/// Uioread copies from user memory into dst.
func (u *Userbuf) Uioread(dst []byte) (int, defs.Err_t) {
	return u.tx(dst, false)
}

/// Uiowrite copies src into user memory.
func (u *Userbuf) Uiowrite(src []byte) (int, defs.Err_t) {
	return u.tx(src, true)
}

func (u *Userbuf) tx(buf []byte, write bool) (int, defs.Err_t) {
	done := 0
	for len(buf) > 0 && u.off < u.len {
		va := u.va + uintptr(u.off)
		pg := mem.PgRoundDown(va)
		voff := int(va - pg)

		kva, err := u.as.access(pg, write)
		if err != 0 {
			return done, err
		}

		n := len(kva) - voff
		if n > len(buf) {
			n = len(buf)
		}
		if left := u.len - u.off; n > left {
			n = left
		}
		if write {
			copy(kva[voff:], buf[:n])
		} else {
			copy(buf[:n], kva[voff:])
		}

		buf = buf[n:]
		u.off += n
		done += n
	}
	return done, 0
}
