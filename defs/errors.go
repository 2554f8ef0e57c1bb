// Package defs holds small cross-cutting types shared by every layer of
// the virtual-memory subsystem, mainly its error code convention.
package defs

// / Err_t is the kernel-style error code used across the address-space
// / code. Zero means success; callers that need to signal failure return
// / the constant itself (e.g. defs.EFAULT), matching the convention
// / established by the address-space layer.
type Err_t int

const (
	/// EFAULT means the faulting address has no mapping and is not a
	/// legal stack-growth or lazy-load candidate.
	EFAULT Err_t = iota + 1
	/// ENOMEM means the physical frame pool is exhausted and eviction
	/// could not free a frame either.
	ENOMEM
	/// ENOSWAP means the swap-slot allocator has no free slots.
	ENOSWAP
	/// EIO means the underlying disk or file returned a short or failed
	/// transfer.
	EIO
	/// EDUP means an SPT insert collided with an existing entry.
	EDUP
	/// EPROT means the access violated the page's declared permissions.
	EPROT
	/// EINVAL means a caller-supplied address or length failed a basic
	/// sanity check (alignment, null address, non-positive length). An
	/// mmap overlapping an existing page reports EDUP instead.
	EINVAL
)

func (e Err_t) Error() string {
	switch e {
	case EFAULT:
		return "bad address"
	case ENOMEM:
		return "out of memory"
	case ENOSWAP:
		return "out of swap"
	case EIO:
		return "i/o error"
	case EDUP:
		return "duplicate mapping"
	case EPROT:
		return "protection violation"
	case EINVAL:
		return "invalid argument"
	default:
		return "unknown error"
	}
}
