package page

import (
	"vmkaist/defs"
	"vmkaist/swap"
)

// uninitBackend is the lazy back-end every page starts life as. Its
// swapIn runs the caller-supplied initializer into the freshly claimed
// frame and then replaces the page's vtable with the target back-end,
// a one-shot, monotonic transition.
type uninitBackend struct {
	target Type
	init   Initializer
	aux    interface{}
}

func (u *uninitBackend) kind() Type { return Uninit }

func (u *uninitBackend) swapIn(p *Page, kva []byte) defs.Err_t {
	if err := u.init(kva, u.aux); err != 0 {
		return err
	}
	switch u.target {
	case Anon:
		p.be = &anonBackend{slot: swap.NoSlot}
	case File:
		fb, ok := u.aux.(*fileBackend)
		if !ok {
			panic("uninit: file target without a fileBackend aux")
		}
		p.be = fb
	default:
		panic("uninit: unknown target type")
	}
	return 0
}

func (u *uninitBackend) swapOut(p *Page) defs.Err_t {
	panic("swapOut on a page that was never claimed: invariant I1 violated")
}

func (u *uninitBackend) destroy(p *Page) {
	// Nothing beyond the initializer closure's own captured state,
	// which Go's GC reclaims once this Page is unreachable.
}

/// ZeroInit is the Initializer for anonymous pages: it zeroes the
/// frame (already zeroed by frame.Get, but kept explicit so a page
/// reused from elsewhere is still correct) and ignores aux.
func ZeroInit(kva []byte, aux interface{}) defs.Err_t {
	for i := range kva {
		kva[i] = 0
	}
	return 0
}
