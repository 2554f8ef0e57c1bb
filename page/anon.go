package page

import (
	"context"

	"vmkaist/defs"
	"vmkaist/swap"
)

// anonBackend is anonymous (non-file-backed) memory: stack pages, heap
// pages, and any lazily zeroed mapping. Its payload is a swap slot,
// valid only while the page is non-resident.
type anonBackend struct {
	slot swap.Slot
}

func (a *anonBackend) kind() Type { return Anon }

func (a *anonBackend) swapIn(p *Page, kva []byte) defs.Err_t {
	if a.slot == swap.NoSlot {
		panic("anon swapIn without a recorded slot: invariant I2 violated")
	}
	if err := p.env.Swap.Read(context.Background(), a.slot, kva); err != 0 {
		return err
	}
	// The slot's contents have now been read out; it is safe to let a
	// concurrent allocator reuse it.
	p.env.Swap.Free(a.slot)
	a.slot = swap.NoSlot
	return 0
}

func (a *anonBackend) swapOut(p *Page) defs.Err_t {
	slot, err := p.env.Swap.Alloc()
	if err != 0 {
		return err
	}
	if err := p.env.Swap.Write(context.Background(), slot, p.Frame.Kva); err != 0 {
		p.env.Swap.Free(slot)
		return err
	}
	p.env.Mapper.ClearMapping(p.VA)
	a.slot = slot
	p.detach()
	return 0
}

func (a *anonBackend) destroy(p *Page) {
	if p.Frame == nil {
		if a.slot != swap.NoSlot {
			p.env.Swap.Free(a.slot)
			a.slot = swap.NoSlot
		}
		return
	}
	p.env.Mapper.ClearMapping(p.VA)
	f := p.Frame
	p.detach()
	p.env.Frames.Unref(f)
}
