// Package swap implements the swap-slot allocator and the disk
// back-ends that the anonymous page back-end (package page) writes to
// and reads from when the frame table evicts an anonymous page.
package swap

import (
	"context"
	"math/bits"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"vmkaist/defs"
	"vmkaist/mem"
)

/// Slot identifies one page-sized region of the swap disk.
type Slot int64

/// NoSlot is the sentinel (-1) meaning "no swap slot assigned".
const NoSlot Slot = -1

/// Disk is the boundary contract a swap back-end must satisfy: read or
/// write exactly one page at the byte offset implied by a slot number.
/// Both MemDisk (tests) and FileDisk (a real file or block device)
/// implement it.
type Disk interface {
	ReadAt(slot Slot, buf []byte) error
	WriteAt(slot Slot, buf []byte) error
	/// Slots reports the disk's total capacity in page-sized slots.
	Slots() int
}

/// Table is the swap-slot bitmap allocator: one bit per slot, set while
/// the slot holds live data. It mirrors the frame table's locking
/// discipline -- swap_table_lock is always acquired after
/// frame_table_lock, never before.
type Table struct {
	sync.Mutex
	disk  Disk
	words []uint64
	nbits int
	// inflight bounds how many concurrent ReadAt/WriteAt calls the
	// table will issue against disk, so a burst of evictions cannot
	// starve the disk's own concurrency limits.
	inflight *semaphore.Weighted
}

/// NewTable builds a swap-slot allocator over disk, allowing up to
/// maxInflight concurrent I/Os against it.
func NewTable(disk Disk, maxInflight int64) *Table {
	if maxInflight <= 0 {
		maxInflight = 4
	}
	n := disk.Slots()
	return &Table{
		disk:     disk,
		words:    make([]uint64, (n+63)/64),
		nbits:    n,
		inflight: semaphore.NewWeighted(maxInflight),
	}
}

/// Alloc reserves a free slot and marks it used. It returns
/// defs.ENOSWAP when the disk is full.
func (t *Table) Alloc() (Slot, defs.Err_t) {
	t.Lock()
	defer t.Unlock()

	for wi, w := range t.words {
		if w == ^uint64(0) {
			continue
		}
		// find the lowest clear bit in this word
		bit := bits.TrailingZeros64(^w)
		idx := wi*64 + bit
		if idx >= t.nbits {
			continue
		}
		t.words[wi] |= 1 << uint(bit)
		return Slot(idx), 0
	}
	return NoSlot, defs.ENOSWAP
}

/// Free releases a slot back to the pool.
func (t *Table) Free(s Slot) {
	t.Lock()
	defer t.Unlock()
	t.clear(s)
}

func (t *Table) clear(s Slot) {
	wi := int(s) / 64
	bit := uint(int(s) % 64)
	t.words[wi] &^= 1 << bit
}

/// Write stores page into the slot's backing storage, bounded by the
/// table's inflight semaphore.
func (t *Table) Write(ctx context.Context, s Slot, page []byte) defs.Err_t {
	if err := t.inflight.Acquire(ctx, 1); err != nil {
		return defs.EIO
	}
	defer t.inflight.Release(1)

	if err := t.disk.WriteAt(s, page); err != nil {
		return defs.EIO
	}
	return 0
}

/// Slots reports the swap device's total capacity in page-sized slots.
func (t *Table) Slots() int {
	return t.nbits
}

/// Read loads the slot's contents into page.
func (t *Table) Read(ctx context.Context, s Slot, page []byte) defs.Err_t {
	if err := t.inflight.Acquire(ctx, 1); err != nil {
		return defs.EIO
	}
	defer t.inflight.Release(1)

	if err := t.disk.ReadAt(s, page); err != nil {
		return defs.EIO
	}
	return 0
}

// wrapIO is a small helper the concrete Disk implementations use so
// every I/O error carries the operation and slot that failed, per
// pkg/errors' convention of annotating at the point of failure rather
// than the point of return.
func wrapIO(op string, s Slot, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "swap: %s slot %d", op, s)
}

// MemDisk is an in-memory Disk, used by tests and by the demo binary
// when no real backing file is configured.
type MemDisk struct {
	sync.Mutex
	slots [][]byte
}

/// NewMemDisk allocates an in-memory swap disk with n page-sized slots.
func NewMemDisk(n int) *MemDisk {
	d := &MemDisk{slots: make([][]byte, n)}
	for i := range d.slots {
		d.slots[i] = make([]byte, mem.PageSize)
	}
	return d
}

func (d *MemDisk) Slots() int { return len(d.slots) }

func (d *MemDisk) ReadAt(s Slot, buf []byte) error {
	d.Lock()
	defer d.Unlock()
	if int(s) < 0 || int(s) >= len(d.slots) {
		return wrapIO("read", s, errors.New("slot out of range"))
	}
	copy(buf, d.slots[s])
	return nil
}

func (d *MemDisk) WriteAt(s Slot, buf []byte) error {
	d.Lock()
	defer d.Unlock()
	if int(s) < 0 || int(s) >= len(d.slots) {
		return wrapIO("write", s, errors.New("slot out of range"))
	}
	copy(d.slots[s], buf)
	return nil
}
