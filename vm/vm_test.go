package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmkaist/defs"
	"vmkaist/frame"
	"vmkaist/mem"
	"vmkaist/page"
	"vmkaist/swap"
	"vmkaist/vfile"
)

func newAS(t *testing.T, npages int) (*AddressSpace, *frame.Table, *swap.Table) {
	t.Helper()
	pool := mem.NewHostpool(npages)
	frames := frame.NewTable(pool)
	swaps := swap.NewTable(swap.NewMemDisk(64), 4)
	return New(frames, swaps), frames, swaps
}

// A not-present fault on a registered lazy page, driven through the
// public AddressSpace surface rather than an explicit ClaimPage call,
// must claim the page and resolve.
func TestAllocFaultInClaimsLazily(t *testing.T) {
	as, _, _ := newAS(t, 4)
	const va = uintptr(0x400000)

	require.Equal(t, defs.Err_t(0), as.AllocPageWithInitializer(page.Anon, va, true, zeroInitForTest, nil))

	require.True(t, as.TryHandleFault(va, true, true, true, 0), "a not-present fault on a registered lazy page must claim it and resolve")

	buf, err := as.access(va, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, byte(0), buf[0])
}

// A protection fault on a page with no COW siblings is a genuine
// violation, not something HandleWP resolves.
func TestProtectionFaultOnSoleOwnerIsUnhandled(t *testing.T) {
	as, _, _ := newAS(t, 4)
	const va = uintptr(0x400000)
	require.Equal(t, defs.Err_t(0), as.AllocPageWithInitializer(page.Anon, va, true, zeroInitForTest, nil))
	require.Equal(t, defs.Err_t(0), as.ClaimPage(va))

	require.False(t, as.TryHandleFault(va, true, true, false, 0))
}

// With N+1 anonymous pages competing for an N-frame pool, touching each
// in order must never grow resident frames past the pool's capacity, and
// re-touching the first page after it has been evicted must bring it
// back resident.
func TestEvictionStaysWithinPoolAndReclaimsEvictedPage(t *testing.T) {
	const n = 3
	as, frames, _ := newAS(t, n)

	vas := make([]uintptr, n+1)
	for i := range vas {
		vas[i] = uintptr(0x500000 + i*int(mem.PageSize))
		require.Equal(t, defs.Err_t(0), as.AllocPageWithInitializer(page.Anon, vas[i], true, zeroInitForTest, nil))
	}

	for _, va := range vas {
		require.Equal(t, defs.Err_t(0), as.ClaimPage(va))
		buf, err := as.access(va, true)
		require.Equal(t, defs.Err_t(0), err)
		buf[0] = 0x7A
	}

	require.Equal(t, n, frames.Len(), "the pool must never hold more resident frames than its capacity")

	require.Equal(t, defs.Err_t(0), as.ClaimPage(vas[0]))
}

// A dirty mmap'd page must be written back to its backing file when the
// mapping is torn down.
func TestMmapWriteBackOnMunmap(t *testing.T) {
	as, _, _ := newAS(t, 4)
	f := vfile.NewMemFile(make([]byte, mem.PageSize))

	addr, err := as.Mmap(0x10000000, mem.PageSize, true, f, 0)
	require.Equal(t, defs.Err_t(0), err)

	buf, accessErr := as.access(addr, true)
	require.Equal(t, defs.Err_t(0), accessErr)
	buf[0] = 'X'
	as.Mapper.SetDirty(addr, true)

	require.Equal(t, defs.Err_t(0), as.Munmap(addr))

	readBack := make([]byte, 1)
	n, rerr := f.ReadAt(readBack, 0)
	require.NoError(t, rerr)
	require.Equal(t, 1, n)
	require.Equal(t, byte('X'), readBack[0])
}

// Munmap must reject a non-head address within a mapping, and must reject
// a repeat munmap of an already-torn-down head.
func TestMunmapNonHeadAndRepeatAreErrors(t *testing.T) {
	as, _, _ := newAS(t, 4)
	f := vfile.NewMemFile(make([]byte, 2*mem.PageSize))

	addr, err := as.Mmap(0x10000000, 2*mem.PageSize, true, f, 0)
	require.Equal(t, defs.Err_t(0), err)

	require.Equal(t, defs.EINVAL, as.Munmap(addr+uintptr(mem.PageSize)), "munmap of a non-head address must error")

	require.Equal(t, defs.Err_t(0), as.Munmap(addr))
	require.Equal(t, defs.EINVAL, as.Munmap(addr), "a second munmap of the same head must fail")
}

// A fault just below the stack pointer within the growth region must
// allocate a new stack page and resolve, rather than fail as an
// out-of-bounds access.
func TestStackGrowthAllocatesAndResumes(t *testing.T) {
	as, _, _ := newAS(t, 4)
	const rsp = UserStackTop
	fa := UserStackTop - 8

	require.True(t, as.TryHandleFault(fa, true, true, true, rsp))
}

// Forking an address space must share the parent's resident page with the
// child until the child writes to it, at which point the child must get
// its own frame and the parent's contents must be unaffected.
func TestAddressSpaceForkCOW(t *testing.T) {
	parent, frames, swaps := newAS(t, 4)
	const va = uintptr(0x400000)
	require.Equal(t, defs.Err_t(0), parent.AllocPageWithInitializer(page.Anon, va, true, zeroInitForTest, nil))
	require.Equal(t, defs.Err_t(0), parent.ClaimPage(va))
	buf, _ := parent.access(va, true)
	buf[0] = 0x11

	child := New(frames, swaps)
	require.Equal(t, defs.Err_t(0), parent.Fork(child))

	childBuf, err := child.access(va, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, byte(0x11), childBuf[0])

	childWBuf, werr := child.access(va, true)
	require.Equal(t, defs.Err_t(0), werr)
	childWBuf[0] = 0x22

	parentBuf, _ := parent.access(va, false)
	require.Equal(t, byte(0x11), parentBuf[0], "parent's page must be unaffected by the child's write")
}

func zeroInitForTest(kva []byte, aux interface{}) defs.Err_t {
	for i := range kva {
		kva[i] = 0
	}
	return 0
}
