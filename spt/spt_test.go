package spt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmkaist/defs"
	"vmkaist/frame"
	"vmkaist/mem"
	"vmkaist/mmu"
	"vmkaist/page"
	"vmkaist/swap"
)

func newEnv(npages int) *page.Env {
	pool := mem.NewHostpool(npages)
	return &page.Env{
		Mapper: mmu.New(),
		Frames: frame.NewTable(pool),
		Swap:   swap.NewTable(swap.NewMemDisk(8), 2),
	}
}

// Two entries can never claim the same virtual address: inserting a second
// page at an address already present must fail and leave the table
// unchanged.
func TestInsertRejectsDuplicate(t *testing.T) {
	env := newEnv(4)
	tbl := New(8)

	p1 := page.NewUninit(env, 0x1000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), tbl.Insert(p1))

	p2 := page.NewUninit(env, 0x1000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.EDUP, tbl.Insert(p2))
	require.Equal(t, 1, tbl.Len())
}

func TestFindRoundsDownToPage(t *testing.T) {
	env := newEnv(4)
	tbl := New(8)
	p := page.NewUninit(env, 0x2000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), tbl.Insert(p))

	found, ok := tbl.Find(0x2123)
	require.True(t, ok)
	require.Equal(t, p, found)
}

func TestKillDestroysEveryEntryRegardlessOfState(t *testing.T) {
	env := newEnv(4)
	tbl := New(8)

	resident := page.NewUninit(env, 0x1000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), tbl.Insert(resident))
	require.Equal(t, defs.Err_t(0), resident.Claim())

	lazy := page.NewUninit(env, 0x2000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), tbl.Insert(lazy))

	tbl.Kill()
	require.Equal(t, 0, tbl.Len())
}

func TestCopyForksUninitAndResidentEntries(t *testing.T) {
	parentEnv := newEnv(4)
	childEnv := &page.Env{Mapper: mmu.New(), Frames: parentEnv.Frames, Swap: parentEnv.Swap}

	src := New(8)
	dst := New(8)

	lazy := page.NewUninit(parentEnv, 0x1000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), src.Insert(lazy))

	resident := page.NewUninit(parentEnv, 0x2000, true, page.Anon, page.ZeroInit, nil)
	require.Equal(t, defs.Err_t(0), src.Insert(resident))
	require.Equal(t, defs.Err_t(0), resident.Claim())
	resident.Kva()[0] = 0x99

	require.Equal(t, defs.Err_t(0), Copy(dst, childEnv, src))
	require.Equal(t, 2, dst.Len())

	childLazy, ok := dst.Find(0x1000)
	require.True(t, ok)
	require.False(t, childLazy.Resident())

	childResident, ok := dst.Find(0x2000)
	require.True(t, ok)
	require.True(t, childResident.Resident())
	require.Equal(t, byte(0x99), childResident.Kva()[0])
}
