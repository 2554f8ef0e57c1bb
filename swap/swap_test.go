package swap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vmkaist/defs"
	"vmkaist/mem"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	disk := NewMemDisk(8)
	tbl := NewTable(disk, 4)

	s1, err := tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, Slot(0), s1)

	s2, err := tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, Slot(1), s2)

	tbl.Free(s1)
	s3, err := tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, Slot(0), s3, "freed slots are reused before new bits are scanned")
}

func TestAllocExhaustion(t *testing.T) {
	disk := NewMemDisk(2)
	tbl := NewTable(disk, 2)

	_, err := tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	_, err = tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)

	_, err = tbl.Alloc()
	require.Equal(t, defs.ENOSWAP, err, "allocating past capacity must fail")
}

// Writing a page to a swap slot and reading it back must restore its
// byte contents exactly.
func TestWriteReadRoundTrip(t *testing.T) {
	disk := NewMemDisk(4)
	tbl := NewTable(disk, 2)
	ctx := context.Background()

	slot, err := tbl.Alloc()
	require.Equal(t, defs.Err_t(0), err)

	page := make([]byte, mem.PageSize)
	for i := range page {
		page[i] = byte(i % 251)
	}
	require.Equal(t, defs.Err_t(0), tbl.Write(ctx, slot, page))

	readBack := make([]byte, mem.PageSize)
	require.Equal(t, defs.Err_t(0), tbl.Read(ctx, slot, readBack))
	require.Equal(t, page, readBack)
}

func TestSlotsReportsCapacity(t *testing.T) {
	disk := NewMemDisk(16)
	tbl := NewTable(disk, 2)
	require.Equal(t, 16, tbl.Slots())
}
