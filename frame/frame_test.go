package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmkaist/mem"
)

// fakeOwner is a minimal Evictable for exercising the table without
// pulling in package page (which would import frame, and cycle back).
type fakeOwner struct {
	accessed  bool
	swapOutOK bool
	label     string
}

func (o *fakeOwner) Accessed() bool { return o.accessed }
func (o *fakeOwner) ClearAccessed() { o.accessed = false }
func (o *fakeOwner) SwapOut() bool  { return o.swapOutOK }
func (o *fakeOwner) Label() string  { return o.label }

func TestGetLinksEveryFrame(t *testing.T) {
	pool := mem.NewHostpool(4)
	tbl := NewTable(pool)

	for i := 0; i < 4; i++ {
		f, ok := tbl.Get()
		require.True(t, ok)
		require.NotNil(t, f)
	}
	require.Equal(t, 4, tbl.Len(), "every frame drawn from the pool must be linked into the table")
}

func TestGetFailsWhenPoolAndEvictionBothExhausted(t *testing.T) {
	pool := mem.NewHostpool(1)
	tbl := NewTable(pool)

	f, ok := tbl.Get()
	require.True(t, ok)
	f.Owner = &fakeOwner{accessed: false, swapOutOK: false}

	_, ok = tbl.Get()
	require.False(t, ok, "no free pages and no evictable victim must report OOM")
}

func TestEvictionPrefersUnaccessedVictim(t *testing.T) {
	pool := mem.NewHostpool(1)
	tbl := NewTable(pool)

	f, ok := tbl.Get()
	require.True(t, ok)
	victim := &fakeOwner{accessed: false, swapOutOK: true, label: "victim"}
	f.Owner = victim

	got, ok := tbl.Get()
	require.True(t, ok)
	require.Equal(t, f, got, "the sole frame must be recycled as the victim")
	require.Nil(t, got.Owner)
}

func TestAccessBitGivesSecondChance(t *testing.T) {
	pool := mem.NewHostpool(1)
	tbl := NewTable(pool)

	f, ok := tbl.Get()
	require.True(t, ok)
	owner := &fakeOwner{accessed: true, swapOutOK: true, label: "hot"}
	f.Owner = owner

	got, ok := tbl.Get()
	require.True(t, ok)
	require.Equal(t, f, got)
	require.False(t, owner.accessed, "the clock scan must clear the access bit on its first pass")
}

func TestRefUnrefSharedFrame(t *testing.T) {
	pool := mem.NewHostpool(1)
	tbl := NewTable(pool)

	f, ok := tbl.Get()
	require.True(t, ok)

	tbl.Ref(f)
	require.Equal(t, int32(2), f.RefCnt)

	require.False(t, tbl.Unref(f), "dropping to 1 must not free the frame")
	require.Equal(t, int32(1), f.RefCnt)
	require.Equal(t, 1, tbl.Len())

	require.True(t, tbl.Unref(f), "dropping to 0 must free the frame back to the pool")
	require.Equal(t, 0, tbl.Len())
}

func TestSnapshotsReportResidencyAndLabel(t *testing.T) {
	pool := mem.NewHostpool(2)
	tbl := NewTable(pool)

	f1, _ := tbl.Get()
	f1.Owner = &fakeOwner{label: "a"}
	_, _ = tbl.Get()

	snaps := tbl.Snapshots()
	require.Len(t, snaps, 2)

	var sawResident, sawFree bool
	for _, s := range snaps {
		if s.Resident {
			sawResident = true
			require.Equal(t, "a", s.Label)
		} else {
			sawFree = true
		}
	}
	require.True(t, sawResident)
	require.True(t, sawFree)
}
