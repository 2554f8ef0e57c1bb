package swap

import (
	"os"

	"golang.org/x/sys/unix"

	"vmkaist/mem"
)

// FileDisk is a Disk backed by a real file or block device, addressed
// with positional pread/pwrite so concurrent slot I/O never needs a
// shared file offset or its own lock around Seek+Read.
type FileDisk struct {
	f      *os.File
	nslots int
}

/// OpenFileDisk opens (creating if necessary) path as a swap back-end
/// with capacity nslots page-sized slots.
func OpenFileDisk(path string, nslots int) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	size := int64(nslots) * int64(mem.PageSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDisk{f: f, nslots: nslots}, nil
}

func (d *FileDisk) Slots() int { return d.nslots }

func (d *FileDisk) ReadAt(s Slot, buf []byte) error {
	off := int64(s) * int64(mem.PageSize)
	n, err := unix.Pread(int(d.f.Fd()), buf, off)
	if err != nil {
		return wrapIO("read", s, err)
	}
	if n != len(buf) {
		return wrapIO("read", s, os.ErrClosed)
	}
	return nil
}

func (d *FileDisk) WriteAt(s Slot, buf []byte) error {
	off := int64(s) * int64(mem.PageSize)
	n, err := unix.Pwrite(int(d.f.Fd()), buf, off)
	if err != nil {
		return wrapIO("write", s, err)
	}
	if n != len(buf) {
		return wrapIO("write", s, os.ErrClosed)
	}
	return nil
}

/// Close releases the underlying file descriptor.
func (d *FileDisk) Close() error {
	return d.f.Close()
}
