// Package vfile is the filesystem boundary the file-backed page
// back-end (package page) reads from and writes back to. It plays the
// role the original kernel's file_t/inode layer plays for mmap'd
// files, trimmed to exactly the operations a file-backed page needs:
// positional read, positional write-back, and length.
package vfile

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

/// File is the boundary contract a file-backed page's file needs to
/// satisfy. It is the "Filesystem" collaborator from the external
/// interfaces: file_read_at_offset / file_write_at_offset / file_length.
type File interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
	Length() int64
}

// OSFile adapts a real *os.File to the File contract using pread/pwrite
// so concurrent page faults against the same file never race on a
// shared offset.
type OSFile struct {
	f    *os.File
	size int64
}

/// OpenOSFile opens path for mmap-style reads and writes, recording its
/// size at open time for Length.
func OpenOSFile(path string) (*OSFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "vfile: stat %s", path)
	}
	return &OSFile{f: f, size: fi.Size()}, nil
}

func (o *OSFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(o.f.Fd()), p, off)
	if err != nil {
		return n, errors.Wrapf(err, "vfile: pread at %d", off)
	}
	return n, nil
}

func (o *OSFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := unix.Pwrite(int(o.f.Fd()), p, off)
	if err != nil {
		return n, errors.Wrapf(err, "vfile: pwrite at %d", off)
	}
	return n, nil
}

func (o *OSFile) Length() int64 { return o.size }

/// Close releases the underlying descriptor.
func (o *OSFile) Close() error { return o.f.Close() }

// MemFile is an in-memory File, used by tests and by any caller mapping
// a byte buffer rather than a real file.
type MemFile struct {
	mu   sync.RWMutex
	data []byte
}

/// NewMemFile wraps data as a File; the slice is used directly, not
/// copied, so writes through WriteAt that stay within its length are
/// visible to the caller's own reference. A write past the end grows
/// the file into a new buffer, which the caller's slice does not see.
func NewMemFile(data []byte) *MemFile {
	return &MemFile{data: data}
}

func (m *MemFile) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemFile) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[off:], p), nil
}

func (m *MemFile) Length() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}
