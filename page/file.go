package page

import (
	"log/slog"
	"sync"

	"vmkaist/defs"
	"vmkaist/vfile"
)

// fileBackend is a memory-mapped file page. writeBack is serialized
// per page by fileMu, matching the file_lock rule: the filesystem
// underneath has coarse locking, so this subsystem serializes its own
// positional I/O at page granularity.
type fileBackend struct {
	fileMu sync.Mutex

	file      vfile.File
	offset    int64
	readBytes int64
	zeroBytes int64
}

func fileInitializer(kva []byte, aux interface{}) defs.Err_t {
	fb := aux.(*fileBackend)
	return fb.readInto(kva)
}

func (f *fileBackend) readInto(kva []byte) defs.Err_t {
	n, err := f.file.ReadAt(kva[:f.readBytes], f.offset)
	if err != nil || int64(n) != f.readBytes {
		return defs.EIO
	}
	for i := f.readBytes; i < int64(len(kva)); i++ {
		kva[i] = 0
	}
	return 0
}

func (f *fileBackend) kind() Type { return File }

func (f *fileBackend) swapIn(p *Page, kva []byte) defs.Err_t {
	return f.readInto(kva)
}

func (f *fileBackend) swapOut(p *Page) defs.Err_t {
	if p.env.Mapper.IsDirty(p.VA) {
		if err := f.writeBack(p.Frame.Kva); err != 0 {
			return err
		}
		p.env.Mapper.SetDirty(p.VA, false)
	}
	p.env.Mapper.ClearMapping(p.VA)
	p.detach()
	return 0
}

func (f *fileBackend) writeBack(kva []byte) defs.Err_t {
	f.fileMu.Lock()
	defer f.fileMu.Unlock()
	n, err := f.file.WriteAt(kva[:f.readBytes], f.offset)
	if err != nil || int64(n) != f.readBytes {
		return defs.EIO
	}
	return 0
}

func (f *fileBackend) destroy(p *Page) {
	if p.Frame == nil {
		return
	}
	if p.env.Mapper.IsDirty(p.VA) {
		// Best-effort: I/O errors during write-back on teardown are
		// logged here and otherwise ignored, matching a crash at the
		// same instant.
		if err := f.writeBack(p.Frame.Kva); err != 0 {
			slog.Warn("file page write-back failed during teardown", "va", p.VA, "error", err)
		}
	}
	p.env.Mapper.ClearMapping(p.VA)
	fr := p.Frame
	p.detach()
	p.env.Frames.Unref(fr)
}
