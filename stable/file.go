package stable

import (
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// DefaultFileMaxPages caps a File at 4 GiB unless WithMaxPages says otherwise.
const DefaultFileMaxPages = 1 << 16

// File is stable memory persisted in a regular file. The file length is
// always a whole number of pages.
type File struct {
	f        *os.File
	pages    int64
	maxPages int64
}

// OpenFile opens or creates path as stable memory. A file whose length is not
// page aligned is extended with zeros to the next page.
func OpenFile(path string, opts ...Option) (*File, error) {
	c := newConfig(DefaultFileMaxPages, opts)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.IO(errors.PhaseStable, err, "open "+path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.IO(errors.PhaseStable, err, "stat "+path)
	}

	pages := pagesFor(info.Size())
	if pages > c.maxPages {
		_ = f.Close()
		return nil, errors.OutOfMemory(errors.PhaseStable, "%s holds %d pages, limit is %d", path, pages, c.maxPages)
	}
	if pages*PageSize != info.Size() {
		if err := f.Truncate(pages * PageSize); err != nil {
			_ = f.Close()
			return nil, errors.IO(errors.PhaseStable, err, "align "+path)
		}
	}

	Logger().Debug("stable file opened", zap.String("path", path), zap.Int64("pages", pages))
	return &File{f: f, pages: pages, maxPages: c.maxPages}, nil
}

// Size returns the current size in pages.
func (m *File) Size() int64 {
	return m.pages
}

// Grow extends the file by delta zeroed pages.
func (m *File) Grow(delta int64) int64 {
	old := m.pages
	if delta < 0 || delta > m.maxPages-old {
		return -1
	}
	if delta == 0 {
		return old
	}
	if err := m.f.Truncate((old + delta) * PageSize); err != nil {
		Logger().Warn("stable file grow failed", zap.Int64("pages", old), zap.Int64("delta", delta), zap.Error(err))
		return -1
	}
	m.pages = old + delta
	return old
}

func (m *File) Read(dst []byte, offset int64) {
	boundsCheck("read", offset, int64(len(dst)), m.pages*PageSize)
	if _, err := m.f.ReadAt(dst, offset); err != nil {
		trap("read", offset, int64(len(dst)), err.Error())
	}
}

func (m *File) Write(offset int64, src []byte) {
	boundsCheck("write", offset, int64(len(src)), m.pages*PageSize)
	if _, err := m.f.WriteAt(src, offset); err != nil {
		trap("write", offset, int64(len(src)), err.Error())
	}
}

// Sync flushes the file to disk.
func (m *File) Sync() error {
	if err := m.f.Sync(); err != nil {
		return errors.IO(errors.PhaseStable, err, "sync")
	}
	return nil
}

// Close closes the underlying file.
func (m *File) Close() error {
	if err := m.f.Close(); err != nil {
		return errors.IO(errors.PhaseStable, err, "close")
	}
	return nil
}
