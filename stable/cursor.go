package stable

import (
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// cursor is the state shared by Writer, Reader and IO: a byte offset and the
// memory size in pages as last observed.
type cursor struct {
	mem    Memory
	offset int64
	pages  int64
}

func newCursor(m Memory, offset int64) (cursor, error) {
	if m == nil {
		return cursor{}, errors.InvalidArg(errors.PhaseStable, "nil memory")
	}
	if offset < 0 {
		return cursor{}, errors.InvalidArg(errors.PhaseStable, "negative offset %d", offset)
	}
	return cursor{mem: m, offset: offset, pages: m.Size()}, nil
}

// ensure grows the memory so that end bytes are addressable.
func (c *cursor) ensure(end int64) error {
	required := pagesFor(end)
	if required <= c.pages {
		return nil
	}
	delta := required - c.pages
	old := c.mem.Grow(delta)
	if old < 0 {
		Logger().Debug("stable grow failed", zap.Int64("pages", c.pages), zap.Int64("delta", delta))
		return errors.OutOfMemory(errors.PhaseStable, "cannot grow %d pages by %d", c.pages, delta)
	}
	c.pages = old + delta
	return nil
}

func (c *cursor) write(p []byte) (int, error) {
	if p == nil {
		return 0, errors.InvalidArg(errors.PhaseStable, "nil data")
	}
	n := int64(len(p))
	if n == 0 {
		return 0, nil
	}
	if c.offset > math.MaxInt64-n {
		return 0, errors.OutOfBounds(errors.PhaseStable, c.offset, n, math.MaxInt64)
	}
	if err := c.ensure(c.offset + n); err != nil {
		return 0, err
	}
	Write(c.mem, c.offset, p, n)
	c.offset += n
	return len(p), nil
}

func (c *cursor) read(p []byte) (int, error) {
	capacity, ok := pageBytes(c.pages)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseStable, c.offset, int64(len(p)), math.MaxInt64)
	}
	if c.offset >= capacity {
		return 0, io.EOF
	}
	n := min(int64(len(p)), capacity-c.offset)
	if n == 0 {
		return 0, nil
	}
	Read(c.mem, p, c.offset, n)
	c.offset += n
	return int(n), nil
}

// Writer appends to stable memory, growing it as needed.
type Writer struct {
	c cursor
}

// NewWriter returns a Writer positioned at offset 0.
func NewWriter(m Memory) (*Writer, error) {
	return NewWriterAt(m, 0)
}

// NewWriterAt returns a Writer positioned at offset. Storage is grown so the
// offset itself is covered.
func NewWriterAt(m Memory, offset int64) (*Writer, error) {
	c, err := newCursor(m, offset)
	if err != nil {
		return nil, err
	}
	if err := c.ensure(offset); err != nil {
		return nil, err
	}
	return &Writer{c: c}, nil
}

// Write copies p at the current offset and advances past it.
// On failure nothing is written and the offset does not move.
func (w *Writer) Write(p []byte) (int, error) {
	return w.c.write(p)
}

// Offset returns the next byte position to be written.
func (w *Writer) Offset() int64 {
	return w.c.offset
}

// Reader reads stable memory up to the capacity observed when it was created.
type Reader struct {
	c cursor
}

// NewReader returns a Reader positioned at offset 0.
func NewReader(m Memory) (*Reader, error) {
	return NewReaderAt(m, 0)
}

// NewReaderAt returns a Reader positioned at offset.
func NewReaderAt(m Memory, offset int64) (*Reader, error) {
	c, err := newCursor(m, offset)
	if err != nil {
		return nil, err
	}
	return &Reader{c: c}, nil
}

// Read fills p with at most the bytes left before capacity. At the end of
// capacity it returns 0 and io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	return r.c.read(p)
}

// Offset returns the next byte position to be read.
func (r *Reader) Offset() int64 {
	return r.c.offset
}

// IO reads, writes and seeks over stable memory.
type IO struct {
	c cursor
}

// NewIO returns an IO positioned at offset 0.
func NewIO(m Memory) (*IO, error) {
	return NewIOAt(m, 0)
}

// NewIOAt returns an IO positioned at offset. Unlike NewWriterAt it does not
// grow storage until the first write.
func NewIOAt(m Memory, offset int64) (*IO, error) {
	c, err := newCursor(m, offset)
	if err != nil {
		return nil, err
	}
	return &IO{c: c}, nil
}

func (s *IO) Read(p []byte) (int, error) {
	return s.c.read(p)
}

func (s *IO) Write(p []byte) (int, error) {
	return s.c.write(p)
}

// Seek sets the offset for the next Read or Write. io.SeekEnd is relative to
// the cached capacity. Seeking past the end is allowed; a later Write grows
// storage to reach it.
func (s *IO) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.c.offset
	case io.SeekEnd:
		capacity, ok := pageBytes(s.c.pages)
		if !ok {
			return 0, errors.OutOfBounds(errors.PhaseStable, offset, 0, math.MaxInt64)
		}
		base = capacity
	default:
		return 0, errors.InvalidArg(errors.PhaseStable, "invalid whence %d", whence)
	}

	if (offset > 0 && base > math.MaxInt64-offset) || (offset < 0 && base < math.MinInt64-offset) {
		return 0, errors.OutOfBounds(errors.PhaseStable, base, offset, math.MaxInt64)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New(errors.PhaseStable, errors.KindOutOfBounds).
			Detail("seek to negative offset %d", next).
			Build()
	}
	s.c.offset = next
	return next, nil
}

// Offset returns the current position.
func (s *IO) Offset() int64 {
	return s.c.offset
}

var (
	_ io.Writer          = (*Writer)(nil)
	_ io.Reader          = (*Reader)(nil)
	_ io.ReadWriteSeeker = (*IO)(nil)
)
