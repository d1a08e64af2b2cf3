package stable

import (
	"fmt"
	"math"
)

// PageSize is the stable memory page size in bytes.
const PageSize = 64 * 1024

// Memory is the host view of stable memory. Sizes are in pages and offsets
// in bytes. Read and Write panic with *Trap when the range falls outside
// the current size.
type Memory interface {
	// Size returns the current size in pages.
	Size() int64
	// Grow adds delta pages and returns the previous size, or -1 when the
	// host cannot provide them.
	Grow(delta int64) int64
	// Read copies len(dst) bytes starting at offset.
	Read(dst []byte, offset int64)
	// Write copies src to offset.
	Write(offset int64, src []byte)
}

// Viewer is implemented by memories that can lend a slice aliasing their
// storage. The view is valid until the next Grow or Write.
type Viewer interface {
	View(offset, length int64) ([]byte, bool)
}

// Trap is the panic value raised when stable memory is used in a way the
// host would abort on.
type Trap struct {
	Op     string
	Offset int64
	Length int64
	Msg    string
}

func (t *Trap) Error() string {
	return fmt.Sprintf("stable %s trap at offset %d len %d: %s", t.Op, t.Offset, t.Length, t.Msg)
}

func trap(op string, offset, length int64, msg string) {
	panic(&Trap{Op: op, Offset: offset, Length: length, Msg: msg})
}

// Read copies size bytes from stable memory at offset into dst.
// A zero size is a no-op. A negative size, a size larger than dst or a
// range beyond the current memory size traps.
func Read(m Memory, dst []byte, offset, size int64) {
	checkRange("read", m, len(dst), offset, size)
	if size == 0 {
		return
	}
	m.Read(dst[:size], offset)
}

// Write copies size bytes from src into stable memory at offset. It follows
// the same rules as Read and never grows the memory.
func Write(m Memory, offset int64, src []byte, size int64) {
	checkRange("write", m, len(src), offset, size)
	if size == 0 {
		return
	}
	m.Write(offset, src[:size])
}

func checkRange(op string, m Memory, have int, offset, size int64) {
	switch {
	case m == nil:
		trap(op, offset, size, "nil memory")
	case size < 0:
		trap(op, offset, size, "negative size")
	case size > int64(have):
		trap(op, offset, size, "buffer shorter than size")
	case size == 0:
		return
	case offset < 0:
		trap(op, offset, size, "negative offset")
	case offset > math.MaxInt64-size:
		trap(op, offset, size, "range overflows")
	}
	limit, ok := pageBytes(m.Size())
	if ok && offset+size > limit {
		trap(op, offset, size, "out of bounds")
	}
}

// pagesFor returns the number of pages needed to hold n bytes.
func pagesFor(n int64) int64 {
	p := n / PageSize
	if n%PageSize != 0 {
		p++
	}
	return p
}

// pageBytes converts a page count to bytes, reporting false on overflow.
func pageBytes(pages int64) (int64, bool) {
	if pages < 0 || pages > MaxPages {
		return 0, false
	}
	return pages * PageSize, true
}

// boundsCheck is shared by the backends for their own Read and Write.
func boundsCheck(op string, offset, length, size int64) {
	if offset < 0 || length < 0 || offset > size || length > size-offset {
		trap(op, offset, length, fmt.Sprintf("out of bounds for %d bytes", size))
	}
}

// MaxPages is the largest page count whose byte size fits in an int64.
// WithMaxPages values above it are clamped.
const MaxPages = math.MaxInt64 / PageSize

// Option configures a memory backend.
type Option func(*config)

type config struct {
	maxPages int64
}

// WithMaxPages caps the number of pages a memory may grow to.
// Zero or negative values mean the backend default.
func WithMaxPages(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

func newConfig(def int64, opts []Option) config {
	c := config{maxPages: def}
	for _, opt := range opts {
		opt(&c)
	}
	c.maxPages = min(c.maxPages, MaxPages)
	return c
}
