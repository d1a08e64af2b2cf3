package candid

import (
	"unsafe"

	"github.com/wippyai/canister-cdk/errors"
)

const (
	defaultChunkSize = 4096
	nodeChunkLen     = 64

	// MaxAlign is the largest alignment Alloc honours.
	MaxAlign = 16
)

// slab hands out stable pointers to T from fixed-size chunks.
type slab[T any] struct {
	chunks [][]T
	chunk  int // index of the chunk being filled
	used   int // slots used in that chunk
}

func (s *slab[T]) alloc() *T {
	if len(s.chunks) == 0 || s.used == nodeChunkLen {
		if len(s.chunks) > 0 {
			s.chunk++
		}
		if s.chunk == len(s.chunks) {
			s.chunks = append(s.chunks, make([]T, nodeChunkLen))
		}
		s.used = 0
	}
	p := &s.chunks[s.chunk][s.used]
	s.used++
	return p
}

func (s *slab[T]) reset() {
	var zero T
	for i := 0; i <= s.chunk && i < len(s.chunks); i++ {
		for j := range s.chunks[i] {
			s.chunks[i][j] = zero
		}
	}
	s.chunk = 0
	s.used = 0
}

func (s *slab[T]) drop() {
	s.chunks = nil
	s.chunk = 0
	s.used = 0
}

// Arena owns every type and value node built for one message. Nodes are
// allocated in chunks and released together by Reset or Destroy; there is
// no per-node free.
//
// An Arena is not safe for concurrent allocation. Nodes are immutable once
// built and may be read from any goroutine.
type Arena struct {
	types  slab[Type]
	values slab[Value]

	bytes     [][]byte
	cur       int // chunk being filled
	off       int // bytes used in that chunk
	chunkSize int
	allocated int
}

// NewArena returns an empty arena whose byte chunks are chunkSize bytes.
// A non-positive chunkSize selects the default.
func NewArena(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc returns size zeroed bytes aligned to align. The slice remains
// valid until the arena is reset or destroyed. align must be a power of
// two no larger than MaxAlign.
func (a *Arena) Alloc(size, align int) ([]byte, error) {
	if size < 0 {
		return nil, errors.InvalidArg(errors.PhaseArena, "negative size %d", size)
	}
	if align <= 0 || align > MaxAlign || align&(align-1) != 0 {
		return nil, errors.InvalidArg(errors.PhaseArena, "invalid alignment %d", align)
	}
	if a.chunkSize == 0 {
		a.chunkSize = defaultChunkSize
	}

	// oversized requests get a dedicated chunk placed before the current one
	if size > a.chunkSize-align {
		chunk := make([]byte, size+align)
		pad := alignPad(chunk, 0, align)
		a.bytes = append(a.bytes, nil)
		copy(a.bytes[a.cur+1:], a.bytes[a.cur:])
		a.bytes[a.cur] = chunk
		a.cur++
		a.allocated += size
		return chunk[pad : pad+size : pad+size], nil
	}

	if a.cur == len(a.bytes) {
		a.bytes = append(a.bytes, make([]byte, a.chunkSize))
		a.off = 0
	}
	pad := alignPad(a.bytes[a.cur], a.off, align)
	if a.off+pad+size > len(a.bytes[a.cur]) {
		a.cur++
		if a.cur == len(a.bytes) {
			a.bytes = append(a.bytes, make([]byte, a.chunkSize))
		}
		a.off = 0
		pad = alignPad(a.bytes[a.cur], 0, align)
	}

	start := a.off + pad
	a.off = start + size
	a.allocated += size
	return a.bytes[a.cur][start:a.off:a.off], nil
}

func alignPad(chunk []byte, off, align int) int {
	if len(chunk) == 0 {
		return 0
	}
	addr := uintptr(unsafe.Pointer(&chunk[0])) + uintptr(off)
	return int(-addr & uintptr(align-1))
}

// copyBytes copies b into arena storage.
func (a *Arena) copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	dst, _ := a.Alloc(len(b), 1)
	copy(dst, b)
	return dst
}

// Allocated returns the number of bytes handed out by Alloc since the last
// Reset or Destroy.
func (a *Arena) Allocated() int {
	return a.allocated
}

// Reset releases every allocation but keeps the chunks for reuse.
func (a *Arena) Reset() {
	a.types.reset()
	a.values.reset()
	for i := 0; i <= a.cur && i < len(a.bytes); i++ {
		clear(a.bytes[i])
	}
	a.cur, a.off = 0, 0
	a.allocated = 0
}

// Destroy releases every allocation and the chunks backing them. The arena
// may be used again afterwards and starts from fresh chunks.
func (a *Arena) Destroy() {
	a.types.drop()
	a.values.drop()
	a.bytes = nil
	a.cur, a.off = 0, 0
	a.allocated = 0
}

func (a *Arena) newType() *Type {
	return a.types.alloc()
}

func (a *Arena) newValue() *Value {
	return a.values.alloc()
}
