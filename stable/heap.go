package stable

import "go.uber.org/zap"

// DefaultHeapMaxPages caps a Heap at 4 GiB unless WithMaxPages says otherwise.
const DefaultHeapMaxPages = 1 << 16

// Heap is stable memory held in a Go byte slice.
type Heap struct {
	data     []byte
	maxPages int64
}

// NewHeap returns an empty heap-backed memory.
func NewHeap(opts ...Option) *Heap {
	c := newConfig(DefaultHeapMaxPages, opts)
	return &Heap{maxPages: c.maxPages}
}

// Size returns the current size in pages.
func (h *Heap) Size() int64 {
	return int64(len(h.data)) / PageSize
}

// Grow extends the heap by delta zeroed pages.
func (h *Heap) Grow(delta int64) int64 {
	old := h.Size()
	if delta < 0 || delta > h.maxPages-old {
		Logger().Debug("heap grow refused",
			zap.Int64("pages", old),
			zap.Int64("delta", delta),
			zap.Int64("max", h.maxPages))
		return -1
	}
	if delta == 0 {
		return old
	}
	h.data = append(h.data, make([]byte, delta*PageSize)...)
	return old
}

func (h *Heap) Read(dst []byte, offset int64) {
	boundsCheck("read", offset, int64(len(dst)), int64(len(h.data)))
	copy(dst, h.data[offset:])
}

func (h *Heap) Write(offset int64, src []byte) {
	boundsCheck("write", offset, int64(len(src)), int64(len(h.data)))
	copy(h.data[offset:], src)
}

// View returns a slice aliasing the heap.
func (h *Heap) View(offset, length int64) ([]byte, bool) {
	if offset < 0 || length < 0 || offset > int64(len(h.data)) || length > int64(len(h.data))-offset {
		return nil, false
	}
	return h.data[offset : offset+length : offset+length], true
}
