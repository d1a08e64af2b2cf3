package candid

import (
	"encoding/binary"

	"github.com/wippyai/canister-cdk/buffer"
)

// writer appends wire data to a buffer. The first failure is kept and
// later writes are dropped.
type writer struct {
	buf *buffer.Buffer
	err error
}

func (w *writer) Len() int {
	return w.buf.Len()
}

func (w *writer) Byte(b byte) {
	if w.err == nil {
		w.err = w.buf.AppendByte(b)
	}
}

func (w *writer) Bytes(p []byte) {
	if w.err == nil && len(p) > 0 {
		w.err = w.buf.Append(p)
	}
}

func (w *writer) Uleb(v uint64) {
	if w.err == nil {
		w.err = w.buf.AppendUnsigned(v)
	}
}

func (w *writer) Sleb(v int64) {
	if w.err == nil {
		w.err = w.buf.AppendSigned(v)
	}
}

// Fixed writes the low size bytes of v in little-endian order.
func (w *writer) Fixed(v uint64, size int) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Bytes(tmp[:size])
}

// Text writes a length-prefixed byte string.
func (w *writer) Text(p []byte) {
	w.Uleb(uint64(len(p)))
	w.Bytes(p)
}
