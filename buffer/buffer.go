// Package buffer provides a growable append-only byte sink with
// overflow-checked reservation.
package buffer

import (
	"math"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/leb128"
)

// initialCapacity is the first allocation made for an empty buffer.
const initialCapacity = 64

// Buffer accumulates bytes. The zero value is an empty buffer ready to use.
// A Buffer is single-owner; concurrent use is a caller error.
type Buffer struct {
	data []byte // backing storage, len(data) is the capacity
	size int    // committed bytes
}

// New returns a buffer with at least capacity bytes preallocated.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of committed bytes.
func (b *Buffer) Len() int { return b.size }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Bytes returns the committed bytes. The slice aliases the buffer and is
// valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data[:b.size] }

// Reserve ensures room for n more bytes without further allocation.
func (b *Buffer) Reserve(n int) error {
	if n < 0 {
		return errors.InvalidArg(errors.PhaseBuffer, "negative reservation %d", n)
	}
	if b.size > math.MaxInt-n {
		return errors.BufferOverflow(errors.PhaseBuffer, uint64(b.size), uint64(n))
	}
	need := b.size + n
	if need <= len(b.data) {
		return nil
	}

	newCap := len(b.data)
	if newCap < initialCapacity {
		newCap = initialCapacity
	}
	for newCap < need {
		if newCap > math.MaxInt/2 {
			newCap = need
			break
		}
		newCap *= 2
	}

	grown := make([]byte, newCap)
	copy(grown, b.data[:b.size])
	b.data = grown
	return nil
}

// Append copies p onto the end of the buffer. A nil slice is rejected.
func (b *Buffer) Append(p []byte) error {
	if p == nil {
		return errors.InvalidArg(errors.PhaseBuffer, "nil input")
	}
	if err := b.Reserve(len(p)); err != nil {
		return err
	}
	b.size += copy(b.data[b.size:], p)
	return nil
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) error {
	if err := b.Reserve(1); err != nil {
		return err
	}
	b.data[b.size] = c
	b.size++
	return nil
}

// AppendUnsigned appends the LEB128 encoding of v.
func (b *Buffer) AppendUnsigned(v uint64) error {
	var tmp [leb128.MaxLen64]byte
	return b.Append(leb128.AppendUnsigned(tmp[:0], v))
}

// AppendSigned appends the SLEB128 encoding of v.
func (b *Buffer) AppendSigned(v int64) error {
	var tmp [leb128.MaxLen64]byte
	return b.Append(leb128.AppendSigned(tmp[:0], v))
}

// Write implements io.Writer. Unlike Append, an empty or nil p is a no-op.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := b.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteByte implements io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	return b.AppendByte(c)
}

// Clear discards the contents but keeps the capacity.
func (b *Buffer) Clear() {
	b.size = 0
}

// Free releases the backing storage.
func (b *Buffer) Free() {
	b.data = nil
	b.size = 0
}
