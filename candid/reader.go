package candid

import (
	"encoding/binary"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/leb128"
)

// reader is a bounds-checked cursor over a message.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) errorf(format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidArg).
		At(int64(r.pos)).
		Detail(format, args...).
		Build()
}

func (r *reader) truncated(need int) error {
	return r.errorf("need %d bytes, %d remaining", need, r.remaining())
}

func (r *reader) Byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.truncated(1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// Bytes returns the next n bytes without copying.
func (r *reader) Bytes(n uint64) ([]byte, error) {
	if n > uint64(r.remaining()) {
		return nil, r.errorf("need %d bytes, %d remaining", n, r.remaining())
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) Uleb() (uint64, error) {
	v, n, err := leb128.DecodeUnsigned(r.data[r.pos:])
	if err != nil {
		return 0, errors.WithOffset(errors.Wrap(errors.PhaseDecode, errors.KindInvalidArg, err, "malformed LEB128"), int64(r.pos))
	}
	r.pos += n
	return v, nil
}

func (r *reader) Sleb() (int64, error) {
	v, n, err := leb128.DecodeSigned(r.data[r.pos:])
	if err != nil {
		return 0, errors.WithOffset(errors.Wrap(errors.PhaseDecode, errors.KindInvalidArg, err, "malformed SLEB128"), int64(r.pos))
	}
	r.pos += n
	return v, nil
}

// Bignum returns the raw groups of a LEB128 or SLEB128 number.
func (r *reader) Bignum(limit int) ([]byte, error) {
	n, err := leb128.Scan(r.data[r.pos:], limit)
	if err != nil {
		return nil, errors.WithOffset(errors.Wrap(errors.PhaseDecode, errors.KindInvalidArg, err, "malformed integer"), int64(r.pos))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Fixed reads a little-endian integer of size bytes.
func (r *reader) Fixed(size int) (uint64, error) {
	b, err := r.Bytes(uint64(size))
	if err != nil {
		return 0, err
	}
	var tmp [8]byte
	copy(tmp[:], b)
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

// Text reads a length-prefixed byte string.
func (r *reader) Text() ([]byte, error) {
	n, err := r.Uleb()
	if err != nil {
		return nil, err
	}
	return r.Bytes(n)
}
