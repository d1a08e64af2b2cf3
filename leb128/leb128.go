package leb128

import (
	"io"

	"github.com/wippyai/canister-cdk/errors"
)

// MaxLen64 is the longest encoding of a 64-bit value.
const MaxLen64 = 10

var (
	// ErrOverflow is returned when an encoding exceeds 64 bits.
	ErrOverflow = errors.New(errors.PhaseLEB128, errors.KindInvalidArg).
			Detail("value exceeds 64 bits").Build()

	// ErrTruncated is returned when input ends before the terminating group.
	ErrTruncated = errors.New(errors.PhaseLEB128, errors.KindInvalidArg).
			Detail("unterminated encoding").Build()
)

// AppendUnsigned appends the LEB128 encoding of v to buf.
func AppendUnsigned(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// AppendSigned appends the SLEB128 encoding of v to buf.
func AppendSigned(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// EncodeUnsigned returns the LEB128 encoding of v.
func EncodeUnsigned(v uint64) []byte {
	return AppendUnsigned(make([]byte, 0, SizeUnsigned(v)), v)
}

// EncodeSigned returns the SLEB128 encoding of v.
func EncodeSigned(v int64) []byte {
	return AppendSigned(make([]byte, 0, MaxLen64), v)
}

// SizeUnsigned returns the encoded length of v.
func SizeUnsigned(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// DecodeUnsigned decodes a LEB128 value from the start of data and returns
// it with the number of bytes consumed.
func DecodeUnsigned(data []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if i == MaxLen64-1 && b > 1 {
			return 0, 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// DecodeSigned decodes an SLEB128 value from the start of data and returns
// it with the number of bytes consumed.
func DecodeSigned(data []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if i == MaxLen64-1 && b != 0x00 && b != 0x7f {
			return 0, 0, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Sign extend
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}

// ReadUnsigned reads a LEB128 value from r.
func ReadUnsigned(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrTruncated
			}
			return 0, err
		}
		if i == MaxLen64-1 && b > 1 {
			return 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// ReadSigned reads an SLEB128 value from r.
func ReadSigned(r io.ByteReader) (int64, error) {
	var result int64
	var shift uint
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrTruncated
			}
			return 0, err
		}
		if i == MaxLen64-1 && b != 0x00 && b != 0x7f {
			return 0, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, nil
		}
	}
}

// WriteUnsigned writes the LEB128 encoding of v to w.
func WriteUnsigned(w io.ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// WriteSigned writes the SLEB128 encoding of v to w.
func WriteSigned(w io.ByteWriter, v int64) error {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return w.WriteByte(b)
		}
		if err := w.WriteByte(b | 0x80); err != nil {
			return err
		}
	}
}

// Scan returns the length of the LEB128 or SLEB128 group sequence at the
// start of data without interpreting it. Encodings longer than limit bytes
// are rejected; a limit of zero means no limit.
func Scan(data []byte, limit int) (int, error) {
	for i := 0; i < len(data); i++ {
		if limit > 0 && i >= limit {
			return 0, errors.New(errors.PhaseLEB128, errors.KindInvalidArg).
				Detail("encoding longer than %d bytes", limit).Build()
		}
		if data[i]&0x80 == 0 {
			return i + 1, nil
		}
	}
	return 0, ErrTruncated
}
