// Package principal implements the compact identity used to address
// canisters and users, together with its checksummed textual form.
//
// The textual form is the lowercase RFC 4648 base32 encoding of
// CRC32(bytes) followed by the bytes, split into groups of five characters
// separated by dashes:
//
//	p, _ := principal.FromBytes([]byte{0xab, 0xcd, 0x01})
//	p.Text() // "em77e-bvlzu-aq"
//
// The empty principal identifies the management canister ("aaaaa-aa").
package principal

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/wippyai/canister-cdk/errors"
)

const (
	// MaxLength is the longest principal in bytes.
	MaxLength = 29

	crcLength = 4
	groupSize = 5
)

var encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Principal is an immutable identity of 0 to MaxLength bytes.
// Principals are comparable with ==.
type Principal struct {
	b [MaxLength]byte
	n uint8
}

// Management returns the empty principal of the management canister.
func Management() Principal {
	return Principal{}
}

// Anonymous returns the principal used for unauthenticated callers.
func Anonymous() Principal {
	return Principal{b: [MaxLength]byte{0x04}, n: 1}
}

// FromBytes copies b into a principal. b may be empty.
func FromBytes(b []byte) (Principal, error) {
	if len(b) > MaxLength {
		return Principal{}, errors.New(errors.PhasePrincipal, errors.KindInvalidArg).
			Value(len(b)).
			Detail("length %d exceeds %d", len(b), MaxLength).
			Build()
	}
	var p Principal
	p.n = uint8(copy(p.b[:], b))
	return p, nil
}

// FromText parses the textual form. Dashes are ignored wherever they
// appear and letters may be in either case; the checksum must match and no
// stray bits may follow the final base32 quantum.
func FromText(s string) (Principal, error) {
	if s == "" {
		return Principal{}, errors.InvalidArg(errors.PhasePrincipal, "empty text")
	}
	digits := strings.ReplaceAll(strings.ToLower(s), "-", "")
	raw, err := encoding.DecodeString(digits)
	if err != nil {
		return Principal{}, errors.New(errors.PhasePrincipal, errors.KindInvalidArg).
			Value(s).
			Cause(err).
			Detail("invalid base32").
			Build()
	}
	if len(raw) < crcLength || len(raw) > crcLength+MaxLength {
		return Principal{}, errors.New(errors.PhasePrincipal, errors.KindInvalidArg).
			Value(s).
			Detail("decoded length %d out of range", len(raw)).
			Build()
	}

	body := raw[crcLength:]
	if binary.BigEndian.Uint32(raw) != crc32.ChecksumIEEE(body) {
		return Principal{}, errors.New(errors.PhasePrincipal, errors.KindInvalidArg).
			Value(s).
			Detail("checksum mismatch").
			Build()
	}

	// the decoder drops trailing bits and skips newlines
	if encoding.EncodeToString(raw) != digits {
		return Principal{}, errors.New(errors.PhasePrincipal, errors.KindInvalidArg).
			Value(s).
			Detail("not in canonical form").
			Build()
	}
	return FromBytes(body)
}

// MustFromText is like FromText but panics on error.
func MustFromText(s string) Principal {
	p, err := FromText(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns a copy of the raw bytes.
func (p Principal) Bytes() []byte {
	return bytes.Clone(p.b[:p.n])
}

// Len returns the length in bytes.
func (p Principal) Len() int { return int(p.n) }

// IsManagement reports whether p is the management canister.
func (p Principal) IsManagement() bool { return p.n == 0 }

// Equal reports byte-wise equality.
func (p Principal) Equal(o Principal) bool { return p == o }

// Compare orders principals by their bytes.
func (p Principal) Compare(o Principal) int {
	return bytes.Compare(p.b[:p.n], o.b[:o.n])
}

// Text returns the canonical textual form.
func (p Principal) Text() string {
	buf := make([]byte, crcLength+int(p.n))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p.b[:p.n]))
	copy(buf[crcLength:], p.b[:p.n])
	enc := encoding.EncodeToString(buf)

	var sb strings.Builder
	sb.Grow(len(enc) + len(enc)/groupSize)
	for i := 0; i < len(enc); i += groupSize {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(enc[i:min(i+groupSize, len(enc))])
	}
	return sb.String()
}

func (p Principal) String() string { return p.Text() }

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.Text()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	v, err := FromText(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
