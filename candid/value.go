package candid

import (
	"bytes"
	"math"
	"math/big"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/leb128"
	"github.com/wippyai/canister-cdk/principal"
)

// ValueField is a labelled member of a record or variant value.
type ValueField struct {
	Label Label
	Value *Value
}

// Value is an immutable node of a Candid value tree. Its shape mirrors the
// type it is encoded with.
type Value struct {
	kind   Kind
	bits   uint64 // bool, fixed-width integers, float bit patterns
	raw    []byte // nat and int LEB128 groups, text, blob bytes
	id     principal.Principal
	method string
	inner  *Value
	items  []*Value
	fields []ValueField
	index  int
	blob   bool
}

func (a *Arena) scalar(k Kind, bits uint64) *Value {
	v := a.newValue()
	v.kind = k
	v.bits = bits
	return v
}

// Null returns the null value.
func (a *Arena) Null() *Value { return a.scalar(KindNull, 0) }

// Reserved returns the reserved value.
func (a *Arena) Reserved() *Value { return a.scalar(KindReserved, 0) }

// Bool returns a bool value.
func (a *Arena) Bool(b bool) *Value {
	var bits uint64
	if b {
		bits = 1
	}
	return a.scalar(KindBool, bits)
}

// Nat returns a nat value.
func (a *Arena) Nat(n uint64) *Value {
	var tmp [leb128.MaxLen64]byte
	v := a.newValue()
	v.kind = KindNat
	v.raw = a.copyBytes(leb128.AppendUnsigned(tmp[:0], n))
	return v
}

// NatLEB returns a nat value from its LEB128 encoding, which may exceed
// 64 bits.
func (a *Arena) NatLEB(enc []byte) (*Value, error) {
	if err := checkBignum(enc); err != nil {
		return nil, err
	}
	v := a.newValue()
	v.kind = KindNat
	v.raw = a.copyBytes(enc)
	return v, nil
}

// Int returns an int value.
func (a *Arena) Int(n int64) *Value {
	var tmp [leb128.MaxLen64]byte
	v := a.newValue()
	v.kind = KindInt
	v.raw = a.copyBytes(leb128.AppendSigned(tmp[:0], n))
	return v
}

// IntSLEB returns an int value from its SLEB128 encoding, which may exceed
// 64 bits.
func (a *Arena) IntSLEB(enc []byte) (*Value, error) {
	if err := checkBignum(enc); err != nil {
		return nil, err
	}
	v := a.newValue()
	v.kind = KindInt
	v.raw = a.copyBytes(enc)
	return v, nil
}

func checkBignum(enc []byte) error {
	n, err := leb128.Scan(enc, 0)
	if err != nil {
		return err
	}
	if n != len(enc) {
		return errors.InvalidArg(errors.PhaseType, "%d trailing bytes after integer encoding", len(enc)-n)
	}
	return nil
}

func (a *Arena) Nat8(n uint8) *Value   { return a.scalar(KindNat8, uint64(n)) }
func (a *Arena) Nat16(n uint16) *Value { return a.scalar(KindNat16, uint64(n)) }
func (a *Arena) Nat32(n uint32) *Value { return a.scalar(KindNat32, uint64(n)) }
func (a *Arena) Nat64(n uint64) *Value { return a.scalar(KindNat64, n) }
func (a *Arena) Int8(n int8) *Value    { return a.scalar(KindInt8, uint64(uint8(n))) }
func (a *Arena) Int16(n int16) *Value  { return a.scalar(KindInt16, uint64(uint16(n))) }
func (a *Arena) Int32(n int32) *Value  { return a.scalar(KindInt32, uint64(uint32(n))) }
func (a *Arena) Int64(n int64) *Value  { return a.scalar(KindInt64, uint64(n)) }

func (a *Arena) Float32(f float32) *Value {
	return a.scalar(KindFloat32, uint64(math.Float32bits(f)))
}

func (a *Arena) Float64(f float64) *Value {
	return a.scalar(KindFloat64, math.Float64bits(f))
}

// Text returns a text value.
func (a *Arena) Text(s string) *Value {
	v := a.newValue()
	v.kind = KindText
	v.raw = a.copyBytes([]byte(s))
	return v
}

// TextBytes returns a text value holding b as is; b is not validated.
func (a *Arena) TextBytes(b []byte) *Value {
	v := a.newValue()
	v.kind = KindText
	v.raw = a.copyBytes(b)
	return v
}

// Blob returns a vec nat8 value stored as one byte run.
func (a *Arena) Blob(b []byte) *Value {
	v := a.newValue()
	v.kind = KindVec
	v.blob = true
	v.raw = a.copyBytes(b)
	return v
}

// Principal returns a principal value.
func (a *Arena) Principal(p principal.Principal) *Value {
	v := a.newValue()
	v.kind = KindPrincipal
	v.id = p
	return v
}

// FuncRef returns a reference to method on the canister p.
func (a *Arena) FuncRef(p principal.Principal, method string) *Value {
	v := a.newValue()
	v.kind = KindFunc
	v.id = p
	v.method = method
	return v
}

// ServiceRef returns a reference to the service p.
func (a *Arena) ServiceRef(p principal.Principal) *Value {
	v := a.newValue()
	v.kind = KindService
	v.id = p
	return v
}

// Some returns a present optional holding inner.
func (a *Arena) Some(inner *Value) *Value {
	v := a.newValue()
	v.kind = KindOpt
	v.inner = inner
	return v
}

// None returns an absent optional.
func (a *Arena) None() *Value {
	v := a.newValue()
	v.kind = KindOpt
	return v
}

// Vec returns a vector of items.
func (a *Arena) Vec(items ...*Value) *Value {
	v := a.newValue()
	v.kind = KindVec
	v.items = append([]*Value(nil), items...)
	return v
}

// Record returns a record value with fields in canonical order.
func (a *Arena) Record(fields ...ValueField) (*Value, error) {
	sorted := append([]ValueField(nil), fields...)
	if dup, ok := sortLabels(sorted, func(f ValueField) Label { return f.Label }); ok {
		return nil, errors.New(errors.PhaseType, errors.KindInvalidArg).
			Path(dup.String()).
			Value(dup.id).
			Detail("duplicate record label hash %d", dup.id).
			Build()
	}
	v := a.newValue()
	v.kind = KindRecord
	v.fields = sorted
	return v, nil
}

// Variant returns a variant value selecting the arm with label. The arm
// position is resolved against the type when the value is encoded.
func (a *Arena) Variant(label Label, inner *Value) *Value {
	v := a.newValue()
	v.kind = KindVariant
	v.fields = []ValueField{{Label: label, Value: inner}}
	v.index = -1
	return v
}

// Kind returns the node's tag. Blobs report KindVec.
func (v *Value) Kind() Kind { return v.kind }

// Bool returns the value of a bool.
func (v *Value) Bool() bool { return v.bits != 0 }

// Nat returns a nat that fits in 64 bits.
func (v *Value) Nat() (uint64, error) {
	if v.kind != KindNat {
		return 0, kindMismatch(KindNat, v.kind)
	}
	n, _, err := leb128.DecodeUnsigned(v.raw)
	return n, err
}

// Int returns an int that fits in 64 bits.
func (v *Value) Int() (int64, error) {
	if v.kind != KindInt {
		return 0, kindMismatch(KindInt, v.kind)
	}
	n, _, err := leb128.DecodeSigned(v.raw)
	return n, err
}

// Encoded returns the LEB128 or SLEB128 groups of a nat or int.
func (v *Value) Encoded() []byte { return v.raw }

// Big returns a nat or int at full precision.
func (v *Value) Big() *big.Int {
	x := new(big.Int)
	for i := len(v.raw) - 1; i >= 0; i-- {
		x.Lsh(x, 7)
		x.Or(x, big.NewInt(int64(v.raw[i]&0x7f)))
	}
	if v.kind == KindInt && len(v.raw) > 0 && v.raw[len(v.raw)-1]&0x40 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(7*len(v.raw))))
	}
	return x
}

// Uint64 returns a nat8, nat16, nat32 or nat64.
func (v *Value) Uint64() uint64 { return v.bits }

// Int64 returns an int8, int16, int32 or int64 sign-extended.
func (v *Value) Int64() int64 {
	switch v.kind {
	case KindInt8:
		return int64(int8(v.bits))
	case KindInt16:
		return int64(int16(v.bits))
	case KindInt32:
		return int64(int32(v.bits))
	}
	return int64(v.bits)
}

func (v *Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v *Value) Float64() float64 { return math.Float64frombits(v.bits) }

// Text returns the bytes of a text value as a string.
func (v *Value) Text() string { return string(v.raw) }

// TextBytes returns the raw bytes of a text value.
func (v *Value) TextBytes() []byte { return v.raw }

// IsBlob reports whether a vec value is stored as a byte run.
func (v *Value) IsBlob() bool { return v.blob }

// Blob returns the bytes of a vec nat8 value, gathering elements when the
// vector was built item by item.
func (v *Value) Blob() []byte {
	if v.blob {
		return v.raw
	}
	out := make([]byte, len(v.items))
	for i, it := range v.items {
		out[i] = byte(it.bits)
	}
	return out
}

// Principal returns the principal of a principal, func or service value.
func (v *Value) Principal() principal.Principal { return v.id }

// Method returns the method name of a func value.
func (v *Value) Method() string { return v.method }

// Opt returns the inner value of an optional and whether it is present.
func (v *Value) Opt() (*Value, bool) { return v.inner, v.inner != nil }

// Len returns the element count of a vec.
func (v *Value) Len() int {
	if v.blob {
		return len(v.raw)
	}
	return len(v.items)
}

// Items returns the elements of a vec; nil for blobs.
func (v *Value) Items() []*Value { return v.items }

// Fields returns the fields of a record in label order.
func (v *Value) Fields() []ValueField { return v.fields }

// Field returns the record field with the given wire ID.
func (v *Value) Field(id uint32) (*Value, bool) {
	for _, f := range v.fields {
		if f.Label.id == id {
			return f.Value, true
		}
	}
	return nil, false
}

// Arm returns the selected arm of a variant and its position in the type,
// or -1 when the position has not been resolved.
func (v *Value) Arm() (int, ValueField) {
	if v.kind != KindVariant || len(v.fields) == 0 {
		return -1, ValueField{}
	}
	return v.index, v.fields[0]
}

// Equal reports whether v and o hold the same data. Floats compare by bit
// pattern, and a blob equals a vector of the same nat8 elements.
func (v *Value) Equal(o *Value) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil || v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNat, KindInt, KindText:
		return bytes.Equal(v.raw, o.raw)
	case KindPrincipal, KindService:
		return v.id == o.id
	case KindFunc:
		return v.id == o.id && v.method == o.method
	case KindOpt:
		if (v.inner == nil) != (o.inner == nil) {
			return false
		}
		return v.inner == nil || v.inner.Equal(o.inner)
	case KindVec:
		if v.blob || o.blob {
			return v.Len() == o.Len() && bytes.Equal(v.Blob(), o.Blob())
		}
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindRecord, KindVariant:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Label.id != o.fields[i].Label.id || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	}
	return v.bits == o.bits
}

func kindMismatch(want, got Kind) *errors.Error {
	return errors.InvalidArg(errors.PhaseType, "expected %s value, got %s", want, got)
}
