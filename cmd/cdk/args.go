package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/wippyai/canister-cdk/candid"
	"github.com/wippyai/canister-cdk/leb128"
	"github.com/wippyai/canister-cdk/principal"
)

// parseArg turns "type:value" into a typed Candid argument. Supported forms:
//
//	null  reserved  bool:true  nat:42  int:-7  nat8:255 ... int64:-1
//	float32:1.5  float64:2.5  text:hello  blob:deadbeef
//	principal:aaaaa-aa  opt:nat:5  none:text
func parseArg(a *candid.Arena, s string) (candid.Arg, error) {
	tag, rest, hasValue := strings.Cut(s, ":")

	switch tag {
	case "null":
		return candid.Arg{Type: candid.Null, Value: a.Null()}, nil
	case "reserved":
		return candid.Arg{Type: candid.Reserved, Value: a.Reserved()}, nil
	case "opt":
		inner, err := parseArg(a, rest)
		if err != nil {
			return candid.Arg{}, err
		}
		return candid.Arg{Type: a.OptType(inner.Type), Value: a.Some(inner.Value)}, nil
	case "none":
		t, ok := primitiveByName(rest)
		if !ok {
			return candid.Arg{}, fmt.Errorf("none: unknown type %q", rest)
		}
		return candid.Arg{Type: a.OptType(t), Value: a.None()}, nil
	}

	if !hasValue {
		return candid.Arg{}, fmt.Errorf("%q: expected type:value", s)
	}

	var (
		v   *candid.Value
		t   *candid.Type
		err error
	)
	switch tag {
	case "bool":
		var b bool
		b, err = strconv.ParseBool(rest)
		t, v = candid.Bool, a.Bool(b)
	case "nat":
		t = candid.Nat
		v, err = parseNat(a, rest)
	case "int":
		t = candid.Int
		v, err = parseInt(a, rest)
	case "nat8", "nat16", "nat32", "nat64":
		bits, _ := strconv.Atoi(tag[3:])
		var n uint64
		n, err = strconv.ParseUint(rest, 10, bits)
		t, v = fixedNat(a, bits, n)
	case "int8", "int16", "int32", "int64":
		bits, _ := strconv.Atoi(tag[3:])
		var n int64
		n, err = strconv.ParseInt(rest, 10, bits)
		t, v = fixedInt(a, bits, n)
	case "float32":
		var f float64
		f, err = strconv.ParseFloat(rest, 32)
		t, v = candid.Float32, a.Float32(float32(f))
	case "float64":
		var f float64
		f, err = strconv.ParseFloat(rest, 64)
		t, v = candid.Float64, a.Float64(f)
	case "text":
		t, v = candid.Text, a.Text(rest)
	case "blob":
		var b []byte
		b, err = hex.DecodeString(rest)
		t, v = a.BlobType(), a.Blob(b)
	case "principal":
		var p principal.Principal
		p, err = principal.FromText(rest)
		t, v = candid.Principal, a.Principal(p)
	default:
		return candid.Arg{}, fmt.Errorf("unknown type %q", tag)
	}
	if err != nil {
		return candid.Arg{}, fmt.Errorf("%s: %w", s, err)
	}
	return candid.Arg{Type: t, Value: v}, nil
}

func primitiveByName(name string) (*candid.Type, bool) {
	for k := candid.KindNull; k <= candid.KindPrincipal; k++ {
		if k.String() == name {
			return candid.Primitive(k), true
		}
	}
	return nil, false
}

func fixedNat(a *candid.Arena, bits int, n uint64) (*candid.Type, *candid.Value) {
	switch bits {
	case 8:
		return candid.Nat8, a.Nat8(uint8(n))
	case 16:
		return candid.Nat16, a.Nat16(uint16(n))
	case 32:
		return candid.Nat32, a.Nat32(uint32(n))
	default:
		return candid.Nat64, a.Nat64(n)
	}
}

func fixedInt(a *candid.Arena, bits int, n int64) (*candid.Type, *candid.Value) {
	switch bits {
	case 8:
		return candid.Int8, a.Int8(int8(n))
	case 16:
		return candid.Int16, a.Int16(int16(n))
	case 32:
		return candid.Int32, a.Int32(int32(n))
	default:
		return candid.Int64, a.Int64(n)
	}
}

// parseNat accepts any non-negative decimal; values past 64 bits are carried
// as raw LEB128.
func parseNat(a *candid.Arena, s string) (*candid.Value, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return a.Nat(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid nat %q", s)
	}
	return a.NatLEB(bigLEB(n, false))
}

func parseInt(a *candid.Arena, s string) (*candid.Value, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return a.Int(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int %q", s)
	}
	return a.IntSLEB(bigLEB(n, true))
}

// bigLEB encodes n as LEB128 (signed selects SLEB128). Small values go
// through the leb128 package; wide ones are emitted seven bits at a time.
func bigLEB(n *big.Int, signed bool) []byte {
	if signed && n.IsInt64() {
		return leb128.AppendSigned(nil, n.Int64())
	}
	if !signed && n.IsUint64() {
		return leb128.AppendUnsigned(nil, n.Uint64())
	}

	v := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	var out []byte
	for {
		b := byte(new(big.Int).And(v, mask).Uint64())
		v.Rsh(v, 7)
		var done bool
		if signed {
			done = (v.Sign() == 0 && b&0x40 == 0) || (v.Cmp(big.NewInt(-1)) == 0 && b&0x40 != 0)
		} else {
			done = v.Sign() == 0
		}
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
