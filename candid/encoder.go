package candid

import (
	"io"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/buffer"
	"github.com/wippyai/canister-cdk/errors"
)

// Magic opens every message.
var Magic = [4]byte{'D', 'I', 'D', 'L'}

// Arg is one typed argument of a message.
type Arg struct {
	Type  *Type
	Value *Value
}

// Encoder serializes an ordered argument list into a message.
type Encoder struct {
	args []Arg
	opts options
}

// NewEncoder creates an encoder with no arguments.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

// Add appends an argument.
func (e *Encoder) Add(t *Type, v *Value) *Encoder {
	e.args = append(e.args, Arg{Type: t, Value: v})
	return e
}

// Len returns the number of arguments added so far.
func (e *Encoder) Len() int {
	return len(e.args)
}

// Reset drops all arguments.
func (e *Encoder) Reset() {
	e.args = e.args[:0]
}

// Encode returns the message bytes.
func (e *Encoder) Encode() ([]byte, error) {
	buf := buffer.New(64)
	if err := e.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo implements io.WriterTo.
func (e *Encoder) WriteTo(w io.Writer) (int64, error) {
	msg, err := e.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(msg)
	return int64(n), err
}

// EncodeTo appends the message to buf. On failure buf may hold a partial
// message.
func (e *Encoder) EncodeTo(buf *buffer.Buffer) error {
	err := e.encode(buf)
	if err != nil {
		off, _ := errors.OffsetOf(err)
		Logger().Debug("encode failed",
			zap.Int64("offset", off),
			zap.String("kind", string(errors.KindOf(err))),
			zap.Int("args", len(e.args)))
	}
	return err
}

func (e *Encoder) encode(buf *buffer.Buffer) error {
	tt := newTypeTable()
	for i, a := range e.args {
		if err := tt.add(a.Type); err != nil {
			return withPath(err, argSegment(i))
		}
	}
	tt.refine()

	st := &encodeState{w: writer{buf: buf}, tt: tt, opts: &e.opts}
	st.w.Bytes(Magic[:])
	st.w.Uleb(uint64(len(tt.entries)))
	for _, t := range tt.entries {
		st.entry(t)
	}
	st.w.Uleb(uint64(len(e.args)))
	for _, a := range e.args {
		st.w.Sleb(tt.code(a.Type))
	}
	if st.w.err != nil {
		return st.w.err
	}

	for i, a := range e.args {
		if err := st.value(a.Type, a.Value, 0); err != nil {
			return withPath(err, argSegment(i))
		}
	}
	return st.w.err
}

// Encode serializes args into a message.
func Encode(args ...Arg) ([]byte, error) {
	e := NewEncoder()
	e.args = args
	return e.Encode()
}

type encodeState struct {
	w    writer
	tt   *typeTable
	opts *options
}

// entry writes the table descriptor of a composite type.
func (s *encodeState) entry(t *Type) {
	w := &s.w
	w.Sleb(t.kind.Opcode())
	switch t.kind {
	case KindOpt, KindVec:
		w.Sleb(s.tt.code(t.inner))
	case KindRecord, KindVariant:
		w.Uleb(uint64(len(t.fields)))
		for _, f := range t.fields {
			w.Uleb(uint64(f.Label.id))
			w.Sleb(s.tt.code(f.Type))
		}
	case KindFunc:
		w.Uleb(uint64(len(t.args)))
		for _, a := range t.args {
			w.Sleb(s.tt.code(a))
		}
		w.Uleb(uint64(len(t.results)))
		for _, r := range t.results {
			w.Sleb(s.tt.code(r))
		}
		w.Uleb(uint64(len(t.modes)))
		for _, m := range t.modes {
			w.Byte(byte(m))
		}
	case KindService:
		w.Uleb(uint64(len(t.methods)))
		for _, m := range t.methods {
			w.Text([]byte(m.Name))
			w.Sleb(s.tt.code(m.Type))
		}
	}
}

func (s *encodeState) fail(format string, args ...any) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidArg).
		At(int64(s.w.Len())).
		Detail(format, args...).
		Build()
}

var fixedSize = map[Kind]int{
	KindNat8: 1, KindNat16: 2, KindNat32: 4, KindNat64: 8,
	KindInt8: 1, KindInt16: 2, KindInt32: 4, KindInt64: 8,
	KindFloat32: 4, KindFloat64: 8,
}

// value writes v as a value of type t.
func (s *encodeState) value(t *Type, v *Value, depth int) error {
	if v == nil {
		return s.fail("nil value for %s", t.kind)
	}
	if depth > s.opts.maxDepth {
		return s.fail("value nesting exceeds %d", s.opts.maxDepth)
	}
	if t.kind == KindEmpty {
		return s.fail("type empty has no values")
	}
	if v.kind != t.kind {
		return s.fail("%s value does not match type %s", v.kind, t.kind)
	}

	w := &s.w
	switch t.kind {
	case KindNull, KindReserved:
	case KindBool:
		w.Byte(byte(v.bits & 1))
	case KindNat, KindInt:
		if len(v.raw) > s.opts.maxIntLen {
			return s.fail("%s encoding of %d bytes exceeds %d", t.kind, len(v.raw), s.opts.maxIntLen)
		}
		w.Bytes(v.raw)
	case KindNat8, KindNat16, KindNat32, KindNat64,
		KindInt8, KindInt16, KindInt32, KindInt64,
		KindFloat32, KindFloat64:
		w.Fixed(v.bits, fixedSize[t.kind])
	case KindText:
		if s.opts.validateUTF8 && !utf8.Valid(v.raw) {
			return s.fail("text is not valid UTF-8")
		}
		w.Text(v.raw)
	case KindPrincipal, KindService:
		w.Byte(1)
		w.Text(v.id.Bytes())
	case KindFunc:
		w.Byte(1)
		w.Byte(1)
		w.Text(v.id.Bytes())
		w.Text([]byte(v.method))
	case KindOpt:
		if v.inner == nil {
			w.Byte(0)
			break
		}
		w.Byte(1)
		if err := s.value(t.inner, v.inner, depth+1); err != nil {
			return err
		}
	case KindVec:
		n := v.Len()
		if uint64(n) > s.opts.maxVecLen {
			return s.fail("vec of %d elements exceeds %d", n, s.opts.maxVecLen)
		}
		w.Uleb(uint64(n))
		if v.blob {
			if !t.IsBlob() {
				return s.fail("blob value does not match vec %s", t.inner.kind)
			}
			w.Bytes(v.raw)
			break
		}
		for i, it := range v.items {
			if err := s.value(t.inner, it, depth+1); err != nil {
				return withPath(err, indexSegment(i))
			}
		}
	case KindRecord:
		if len(v.fields) != len(t.fields) {
			return s.fail("record has %d fields, type has %d", len(v.fields), len(t.fields))
		}
		for i, f := range t.fields {
			vf := v.fields[i]
			if vf.Label.id != f.Label.id {
				return s.fail("record field %s does not match type field %s", vf.Label, f.Label)
			}
			if err := s.value(f.Type, vf.Value, depth+1); err != nil {
				return withPath(err, f.Label.String())
			}
		}
	case KindVariant:
		_, arm := v.Arm()
		idx, f, ok := t.Field(arm.Label.id)
		if !ok {
			return s.fail("variant has no arm %s", arm.Label)
		}
		w.Uleb(uint64(idx))
		if err := s.value(f.Type, arm.Value, depth+1); err != nil {
			return withPath(err, f.Label.String())
		}
	}
	return w.err
}

// withPath prefixes the path of a structured error with seg.
func withPath(err error, seg string) error {
	e, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = append([]string{seg}, e.Path...)
	return &cp
}

func argSegment(i int) string {
	return "arg[" + strconv.Itoa(i) + "]"
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
