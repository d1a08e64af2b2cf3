package candid

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/principal"
)

// Decoder is a cursor over a message. Construction validates the header
// and type table; values are materialized into the arena one argument at
// a time.
type Decoder struct {
	r     reader
	arena *Arena
	table []*Type
	args  []*Type
	next  int
	cost  uint64
	err   error
	opts  options
}

// NewDecoder parses the header of data. Types and values share the
// lifetime of a; data is not retained past each call that reads it,
// except through values that copy from it.
func NewDecoder(a *Arena, data []byte, opts ...Option) (*Decoder, error) {
	if a == nil {
		return nil, errors.InvalidArg(errors.PhaseDecode, "nil arena")
	}
	d := &Decoder{r: reader{data: data}, arena: a, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	if err := d.readHeader(); err != nil {
		d.logFailure(err)
		return nil, err
	}
	return d, nil
}

// Done reports whether every argument has been read.
func (d *Decoder) Done() bool {
	return d.next >= len(d.args)
}

// Len returns the number of arguments in the message.
func (d *Decoder) Len() int {
	return len(d.args)
}

// Types returns the declared argument types.
func (d *Decoder) Types() []*Type {
	return d.args
}

// Table returns the decoded type table.
func (d *Decoder) Table() []*Type {
	return d.table
}

// Offset returns the position of the cursor in the message.
func (d *Decoder) Offset() int {
	return d.r.pos
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return d.r.remaining()
}

// Next decodes the next argument with its declared type. It returns
// io.EOF once every argument has been read. After a failure the decoder
// keeps returning the same error.
func (d *Decoder) Next() (*Type, *Value, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	if d.Done() {
		return nil, nil, io.EOF
	}
	t := d.args[d.next]
	v, err := d.value(t, 0)
	if err != nil {
		return nil, nil, d.fail(withPath(err, argSegment(d.next)))
	}
	d.next++
	return t, v, nil
}

// ValueAs decodes the next argument after checking that its declared type
// is structurally equal to expected. Labels of the returned value come
// from expected.
func (d *Decoder) ValueAs(expected *Type) (*Value, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.Done() {
		return nil, io.EOF
	}
	t := d.args[d.next]
	if !Equal(t, expected) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidArg).
			Path(argSegment(d.next)).
			At(int64(d.r.pos)).
			Detail("argument type %s does not match expected %s", t, expected).
			Build()
	}
	v, err := d.value(expected, 0)
	if err != nil {
		return nil, d.fail(withPath(err, argSegment(d.next)))
	}
	d.next++
	return v, nil
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.logFailure(err)
	return err
}

func (d *Decoder) logFailure(err error) {
	off, _ := errors.OffsetOf(err)
	Logger().Debug("decode failed",
		zap.Int64("offset", off),
		zap.String("kind", string(errors.KindOf(err))))
}

// Decode reads every argument of data and rejects trailing bytes.
func Decode(a *Arena, data []byte, opts ...Option) ([]*Type, []*Value, error) {
	d, err := NewDecoder(a, data, opts...)
	if err != nil {
		return nil, nil, err
	}
	types := make([]*Type, 0, d.Len())
	values := make([]*Value, 0, d.Len())
	for !d.Done() {
		t, v, err := d.Next()
		if err != nil {
			return nil, nil, err
		}
		types = append(types, t)
		values = append(values, v)
	}
	if d.Remaining() > 0 {
		return nil, nil, d.fail(d.r.errorf("%d trailing bytes", d.Remaining()))
	}
	return types, values, nil
}

func (d *Decoder) readHeader() error {
	r := &d.r
	m, err := r.Bytes(uint64(len(Magic)))
	if err != nil || !bytes.Equal(m, Magic[:]) {
		return errors.New(errors.PhaseDecode, errors.KindInvalidArg).
			At(0).
			Detail("missing DIDL magic").
			Build()
	}

	n, err := r.Uleb()
	if err != nil {
		return err
	}
	if n > uint64(r.remaining()) {
		return r.errorf("type table of %d entries exceeds message", n)
	}
	d.table = make([]*Type, n)
	for i := range d.table {
		t := d.arena.newType()
		t.kind = kindPending
		d.table[i] = t
	}
	for i, t := range d.table {
		if err := d.readEntry(t); err != nil {
			return withPath(err, "table["+strconv.Itoa(i)+"]")
		}
	}
	if err := d.checkTable(); err != nil {
		return err
	}

	argc, err := r.Uleb()
	if err != nil {
		return err
	}
	if argc > uint64(r.remaining()) {
		return r.errorf("%d arguments exceed message", argc)
	}
	d.args = make([]*Type, argc)
	for i := range d.args {
		code, err := r.Sleb()
		if err != nil {
			return err
		}
		if d.args[i], err = d.ref(code); err != nil {
			return withPath(err, argSegment(i))
		}
	}
	return nil
}

// ref resolves a type code to a primitive or a table entry.
func (d *Decoder) ref(code int64) (*Type, error) {
	if code >= 0 {
		if code >= int64(len(d.table)) {
			return nil, d.r.errorf("type index %d out of range (table has %d entries)", code, len(d.table))
		}
		return d.table[code], nil
	}
	k, ok := KindOf(code)
	if !ok || !k.IsPrimitive() {
		return nil, d.r.errorf("invalid type code %d", code)
	}
	return Primitive(k), nil
}

func (d *Decoder) refs(n uint64) ([]*Type, error) {
	if n > uint64(d.r.remaining()) {
		return nil, d.r.errorf("%d type references exceed message", n)
	}
	out := make([]*Type, n)
	for i := range out {
		code, err := d.r.Sleb()
		if err != nil {
			return nil, err
		}
		if out[i], err = d.ref(code); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) readEntry(t *Type) error {
	r := &d.r
	op, err := r.Sleb()
	if err != nil {
		return err
	}

	switch op {
	case opOpt, opVec:
		code, err := r.Sleb()
		if err != nil {
			return err
		}
		inner, err := d.ref(code)
		if err != nil {
			return err
		}
		t.kind, _ = KindOf(op)
		t.inner = inner

	case opRecord, opVariant:
		n, err := r.Uleb()
		if err != nil {
			return err
		}
		if n > uint64(r.remaining()) {
			return r.errorf("%d fields exceed message", n)
		}
		fields := make([]Field, n)
		for i := range fields {
			id, err := r.Uleb()
			if err != nil {
				return err
			}
			if id > math.MaxUint32 {
				return r.errorf("field id %d exceeds 32 bits", id)
			}
			if i > 0 && uint32(id) <= fields[i-1].Label.id {
				return r.errorf("field id %d not strictly increasing", id)
			}
			code, err := r.Sleb()
			if err != nil {
				return err
			}
			ft, err := d.ref(code)
			if err != nil {
				return err
			}
			fields[i] = Field{Label: IDLabel(uint32(id)), Type: ft}
		}
		t.kind, _ = KindOf(op)
		t.fields = fields

	case opFunc:
		n, err := r.Uleb()
		if err != nil {
			return err
		}
		args, err := d.refs(n)
		if err != nil {
			return err
		}
		if n, err = r.Uleb(); err != nil {
			return err
		}
		results, err := d.refs(n)
		if err != nil {
			return err
		}
		if n, err = r.Uleb(); err != nil {
			return err
		}
		if n > 1 {
			return r.errorf("func has %d annotations, at most one allowed", n)
		}
		var modes []FuncMode
		if n == 1 {
			b, err := r.Byte()
			if err != nil {
				return err
			}
			m := FuncMode(b)
			if m < ModeQuery || m > ModeCompositeQuery {
				return r.errorf("invalid func annotation %d", b)
			}
			modes = []FuncMode{m}
		}
		t.kind = KindFunc
		t.args, t.results, t.modes = args, results, modes

	case opService:
		n, err := r.Uleb()
		if err != nil {
			return err
		}
		if n > uint64(r.remaining()) {
			return r.errorf("%d methods exceed message", n)
		}
		methods := make([]Method, n)
		for i := range methods {
			name, err := r.Text()
			if err != nil {
				return err
			}
			if i > 0 && string(name) <= methods[i-1].Name {
				return r.errorf("method %q not in strictly increasing order", name)
			}
			code, err := r.Sleb()
			if err != nil {
				return err
			}
			mt, err := d.ref(code)
			if err != nil {
				return err
			}
			methods[i] = Method{Name: string(name), Type: mt}
		}
		t.kind = KindService
		t.methods = methods

	default:
		if op >= opPrincipal {
			return r.errorf("opcode %d is not a type constructor", op)
		}
		// future type: skip its payload and treat it as reserved
		n, err := r.Uleb()
		if err != nil {
			return err
		}
		if _, err := r.Bytes(n); err != nil {
			return err
		}
		t.kind = KindReserved
	}
	return nil
}

// checkTable validates constraints that need every entry defined.
func (d *Decoder) checkTable() error {
	for i, t := range d.table {
		if t.kind != KindService {
			continue
		}
		for _, m := range t.methods {
			if m.Type.kind != KindFunc {
				return errors.New(errors.PhaseDecode, errors.KindInvalidArg).
					Path("table["+strconv.Itoa(i)+"]", m.Name).
					At(int64(d.r.pos)).
					Detail("service method has type %s", m.Type.kind).
					Build()
			}
		}
	}

	// A cycle made only of record fields describes a type with no finite
	// values.
	const (
		unvisited = iota
		active
		finished
	)
	index := make(map[*Type]int, len(d.table))
	for i, t := range d.table {
		index[t] = i
	}
	state := make([]int, len(d.table))
	var visit func(i int) bool
	visit = func(i int) bool {
		state[i] = active
		for _, f := range d.table[i].fields {
			j, ok := index[f.Type]
			if !ok || f.Type.kind != KindRecord {
				continue
			}
			if state[j] == active || (state[j] == unvisited && !visit(j)) {
				return false
			}
		}
		state[i] = finished
		return true
	}
	for i, t := range d.table {
		if t.kind == KindRecord && state[i] == unvisited && !visit(i) {
			return errors.New(errors.PhaseDecode, errors.KindInvalidArg).
				Path("table["+strconv.Itoa(i)+"]").
				At(int64(d.r.pos)).
				Detail("record type refers to itself without an opt, vec or variant").
				Build()
		}
	}
	return nil
}

func (d *Decoder) value(t *Type, depth int) (*Value, error) {
	if depth > d.opts.maxDepth {
		return nil, d.r.errorf("value nesting exceeds %d", d.opts.maxDepth)
	}
	if err := d.charge(1); err != nil {
		return nil, err
	}
	r, a := &d.r, d.arena

	switch t.kind {
	case KindNull:
		return a.Null(), nil
	case KindReserved:
		return a.Reserved(), nil
	case KindEmpty:
		return nil, r.errorf("type empty has no values")

	case KindBool:
		b, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, r.errorf("invalid bool byte %#x", b)
		}
		return a.Bool(b == 1), nil

	case KindNat, KindInt:
		raw, err := r.Bignum(d.opts.maxIntLen)
		if err != nil {
			return nil, err
		}
		v := a.newValue()
		v.kind = t.kind
		v.raw = a.copyBytes(raw)
		return v, nil

	case KindNat8, KindNat16, KindNat32, KindNat64,
		KindInt8, KindInt16, KindInt32, KindInt64,
		KindFloat32, KindFloat64:
		bits, err := r.Fixed(fixedSize[t.kind])
		if err != nil {
			return nil, err
		}
		return a.scalar(t.kind, bits), nil

	case KindText:
		b, err := r.Text()
		if err != nil {
			return nil, err
		}
		if d.opts.validateUTF8 && !utf8.Valid(b) {
			return nil, r.errorf("text is not valid UTF-8")
		}
		return a.TextBytes(b), nil

	case KindPrincipal:
		p, err := d.principalRef()
		if err != nil {
			return nil, err
		}
		return a.Principal(p), nil

	case KindService:
		p, err := d.principalRef()
		if err != nil {
			return nil, err
		}
		return a.ServiceRef(p), nil

	case KindFunc:
		tag, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnsupported).
				At(int64(r.pos - 1)).
				Detail("opaque func reference").
				Build()
		}
		if tag != 1 {
			return nil, r.errorf("invalid func reference tag %#x", tag)
		}
		p, err := d.principalRef()
		if err != nil {
			return nil, err
		}
		method, err := r.Text()
		if err != nil {
			return nil, err
		}
		return a.FuncRef(p, string(method)), nil

	case KindOpt:
		tag, err := r.Byte()
		if err != nil {
			return nil, err
		}
		switch tag {
		case 0:
			return a.None(), nil
		case 1:
			inner, err := d.value(t.inner, depth+1)
			if err != nil {
				return nil, err
			}
			return a.Some(inner), nil
		}
		return nil, r.errorf("invalid opt tag %#x", tag)

	case KindVec:
		n, err := r.Uleb()
		if err != nil {
			return nil, err
		}
		if n > d.opts.maxVecLen {
			return nil, r.errorf("vec of %d elements exceeds %d", n, d.opts.maxVecLen)
		}
		if t.IsBlob() {
			b, err := r.Bytes(n)
			if err != nil {
				return nil, err
			}
			return a.Blob(b), nil
		}
		// every element costs at least one
		if !d.affords(n) {
			return nil, d.quotaExceeded()
		}
		items := make([]*Value, 0, min(n, uint64(r.remaining())))
		for i := uint64(0); i < n; i++ {
			item, err := d.value(t.inner, depth+1)
			if err != nil {
				return nil, withPath(err, indexSegment(int(i)))
			}
			items = append(items, item)
		}
		v := a.newValue()
		v.kind = KindVec
		v.items = items
		return v, nil

	case KindRecord:
		fields := make([]ValueField, len(t.fields))
		for i, f := range t.fields {
			fv, err := d.value(f.Type, depth+1)
			if err != nil {
				return nil, withPath(err, f.Label.String())
			}
			fields[i] = ValueField{Label: f.Label, Value: fv}
		}
		v := a.newValue()
		v.kind = KindRecord
		v.fields = fields
		return v, nil

	case KindVariant:
		idx, err := r.Uleb()
		if err != nil {
			return nil, err
		}
		if idx >= uint64(len(t.fields)) {
			return nil, r.errorf("variant index %d out of range (%d arms)", idx, len(t.fields))
		}
		f := t.fields[idx]
		inner, err := d.value(f.Type, depth+1)
		if err != nil {
			return nil, withPath(err, f.Label.String())
		}
		v := a.Variant(f.Label, inner)
		v.index = int(idx)
		return v, nil
	}
	return nil, errors.Unsupported(errors.PhaseDecode, "type "+t.kind.String())
}

func (d *Decoder) affords(n uint64) bool {
	return d.opts.quota == 0 || n <= d.opts.quota-d.cost
}

func (d *Decoder) charge(n uint64) error {
	if !d.affords(n) {
		return d.quotaExceeded()
	}
	d.cost += n
	return nil
}

func (d *Decoder) quotaExceeded() error {
	return d.r.errorf("decoding quota of %d values exceeded", d.opts.quota)
}

func (d *Decoder) principalRef() (principal.Principal, error) {
	r := &d.r
	tag, err := r.Byte()
	if err != nil {
		return principal.Principal{}, err
	}
	switch tag {
	case 0:
		return principal.Principal{}, errors.New(errors.PhaseDecode, errors.KindUnsupported).
			At(int64(r.pos - 1)).
			Detail("opaque principal reference").
			Build()
	case 1:
	default:
		return principal.Principal{}, r.errorf("invalid principal tag %#x", tag)
	}
	start := r.pos
	b, err := r.Text()
	if err != nil {
		return principal.Principal{}, err
	}
	p, err := principal.FromBytes(b)
	if err != nil {
		return principal.Principal{}, errors.WithOffset(
			errors.Wrap(errors.PhaseDecode, errors.KindInvalidArg, err, "invalid principal"), int64(start))
	}
	return p, nil
}
