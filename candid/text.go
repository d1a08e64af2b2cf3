package candid

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTypeText bounds the length of Type.String. Shared subtrees are
// printed at every use, so a small type table can describe a type whose
// full text is exponentially long.
const MaxTypeText = 1 << 16

// String renders t in Candid syntax. Recursive references are written as
// μtN binders. Text longer than MaxTypeText is cut and ends in "...".
func (t *Type) String() string {
	p := &typePrinter{back: make(map[*Type]string)}
	p.findBackEdges(t, make(map[*Type]bool), make(map[*Type]bool))
	p.print(t, make(map[*Type]bool))
	s := p.b.String()
	if !p.full() {
		return s
	}
	n := MaxTypeText
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

type typePrinter struct {
	b    strings.Builder
	back map[*Type]string // nodes reached again while still open
	cut  bool
}

func (p *typePrinter) full() bool {
	if p.b.Len() > MaxTypeText {
		p.cut = true
	}
	return p.cut
}

func (p *typePrinter) findBackEdges(t *Type, open, done map[*Type]bool) {
	if t == nil || t.kind.IsPrimitive() || done[t] {
		return
	}
	if open[t] {
		if _, ok := p.back[t]; !ok {
			p.back[t] = "t" + strconv.Itoa(len(p.back))
		}
		return
	}
	open[t] = true
	eachChild(t, func(c *Type) bool {
		p.findBackEdges(c, open, done)
		return true
	})
	open[t] = false
	done[t] = true
}

func (p *typePrinter) print(t *Type, open map[*Type]bool) {
	b := &p.b
	if p.full() {
		return
	}
	if t == nil {
		b.WriteString("<nil>")
		return
	}
	if name, ok := p.back[t]; ok {
		if open[t] {
			b.WriteString(name)
			return
		}
		b.WriteString("μ")
		b.WriteString(name)
		b.WriteByte('.')
	}
	open[t] = true
	defer delete(open, t)

	switch t.kind {
	case KindOpt, KindVec:
		b.WriteString(t.kind.String())
		b.WriteByte(' ')
		p.print(t.inner, open)
	case KindRecord, KindVariant:
		b.WriteString(t.kind.String())
		if len(t.fields) == 0 {
			b.WriteString(" {}")
			return
		}
		tuple := t.kind == KindRecord && isTuple(t.fields, func(f Field) Label { return f.Label })
		b.WriteString(" { ")
		for i, f := range t.fields {
			if i > 0 {
				b.WriteString("; ")
			}
			switch {
			case tuple:
				p.print(f.Type, open)
			case t.kind == KindVariant && f.Type.kind == KindNull:
				b.WriteString(f.Label.String())
			default:
				b.WriteString(f.Label.String())
				b.WriteString(" : ")
				p.print(f.Type, open)
			}
		}
		b.WriteString(" }")
	case KindFunc:
		b.WriteString("func ")
		p.signature(t, open)
	case KindService:
		b.WriteString("service {")
		for _, m := range t.methods {
			b.WriteByte(' ')
			b.WriteString(m.Name)
			b.WriteString(" : ")
			if m.Type.kind == KindFunc {
				p.signature(m.Type, open)
			} else {
				p.print(m.Type, open)
			}
			b.WriteByte(';')
		}
		b.WriteString(" }")
	default:
		b.WriteString(t.kind.String())
	}
}

func (p *typePrinter) signature(t *Type, open map[*Type]bool) {
	b := &p.b
	p.list(t.args, open)
	b.WriteString(" -> ")
	p.list(t.results, open)
	for _, m := range t.modes {
		b.WriteByte(' ')
		b.WriteString(m.String())
	}
}

func (p *typePrinter) list(types []*Type, open map[*Type]bool) {
	p.b.WriteByte('(')
	for i, t := range types {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.print(t, open)
	}
	p.b.WriteByte(')')
}

func isTuple[T any](items []T, label func(T) Label) bool {
	for i, it := range items {
		l := label(it)
		if l.named || l.id != uint32(i) {
			return false
		}
	}
	return true
}

// String renders v in Candid value syntax.
func (v *Value) String() string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

// FormatArgs renders an argument list as a parenthesized tuple.
func FormatArgs(values []*Value) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		writeValue(&b, v)
	}
	b.WriteByte(')')
	return b.String()
}

func writeValue(b *strings.Builder, v *Value) {
	if v == nil {
		b.WriteString("<nil>")
		return
	}
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindReserved:
		b.WriteString("reserved")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case KindNat, KindInt:
		b.WriteString(v.Big().String())
	case KindNat8, KindNat16, KindNat32, KindNat64:
		b.WriteString(strconv.FormatUint(v.bits, 10))
	case KindInt8, KindInt16, KindInt32, KindInt64:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case KindFloat32:
		b.WriteString(strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32))
	case KindFloat64:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case KindText:
		b.WriteString(strconv.Quote(v.Text()))
	case KindPrincipal:
		b.WriteString("principal ")
		b.WriteString(strconv.Quote(v.id.Text()))
	case KindService:
		b.WriteString("service ")
		b.WriteString(strconv.Quote(v.id.Text()))
	case KindFunc:
		b.WriteString("func ")
		b.WriteString(strconv.Quote(v.id.Text()))
		b.WriteByte('.')
		b.WriteString(v.method)
	case KindOpt:
		if v.inner == nil {
			b.WriteString("null")
			return
		}
		b.WriteString("opt ")
		writeValue(b, v.inner)
	case KindVec:
		if v.blob {
			writeBlob(b, v.raw)
			return
		}
		if len(v.items) == 0 {
			b.WriteString("vec {}")
			return
		}
		b.WriteString("vec { ")
		for i, it := range v.items {
			if i > 0 {
				b.WriteString("; ")
			}
			writeValue(b, it)
		}
		b.WriteString(" }")
	case KindRecord:
		if len(v.fields) == 0 {
			b.WriteString("record {}")
			return
		}
		tuple := isTuple(v.fields, func(f ValueField) Label { return f.Label })
		b.WriteString("record { ")
		for i, f := range v.fields {
			if i > 0 {
				b.WriteString("; ")
			}
			if !tuple {
				b.WriteString(f.Label.String())
				b.WriteString(" = ")
			}
			writeValue(b, f.Value)
		}
		b.WriteString(" }")
	case KindVariant:
		_, arm := v.Arm()
		b.WriteString("variant { ")
		b.WriteString(arm.Label.String())
		if arm.Value != nil && arm.Value.kind != KindNull {
			b.WriteString(" = ")
			writeValue(b, arm.Value)
		}
		b.WriteString(" }")
	}
}

func writeBlob(b *strings.Builder, data []byte) {
	const hex = "0123456789abcdef"
	b.WriteString(`blob "`)
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('\\')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	b.WriteByte('"')
}
