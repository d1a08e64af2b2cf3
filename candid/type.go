package candid

import (
	"cmp"
	"slices"
	"strings"

	"github.com/wippyai/canister-cdk/errors"
)

// Kind is the tag of a type or value node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNat
	KindInt
	KindNat8
	KindNat16
	KindNat32
	KindNat64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindText
	KindReserved
	KindEmpty
	KindPrincipal
	KindOpt
	KindVec
	KindRecord
	KindVariant
	KindFunc
	KindService

	// kindPending marks a node that is allocated but not yet defined,
	// either during Recursive or while a type table is being read.
	kindPending
)

// Wire opcodes for type constructors.
const (
	opNull      int64 = -1
	opBool      int64 = -2
	opNat       int64 = -3
	opInt       int64 = -4
	opNat8      int64 = -5
	opNat16     int64 = -6
	opNat32     int64 = -7
	opNat64     int64 = -8
	opInt8      int64 = -9
	opInt16     int64 = -10
	opInt32     int64 = -11
	opInt64     int64 = -12
	opFloat32   int64 = -13
	opFloat64   int64 = -14
	opText      int64 = -15
	opReserved  int64 = -16
	opEmpty     int64 = -17
	opOpt       int64 = -18
	opVec       int64 = -19
	opRecord    int64 = -20
	opVariant   int64 = -21
	opFunc      int64 = -22
	opService   int64 = -23
	opPrincipal int64 = -24
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindNat:       "nat",
	KindInt:       "int",
	KindNat8:      "nat8",
	KindNat16:     "nat16",
	KindNat32:     "nat32",
	KindNat64:     "nat64",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindText:      "text",
	KindReserved:  "reserved",
	KindEmpty:     "empty",
	KindPrincipal: "principal",
	KindOpt:       "opt",
	KindVec:       "vec",
	KindRecord:    "record",
	KindVariant:   "variant",
	KindFunc:      "func",
	KindService:   "service",
	kindPending:   "pending",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is encoded inline by a negative opcode
// rather than through the type table.
func (k Kind) IsPrimitive() bool {
	return k <= KindPrincipal
}

// Opcode returns the wire opcode of k.
func (k Kind) Opcode() int64 {
	switch k {
	case KindPrincipal:
		return opPrincipal
	case KindOpt, KindVec, KindRecord, KindVariant, KindFunc, KindService:
		return opOpt - int64(k-KindOpt)
	}
	return -1 - int64(k)
}

// KindOf maps a wire opcode back to its kind.
func KindOf(op int64) (Kind, bool) {
	switch {
	case op == opPrincipal:
		return KindPrincipal, true
	case op <= opOpt && op >= opService:
		return KindOpt + Kind(opOpt-op), true
	case op <= opNull && op >= opEmpty:
		return Kind(-1 - op), true
	}
	return 0, false
}

// FuncMode annotates a function type.
type FuncMode uint8

const (
	ModeQuery          FuncMode = 1
	ModeOneway         FuncMode = 2
	ModeCompositeQuery FuncMode = 3
)

func (m FuncMode) String() string {
	switch m {
	case ModeQuery:
		return "query"
	case ModeOneway:
		return "oneway"
	case ModeCompositeQuery:
		return "composite_query"
	}
	return "unknown"
}

// Method is a named entry of a service type.
type Method struct {
	Name string
	Type *Type
}

// Type is an immutable node of a Candid type graph. Composite nodes may
// refer back to themselves to form recursive types.
type Type struct {
	kind    Kind
	inner   *Type
	fields  []Field
	args    []*Type
	results []*Type
	modes   []FuncMode
	methods []Method
}

var primitives = func() (p [KindPrincipal + 1]Type) {
	for k := range p {
		p[k].kind = Kind(k)
	}
	return p
}()

// Shared primitive types.
var (
	Null      = &primitives[KindNull]
	Bool      = &primitives[KindBool]
	Nat       = &primitives[KindNat]
	Int       = &primitives[KindInt]
	Nat8      = &primitives[KindNat8]
	Nat16     = &primitives[KindNat16]
	Nat32     = &primitives[KindNat32]
	Nat64     = &primitives[KindNat64]
	Int8      = &primitives[KindInt8]
	Int16     = &primitives[KindInt16]
	Int32     = &primitives[KindInt32]
	Int64     = &primitives[KindInt64]
	Float32   = &primitives[KindFloat32]
	Float64   = &primitives[KindFloat64]
	Text      = &primitives[KindText]
	Reserved  = &primitives[KindReserved]
	Empty     = &primitives[KindEmpty]
	Principal = &primitives[KindPrincipal]
)

// Primitive returns the shared type for a primitive kind, or nil.
func Primitive(k Kind) *Type {
	if !k.IsPrimitive() {
		return nil
	}
	return &primitives[k]
}

// Kind returns the node's tag.
func (t *Type) Kind() Kind { return t.kind }

// Inner returns the element type of opt and vec.
func (t *Type) Inner() *Type { return t.inner }

// Fields returns the fields of a record or variant in label order.
// The slice must not be modified.
func (t *Type) Fields() []Field { return t.fields }

// Args returns a function's parameter types.
func (t *Type) Args() []*Type { return t.args }

// Results returns a function's result types.
func (t *Type) Results() []*Type { return t.results }

// Modes returns a function's annotations.
func (t *Type) Modes() []FuncMode { return t.modes }

// Methods returns a service's methods sorted by name.
func (t *Type) Methods() []Method { return t.methods }

// Field returns the position and field with the given wire ID.
func (t *Type) Field(id uint32) (int, Field, bool) {
	i, ok := slices.BinarySearchFunc(t.fields, id, func(f Field, id uint32) int {
		return cmp.Compare(f.Label.id, id)
	})
	if !ok {
		return -1, Field{}, false
	}
	return i, t.fields[i], true
}

// IsBlob reports whether t is vec nat8.
func (t *Type) IsBlob() bool {
	return t.kind == KindVec && t.inner != nil && t.inner.kind == KindNat8
}

// OptType returns opt inner.
func (a *Arena) OptType(inner *Type) *Type {
	t := a.newType()
	t.kind = KindOpt
	t.inner = inner
	return t
}

// VecType returns vec inner.
func (a *Arena) VecType(inner *Type) *Type {
	t := a.newType()
	t.kind = KindVec
	t.inner = inner
	return t
}

// BlobType returns vec nat8.
func (a *Arena) BlobType() *Type {
	return a.VecType(Nat8)
}

// RecordType returns a record with the given fields in canonical order.
func (a *Arena) RecordType(fields ...Field) (*Type, error) {
	return a.fieldType(KindRecord, fields)
}

// VariantType returns a variant with the given arms in canonical order.
func (a *Arena) VariantType(fields ...Field) (*Type, error) {
	return a.fieldType(KindVariant, fields)
}

func (a *Arena) fieldType(kind Kind, fields []Field) (*Type, error) {
	sorted := slices.Clone(fields)
	for _, f := range sorted {
		if f.Type == nil {
			return nil, errors.New(errors.PhaseType, errors.KindInvalidArg).
				Path(f.Label.String()).
				Detail("%s field without type", kind).
				Build()
		}
	}
	if dup, ok := sortLabels(sorted, func(f Field) Label { return f.Label }); ok {
		return nil, errors.New(errors.PhaseType, errors.KindInvalidArg).
			Path(dup.String()).
			Value(dup.id).
			Detail("duplicate %s label hash %d", kind, dup.id).
			Build()
	}
	t := a.newType()
	t.kind = kind
	t.fields = sorted
	return t, nil
}

// FuncType returns a function type. At most one mode may be given.
func (a *Arena) FuncType(args, results []*Type, modes ...FuncMode) (*Type, error) {
	if len(modes) > 1 {
		return nil, errors.InvalidArg(errors.PhaseType, "func has %d modes, at most one allowed", len(modes))
	}
	for _, m := range modes {
		if m < ModeQuery || m > ModeCompositeQuery {
			return nil, errors.InvalidArg(errors.PhaseType, "invalid func mode %d", m)
		}
	}
	if slices.Contains(args, nil) || slices.Contains(results, nil) {
		return nil, errors.InvalidArg(errors.PhaseType, "func signature contains nil type")
	}
	t := a.newType()
	t.kind = KindFunc
	t.args = slices.Clone(args)
	t.results = slices.Clone(results)
	t.modes = slices.Clone(modes)
	return t, nil
}

// ServiceType returns a service with methods sorted by name. Every method
// must have a func type.
func (a *Arena) ServiceType(methods ...Method) (*Type, error) {
	sorted := slices.Clone(methods)
	slices.SortFunc(sorted, func(x, y Method) int { return strings.Compare(x.Name, y.Name) })
	for i, m := range sorted {
		if m.Type == nil || (m.Type.kind != KindFunc && m.Type.kind != kindPending) {
			return nil, errors.New(errors.PhaseType, errors.KindInvalidArg).
				Path(m.Name).
				Detail("service method must have a func type").
				Build()
		}
		if i > 0 && sorted[i-1].Name == m.Name {
			return nil, errors.New(errors.PhaseType, errors.KindInvalidArg).
				Path(m.Name).
				Detail("duplicate service method").
				Build()
		}
	}
	t := a.newType()
	t.kind = KindService
	t.methods = sorted
	return t, nil
}

// Recursive builds a self-referential type. build receives a reference to
// the type under construction and must return a composite type built from
// it; the reference then becomes that type.
//
//	list, err := a.Recursive(func(self *Type) (*Type, error) {
//		node, err := a.RecordType(NamedField("head", Nat), NamedField("tail", self))
//		if err != nil {
//			return nil, err
//		}
//		return a.OptType(node), nil
//	})
func (a *Arena) Recursive(build func(self *Type) (*Type, error)) (*Type, error) {
	self := a.newType()
	self.kind = kindPending
	t, err := build(self)
	if err != nil {
		return nil, err
	}
	if t == nil || t == self || t.kind.IsPrimitive() || t.kind == kindPending {
		return nil, errors.InvalidArg(errors.PhaseType, "recursive type must resolve to a composite")
	}
	*self = *t
	return self, nil
}
