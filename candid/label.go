package candid

import (
	"cmp"
	"slices"
	"strconv"
)

// Hash returns the 32-bit wire identifier of a field name.
func Hash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*223 + uint32(name[i])
	}
	return h
}

// Label identifies a record or variant field. Only the numeric ID travels
// on the wire; the name is kept for rendering.
type Label struct {
	name  string
	id    uint32
	named bool
}

// Name returns a label for a named field.
func Name(name string) Label {
	return Label{name: name, id: Hash(name), named: true}
}

// IDLabel returns a label for a numeric field such as a tuple position.
func IDLabel(id uint32) Label {
	return Label{id: id}
}

// ID returns the wire identifier.
func (l Label) ID() uint32 { return l.id }

// Name returns the field name, or "" for numeric labels.
func (l Label) Name() string { return l.name }

// IsNamed reports whether the label carries a name.
func (l Label) IsNamed() bool { return l.named }

func (l Label) String() string {
	if l.named {
		return l.name
	}
	return strconv.FormatUint(uint64(l.id), 10)
}

// Field is a labelled member of a record or variant type.
type Field struct {
	Label Label
	Type  *Type
}

// NamedField is shorthand for Field{Name(name), t}.
func NamedField(name string, t *Type) Field {
	return Field{Label: Name(name), Type: t}
}

// IDField is shorthand for Field{IDLabel(id), t}.
func IDField(id uint32, t *Type) Field {
	return Field{Label: IDLabel(id), Type: t}
}

// Tuple returns fields labelled 0..n-1 for the given types.
func Tuple(types ...*Type) []Field {
	fields := make([]Field, len(types))
	for i, t := range types {
		fields[i] = IDField(uint32(i), t)
	}
	return fields
}

// sortLabels orders items by label ID and reports the first duplicate.
func sortLabels[T any](items []T, label func(T) Label) (Label, bool) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(label(a).id, label(b).id)
	})
	for i := 1; i < len(items); i++ {
		if label(items[i]).id == label(items[i-1]).id {
			return label(items[i]), true
		}
	}
	return Label{}, false
}
