package candid

import (
	"strconv"
	"strings"

	"github.com/wippyai/canister-cdk/errors"
)

// typeTable assigns wire table indices to composite type nodes. Nodes are
// grouped into structural equivalence classes by partition refinement, so
// identical subtrees and differently unrolled recursive types share one
// entry.
type typeTable struct {
	nodes   []*Type       // composite nodes in depth-first pre-order
	pos     map[*Type]int // node to position in nodes
	class   []int         // equivalence class per node
	index   []int         // table index per class
	entries []*Type       // representative node per table index
}

func newTypeTable() *typeTable {
	return &typeTable{pos: make(map[*Type]int)}
}

// add collects t and every composite node reachable from it.
func (tt *typeTable) add(t *Type) error {
	if t == nil {
		return errors.InvalidArg(errors.PhaseType, "nil type")
	}
	if t.kind.IsPrimitive() {
		return nil
	}
	if t.kind == kindPending {
		return errors.InvalidArg(errors.PhaseType, "type used before it was defined")
	}
	if _, ok := tt.pos[t]; ok {
		return nil
	}
	tt.pos[t] = len(tt.nodes)
	tt.nodes = append(tt.nodes, t)

	var err error
	eachChild(t, func(c *Type) bool {
		err = tt.add(c)
		return err == nil
	})
	return err
}

// eachChild visits the direct children of t until fn returns false.
func eachChild(t *Type, fn func(*Type) bool) {
	switch t.kind {
	case KindOpt, KindVec:
		fn(t.inner)
	case KindRecord, KindVariant:
		for _, f := range t.fields {
			if !fn(f.Type) {
				return
			}
		}
	case KindFunc:
		for _, c := range t.args {
			if !fn(c) {
				return
			}
		}
		for _, c := range t.results {
			if !fn(c) {
				return
			}
		}
	case KindService:
		for _, m := range t.methods {
			if !fn(m.Type) {
				return
			}
		}
	}
}

// shape renders the parts of t that do not depend on its children.
func shape(t *Type) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(t.kind)))
	switch t.kind {
	case KindRecord, KindVariant:
		for _, f := range t.fields {
			b.WriteByte(',')
			b.WriteString(strconv.FormatUint(uint64(f.Label.id), 10))
		}
	case KindFunc:
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(len(t.args)))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(len(t.results)))
		for _, m := range t.modes {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(int(m)))
		}
	case KindService:
		for _, m := range t.methods {
			b.WriteByte(',')
			b.WriteString(strconv.Quote(m.Name))
		}
	}
	return b.String()
}

// refine computes the coarsest partition of the collected nodes in which
// equal nodes have equal shapes and equal children class by class.
func (tt *typeTable) refine() {
	tt.class = make([]int, len(tt.nodes))
	count := assign(tt.class, func(i int) string { return shape(tt.nodes[i]) })

	for {
		prev := tt.class
		next := make([]int, len(tt.nodes))
		n := assign(next, func(i int) string {
			var b strings.Builder
			b.WriteString(strconv.Itoa(prev[i]))
			eachChild(tt.nodes[i], func(c *Type) bool {
				b.WriteByte('|')
				if c.kind.IsPrimitive() {
					b.WriteByte('p')
					b.WriteString(strconv.Itoa(int(c.kind)))
				} else {
					b.WriteString(strconv.Itoa(prev[tt.pos[c]]))
				}
				return true
			})
			return b.String()
		})
		tt.class = next
		if n == count {
			break
		}
		count = n
	}

	tt.index = make([]int, count)
	for i := range tt.index {
		tt.index[i] = -1
	}
	tt.entries = tt.entries[:0]
	for i, node := range tt.nodes {
		c := tt.class[i]
		if tt.index[c] < 0 {
			tt.index[c] = len(tt.entries)
			tt.entries = append(tt.entries, node)
		}
	}
}

// assign numbers the distinct keys in order of first appearance.
func assign(out []int, key func(int) string) int {
	ids := make(map[string]int)
	for i := range out {
		k := key(i)
		id, ok := ids[k]
		if !ok {
			id = len(ids)
			ids[k] = id
		}
		out[i] = id
	}
	return len(ids)
}

// code returns the wire type code of t: a negative opcode for primitives,
// otherwise its table index.
func (tt *typeTable) code(t *Type) int64 {
	if t.kind.IsPrimitive() {
		return t.kind.Opcode()
	}
	return int64(tt.index[tt.class[tt.pos[t]]])
}

// Equal reports whether two types are structurally equal. Recursive types
// are equal when their infinite unrollings are; field names are ignored in
// favour of their wire IDs.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind.IsPrimitive() || b.kind.IsPrimitive() {
		return a.kind == b.kind
	}
	tt := newTypeTable()
	if tt.add(a) != nil || tt.add(b) != nil {
		return false
	}
	tt.refine()
	return tt.class[tt.pos[a]] == tt.class[tt.pos[b]]
}
