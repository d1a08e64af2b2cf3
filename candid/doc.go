// Package candid implements the Candid interface description language
// wire format: a self-describing message carrying a type table followed by
// typed argument values.
//
// # Message Layout
//
//	┌──────┬──────────────────────┬─────────────────────┬──────────────┐
//	│ DIDL │ T, T type descriptors│ N, N SLEB type codes│ N values     │
//	└──────┴──────────────────────┴─────────────────────┴──────────────┘
//
// Primitive types are referenced inline by negative opcodes. Composite
// types (opt, vec, record, variant, func, service) live in the table and
// are referenced by index, which lets a type refer to itself.
//
// # Type Codes
//
//	Type        Opcode   Value encoding
//	───────────────────────────────────────────────
//	null        -1       (none)
//	bool        -2       1 byte
//	nat         -3       LEB128
//	int         -4       SLEB128
//	nat8..64    -5..-8   little-endian
//	int8..64    -9..-12  little-endian
//	float32/64  -13/-14  IEEE-754 little-endian
//	text        -15      LEB128 length + UTF-8
//	reserved    -16      (none)
//	empty       -17      (no values)
//	opt         -18      0 | 1 value
//	vec         -19      LEB128 count + values
//	record      -20      field values in label order
//	variant     -21      LEB128 arm index + value
//	func        -22      1 + principal ref + method text
//	service     -23      principal ref
//	principal   -24      1 + LEB128 length + bytes
//
// # Key Types
//
//	Arena    - Owns every Type and Value node of one message
//	Type     - Immutable type graph node
//	Value    - Immutable value tree node
//	Encoder  - Interns types and writes a message
//	Decoder  - Validates a header and reads values one at a time
//
// # Encoding
//
//	a := candid.NewArena(0)
//	msg, err := candid.NewEncoder().
//		Add(candid.Nat, a.Nat(42)).
//		Add(candid.Text, a.Text("hello")).
//		Encode()
//
// Structurally identical composite types share one table entry, including
// recursive types that are unrolled differently.
//
// # Decoding
//
//	d, err := candid.NewDecoder(a, msg, candid.WithUTF8Validation())
//	for !d.Done() {
//		t, v, err := d.Next()
//		...
//	}
//
// Integers of type nat and int travel as their LEB128 groups and are kept
// verbatim, so values wider than 64 bits survive a round trip. Value.Nat
// and Value.Int return them when they fit.
package candid
