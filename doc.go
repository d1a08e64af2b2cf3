// Package cdk is a canister development kit core: the Candid wire codec,
// principal identities, stable memory I/O and a host shim, usable both
// inside a canister and natively for tests and tooling.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	cdk/
//	├── candid/      Candid types, values, arena, encoder, decoder, text form
//	├── principal/   29-byte principal identities and their textual form
//	├── stable/      page-granular stable memory, cursors, save/restore
//	├── shim/        pluggable host backend, blob registry, blob directory
//	├── buffer/      growable byte buffer with overflow-checked reservation
//	├── leb128/      LEB128 and SLEB128 variable-length integers
//	├── errors/      structured error types carrying result codes
//	└── cmd/cdk/     command-line encoder, decoder and inspector
//
// # Quick Start
//
// Encode and decode a Candid message:
//
//	a := candid.NewArena(0)
//	defer a.Destroy()
//
//	msg, err := candid.NewEncoder().
//	    Add(candid.Nat, a.Nat(42)).
//	    Add(candid.Text, a.Text("hello")).
//	    Encode()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, values, err := candid.Decode(a, msg)
//	fmt.Println(candid.FormatArgs(values)) // (42, "hello")
//
// Persist state across an upgrade:
//
//	mem := stable.NewHeap()
//	if err := stable.Save(mem, state); err != nil {
//	    log.Fatal(err)
//	}
//	restored, err := stable.Restore(mem)
//
// # Errors
//
// Every fallible operation returns an *errors.Error whose Kind is one of the
// outward result codes (invalid_arg, not_found, out_of_memory,
// out_of_bounds, io, unsupported, buffer_overflow). Use errors.KindOf to
// recover it from any wrapped error. Decoder errors carry the byte offset
// and the path of the failing value.
//
// # Logging
//
// The candid, stable and shim packages log through zap. Each exposes
// SetLogger; the default is a no-op logger.
package cdk
