// Package stable provides page-granular stable memory and the cursors used
// to stream bytes in and out of it.
//
// Stable memory is a flat byte space that only grows, in pages of 64 KiB.
// Three backends implement [Memory]:
//
//	Heap    in-process byte slice, for tests and native runs
//	File    an *os.File, sized to a whole number of pages
//	Wazero  a wasm linear memory owned by a wazero runtime
//
// Cursors sit on top of a Memory and cache its size in pages:
//
//	w, _ := stable.NewWriter(mem)
//	w.Write(payload)           // grows storage as needed
//	r, _ := stable.NewReader(mem)
//	io.ReadAll(r)              // reads up to the cached capacity
//
// [IO] combines both and adds [IO.Seek]. [Save] and [Restore] handle the
// common "whole state at offset 0" pattern.
//
// Misusing the raw [Read] and [Write] primitives panics with a [*Trap], the
// same way the host aborts a canister. Cursor operations validate their
// arguments first and report [errors.Error] values instead.
package stable
