// Package errors provides structured error types for the canister kit.
//
// Errors are categorized by Phase (where the error occurred) and Kind (the
// outward result code). The Error type carries the byte offset of the
// failure when one is known, an optional field path, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidArg).
//		Path("record", "name").
//		At(42).
//		Detail("variant index %d out of range", idx).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidArg(errors.PhaseEncode, "vec length %d exceeds limit", n)
//	err := errors.OutOfBounds(errors.PhaseStable, offset, length, size)
//
// Kinds map one-to-one onto the result codes exposed at the package
// boundaries (InvalidArg, NotFound, OutOfMemory, OutOfBounds, IO,
// Unsupported, BufferOverflow). A nil error is Ok. Use KindOf to recover the
// code from any wrapped error, and errors.Is with the Err* sentinels to match
// on kind alone.
package errors
