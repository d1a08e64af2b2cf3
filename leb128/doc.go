// Package leb128 implements the variable-length integer encodings used by
// the Candid wire format.
//
// Unsigned values use LEB128: groups of 7 bits, least significant first,
// with the continuation bit 0x80 set on every group but the last. Signed
// values use SLEB128, where the final group's 0x40 bit is the sign and is
// extended into the remaining high bits of the result.
//
// Decoding is limited to 64-bit results. A tenth group that carries a
// continuation bit, or bits beyond the 64th, fails with an invalid argument
// error, as does input that ends before a terminating group. Arbitrary
// precision integers are carried as raw encodings; Scan measures such an
// encoding without interpreting it.
package leb128
