// Package shim routes blob access, logging, time and randomness to a
// pluggable host backend.
//
// The active backend is process-wide. [SetOps] installs one, [ResetOps]
// restores the default [Native] backend and [GetOps] returns whatever is
// active. Configure it once at startup; swapping it while other goroutines
// call into the package is not supported.
//
// Blobs are addressed by name. The [Native] backend resolves names to files,
// either through a manifest or under a root directory. The [Stable] backend
// resolves them through a [Registry] of (offset, length) pairs into stable
// memory; [PackBlobs] lays blobs out and records them in a CBOR directory
// that [LoadDirectory] reads back after an upgrade.
//
// Views returned by [Map] carry a [MapKind]. Owned views belong to the
// caller, Borrowed views alias the source and are invalidated by its next
// mutation, Mapped views are released through their handle. Pass every view
// to [Unmap] when done.
package shim
