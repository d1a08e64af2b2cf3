package shim

import (
	"sync/atomic"

	"github.com/wippyai/canister-cdk/errors"
)

// MapKind describes who owns the bytes of a Mapping.
type MapKind uint8

const (
	// MapBorrowed aliases backend storage.
	MapBorrowed MapKind = iota
	// MapOwned is a private copy handed to the caller.
	MapOwned
	// MapMapped is an opaque host mapping released through Handle.
	MapMapped
)

func (k MapKind) String() string {
	switch k {
	case MapBorrowed:
		return "borrowed"
	case MapOwned:
		return "owned"
	case MapMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// Mapping is a read-only view of a whole blob.
type Mapping struct {
	Data   []byte
	Kind   MapKind
	Handle any
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int {
	return len(m.Data)
}

// Ops is a host backend.
type Ops interface {
	// BlobSize returns the size of a named blob in bytes.
	BlobSize(name string) (int64, error)
	// BlobRead fills dst from the blob starting at offset. The whole range
	// must lie inside the blob.
	BlobRead(name string, offset int64, dst []byte) error
	// Map returns a view of the entire blob.
	Map(name string) (Mapping, error)
	// Unmap releases a view returned by Map.
	Unmap(m *Mapping)
	Log(msg string)
	TimeNanos() uint64
	// GetRandom fills dst with random bytes.
	GetRandom(dst []byte) error
}

// opsBox lets the atomic pointer tell "default" (nil box) from an explicit
// nil backend.
type opsBox struct {
	ops Ops
}

var (
	current    atomic.Pointer[opsBox]
	defaultBox = &opsBox{ops: NewNative()}
)

// SetOps installs ops as the process-wide backend. A nil ops disables the
// backend: blob and random calls report Unsupported while Log and TimeNanos
// do nothing.
func SetOps(ops Ops) {
	current.Store(&opsBox{ops: ops})
}

// ResetOps restores the default Native backend.
func ResetOps() {
	current.Store(nil)
}

// GetOps returns the active backend, which is nil only after SetOps(nil).
func GetOps() Ops {
	if box := current.Load(); box != nil {
		return box.ops
	}
	return defaultBox.ops
}

func unsupported(op string) error {
	return errors.Unsupported(errors.PhaseShim, op+" without backend")
}

// BlobSize returns the size of name through the active backend.
func BlobSize(name string) (int64, error) {
	ops := GetOps()
	if ops == nil {
		return 0, unsupported("blob size")
	}
	return ops.BlobSize(name)
}

// BlobRead reads len(dst) bytes of name starting at offset.
func BlobRead(name string, offset int64, dst []byte) error {
	ops := GetOps()
	if ops == nil {
		return unsupported("blob read")
	}
	return ops.BlobRead(name, offset, dst)
}

// Map returns a view of name through the active backend.
func Map(name string) (Mapping, error) {
	ops := GetOps()
	if ops == nil {
		return Mapping{}, unsupported("map")
	}
	return ops.Map(name)
}

// Unmap releases m and resets it to an empty borrowed view. Without a
// backend owned views are simply dropped.
func Unmap(m *Mapping) {
	if m == nil {
		return
	}
	if ops := GetOps(); ops != nil {
		ops.Unmap(m)
	}
	*m = Mapping{}
}

// Log forwards msg to the active backend.
func Log(msg string) {
	if ops := GetOps(); ops != nil {
		ops.Log(msg)
	}
}

// TimeNanos returns the backend clock in nanoseconds since the Unix epoch,
// or 0 without a backend.
func TimeNanos() uint64 {
	if ops := GetOps(); ops != nil {
		return ops.TimeNanos()
	}
	return 0
}

// GetRandom fills dst through the active backend.
func GetRandom(dst []byte) error {
	ops := GetOps()
	if ops == nil {
		return unsupported("getrandom")
	}
	return ops.GetRandom(dst)
}

// checkRange validates a read of length bytes at offset in a blob of size.
func checkRange(offset, length, size int64) error {
	if offset < 0 {
		return errors.InvalidArg(errors.PhaseShim, "negative offset %d", offset)
	}
	if offset > size || length > size-offset {
		return errors.OutOfBounds(errors.PhaseShim, offset, length, size)
	}
	return nil
}
