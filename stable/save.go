package stable

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// Save writes data at offset 0, growing storage as needed. Bytes past
// len(data) are left untouched.
func Save(m Memory, data []byte) error {
	w, err := NewWriter(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	Logger().Debug("stable saved", zap.Int("bytes", len(data)), zap.Int64("pages", m.Size()))
	return nil
}

// Restore returns the full current capacity of m, zero padding included.
func Restore(m Memory) ([]byte, error) {
	return Bytes(m)
}

// Bytes copies the whole of stable memory into a new slice. Empty memory
// yields an empty, non-nil slice.
func Bytes(m Memory) ([]byte, error) {
	if m == nil {
		return nil, errors.InvalidArg(errors.PhaseStable, "nil memory")
	}
	pages := m.Size()
	size, ok := pageBytes(pages)
	if !ok || size > math.MaxInt {
		return nil, errors.OutOfMemory(errors.PhaseStable, "%d pages do not fit in memory", pages)
	}
	out := make([]byte, size)
	Read(m, out, 0, size)
	return out, nil
}
