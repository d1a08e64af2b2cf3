package shim

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// Blob locates a named blob in stable memory.
type Blob struct {
	Offset int64
	Length int64
}

// Registry maps blob names to stable memory ranges.
type Registry struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]Blob)}
}

// Register records name at (offset, length), replacing any earlier entry.
func (r *Registry) Register(name string, offset, length int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	if offset < 0 || length < 0 {
		return errors.InvalidArg(errors.PhaseShim, "blob %q: negative offset or length", name)
	}

	r.mu.Lock()
	_, replaced := r.blobs[name]
	r.blobs[name] = Blob{Offset: offset, Length: length}
	r.mu.Unlock()

	Logger().Debug("blob registered",
		zap.String("name", name),
		zap.Int64("offset", offset),
		zap.Int64("length", length),
		zap.Bool("replaced", replaced))
	return nil
}

// Unregister removes name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[name]; !ok {
		return errors.NotFound(errors.PhaseShim, "blob "+name)
	}
	delete(r.blobs, name)
	return nil
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.blobs)
	r.mu.Unlock()
}

// Lookup returns the range registered for name.
func (r *Registry) Lookup(name string) (Blob, error) {
	r.mu.RLock()
	b, ok := r.blobs[name]
	r.mu.RUnlock()
	if !ok {
		return Blob{}, errors.NotFound(errors.PhaseShim, "blob "+name)
	}
	return b, nil
}

// Len returns the number of registered blobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.blobs))
	for name := range r.blobs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

func checkName(name string) error {
	if name == "" {
		return errors.InvalidArg(errors.PhaseShim, "empty blob name")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return errors.InvalidArg(errors.PhaseShim, "blob name contains NUL")
	}
	return nil
}

var blobs = NewRegistry()

// Blobs returns the process-wide registry used by the Stable backend unless
// another one is configured.
func Blobs() *Registry {
	return blobs
}

// RegisterBlob records name in the process-wide registry.
func RegisterBlob(name string, offset, length int64) error {
	return blobs.Register(name, offset, length)
}

// UnregisterBlob removes name from the process-wide registry.
func UnregisterBlob(name string) error {
	return blobs.Unregister(name)
}

// ClearBlobs empties the process-wide registry.
func ClearBlobs() {
	blobs.Clear()
}

// LookupBlob resolves name in the process-wide registry.
func LookupBlob(name string) (int64, int64, error) {
	b, err := blobs.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	return b.Offset, b.Length, nil
}
