package shim

import (
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/stable"
)

// Stable serves blobs registered in a Registry out of stable memory.
type Stable struct {
	mem stable.Memory
	cfg config

	randMu sync.Mutex
	rng    *rand.PCG
}

// NewStable returns a backend reading from mem. Names resolve through the
// process-wide registry unless WithRegistry is given.
func NewStable(mem stable.Memory, opts ...Option) *Stable {
	c := newConfig(opts)
	if c.registry == nil {
		c.registry = blobs
	}
	return &Stable{mem: mem, cfg: c}
}

// Registry returns the registry names are resolved in.
func (s *Stable) Registry() *Registry {
	return s.cfg.registry
}

// locate resolves name and checks that [offset, offset+length) is inside
// both the blob and the current memory.
func (s *Stable) locate(name string, offset, length int64) (int64, error) {
	b, err := s.cfg.registry.Lookup(name)
	if err != nil {
		return 0, err
	}
	if err := checkRange(offset, length, b.Length); err != nil {
		return 0, err
	}
	if b.Offset > math.MaxInt64-offset-length {
		return 0, errors.OutOfBounds(errors.PhaseShim, b.Offset, offset+length, math.MaxInt64)
	}
	end := b.Offset + offset + length
	if pages := s.mem.Size(); pages <= math.MaxInt64/stable.PageSize && end > pages*stable.PageSize {
		return 0, errors.OutOfBounds(errors.PhaseShim, b.Offset+offset, length, pages*stable.PageSize)
	}
	return b.Offset + offset, nil
}

// BlobSize returns the registered length of name.
func (s *Stable) BlobSize(name string) (int64, error) {
	b, err := s.cfg.registry.Lookup(name)
	if err != nil {
		return 0, err
	}
	return b.Length, nil
}

// BlobRead copies part of a registered blob out of stable memory.
func (s *Stable) BlobRead(name string, offset int64, dst []byte) error {
	at, err := s.locate(name, offset, int64(len(dst)))
	if err != nil {
		return err
	}
	stable.Read(s.mem, dst, at, int64(len(dst)))
	return nil
}

// Map lends a view of the blob when the memory supports it and copies it
// out otherwise.
func (s *Stable) Map(name string) (Mapping, error) {
	b, err := s.cfg.registry.Lookup(name)
	if err != nil {
		return Mapping{}, err
	}
	at, err := s.locate(name, 0, b.Length)
	if err != nil {
		return Mapping{}, err
	}

	if v, ok := s.mem.(stable.Viewer); ok {
		if data, ok := v.View(at, b.Length); ok {
			return Mapping{Data: data, Kind: MapBorrowed}, nil
		}
	}
	if b.Length > math.MaxInt {
		return Mapping{}, errors.OutOfMemory(errors.PhaseShim, "blob %q is %d bytes", name, b.Length)
	}
	buf := make([]byte, b.Length)
	stable.Read(s.mem, buf, at, b.Length)
	return Mapping{Data: buf, Kind: MapOwned}, nil
}

// Unmap drops owned copies. Borrowed views need no release.
func (s *Stable) Unmap(m *Mapping) {
	if m != nil && m.Kind == MapOwned {
		m.Data = nil
	}
}

// Log writes msg at debug level.
func (s *Stable) Log(msg string) {
	s.cfg.log().Debug(msg, zap.String("source", "canister"))
}

// TimeNanos returns the configured clock in Unix nanoseconds.
func (s *Stable) TimeNanos() uint64 {
	ns := s.cfg.clock().UnixNano()
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

// GetRandom fills dst from the configured source. A source that fails
// falls back to a PCG seeded from the clock, which is not suitable for
// secrets.
func (s *Stable) GetRandom(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if err := readRandom(s.cfg.random, dst); err == nil {
		return nil
	}

	s.randMu.Lock()
	defer s.randMu.Unlock()
	if s.rng == nil {
		seed := s.TimeNanos()
		s.rng = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
		s.cfg.log().Warn("random source failed, using clock-seeded generator")
	}
	for i := 0; i < len(dst); i += 8 {
		v := s.rng.Uint64()
		for j := 0; j < 8 && i+j < len(dst); j++ {
			dst[i+j] = byte(v >> (8 * j))
		}
	}
	return nil
}

var _ Ops = (*Stable)(nil)
