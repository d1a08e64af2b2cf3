package stable

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// DefaultWazeroMaxPages is the largest size a wasm32 memory can report in
// bytes without overflowing uint32.
const DefaultWazeroMaxPages = 1<<16 - 1

// memoryModule is a wasm module with no code that exports one memory,
// (memory (export "memory") 0).
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x00,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// Wazero is stable memory backed by a wasm linear memory. The wasm page
// size matches PageSize.
type Wazero struct {
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory
	pages   int64
}

// NewWazero starts a runtime and instantiates an empty memory in it.
// Close must be called to release the runtime.
func NewWazero(ctx context.Context, opts ...Option) (*Wazero, error) {
	c := newConfig(DefaultWazeroMaxPages, opts)
	if c.maxPages > DefaultWazeroMaxPages {
		c.maxPages = DefaultWazeroMaxPages
	}

	cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(uint32(c.maxPages))
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	mod, err := rt.Instantiate(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseStable, errors.KindIO, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseStable, "exported memory")
	}

	Logger().Debug("stable wazero memory ready", zap.Int64("max_pages", c.maxPages))
	return &Wazero{runtime: rt, mod: mod, mem: mem}, nil
}

// Size returns the current size in pages.
func (m *Wazero) Size() int64 {
	return m.pages
}

// Grow grows the linear memory by delta pages.
func (m *Wazero) Grow(delta int64) int64 {
	if delta < 0 || delta > DefaultWazeroMaxPages {
		return -1
	}
	prev, ok := m.mem.Grow(uint32(delta))
	if !ok {
		Logger().Debug("wazero grow refused", zap.Int64("pages", m.pages), zap.Int64("delta", delta))
		return -1
	}
	m.pages = int64(prev) + delta
	return int64(prev)
}

func (m *Wazero) Read(dst []byte, offset int64) {
	boundsCheck("read", offset, int64(len(dst)), m.pages*PageSize)
	view, ok := m.mem.Read(uint32(offset), uint32(len(dst)))
	if !ok {
		trap("read", offset, int64(len(dst)), "linear memory out of bounds")
	}
	copy(dst, view)
}

func (m *Wazero) Write(offset int64, src []byte) {
	boundsCheck("write", offset, int64(len(src)), m.pages*PageSize)
	if !m.mem.Write(uint32(offset), src) {
		trap("write", offset, int64(len(src)), "linear memory out of bounds")
	}
}

// View returns a slice aliasing the linear memory.
func (m *Wazero) View(offset, length int64) ([]byte, bool) {
	if offset < 0 || length < 0 || offset > m.pages*PageSize || length > m.pages*PageSize-offset {
		return nil, false
	}
	return m.mem.Read(uint32(offset), uint32(length))
}

// Close shuts down the runtime and invalidates the memory.
func (m *Wazero) Close(ctx context.Context) error {
	if err := m.runtime.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseStable, errors.KindIO, err, "close runtime")
	}
	return nil
}
