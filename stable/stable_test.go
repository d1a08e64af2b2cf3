package stable_test

import (
	"bytes"
	"context"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/stable"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type backend struct {
	name string
	open func(t *testing.T, opts ...stable.Option) stable.Memory
}

func backends() []backend {
	return []backend{
		{"heap", func(t *testing.T, opts ...stable.Option) stable.Memory {
			return stable.NewHeap(opts...)
		}},
		{"file", func(t *testing.T, opts ...stable.Option) stable.Memory {
			f, err := stable.OpenFile(filepath.Join(t.TempDir(), "stable.bin"), opts...)
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, f.Close()) })
			return f
		}},
		{"wazero", func(t *testing.T, opts ...stable.Option) stable.Memory {
			ctx := context.Background()
			m, err := stable.NewWazero(ctx, opts...)
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, m.Close(ctx)) })
			return m
		}},
	}
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*31 + 7)
	}
	return out
}

func TestWriteAcrossPageBoundary(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			mem := b.open(t)
			data := pattern(stable.PageSize + 1)

			w, err := stable.NewWriter(mem)
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.Equal(t, int64(len(data)), w.Offset())
			require.GreaterOrEqual(t, mem.Size(), int64(2))

			r, err := stable.NewReader(mem)
			require.NoError(t, err)
			got := make([]byte, len(data))
			_, err = io.ReadFull(r, got)
			require.NoError(t, err)
			require.Equal(t, data, got)
		})
	}
}

func TestGrowReturnsPreviousSize(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			mem := b.open(t, stable.WithMaxPages(3))
			require.Equal(t, int64(0), mem.Size())
			require.Equal(t, int64(0), mem.Grow(2))
			require.Equal(t, int64(2), mem.Grow(0))
			require.Equal(t, int64(-1), mem.Grow(2))
			require.Equal(t, int64(2), mem.Grow(1))
			require.Equal(t, int64(3), mem.Size())
			require.Equal(t, int64(-1), mem.Grow(-1))
		})
	}
}

func TestGrowBeyondAddressableSize(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			mem := b.open(t, stable.WithMaxPages(math.MaxInt64))
			require.Equal(t, int64(-1), mem.Grow(1<<48))
			require.Equal(t, int64(-1), mem.Grow(stable.MaxPages+1))
			require.Equal(t, int64(0), mem.Size())
			require.Equal(t, int64(0), mem.Grow(1))
			require.Equal(t, int64(1), mem.Size())
		})
	}
}

func TestWriterOutOfMemory(t *testing.T) {
	mem := stable.NewHeap(stable.WithMaxPages(1))
	w, err := stable.NewWriter(mem)
	require.NoError(t, err)

	_, err = w.Write(pattern(stable.PageSize))
	require.NoError(t, err)

	n, err := w.Write([]byte{1})
	require.Zero(t, n)
	require.Equal(t, errors.KindOutOfMemory, errors.KindOf(err))
	require.Equal(t, int64(stable.PageSize), w.Offset())
}

func TestWriterAtGrowsToOffset(t *testing.T) {
	mem := stable.NewHeap()
	w, err := stable.NewWriterAt(mem, 3*stable.PageSize+5)
	require.NoError(t, err)
	require.Equal(t, int64(4), mem.Size())

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	got := make([]byte, 3)
	stable.Read(mem, got, 3*stable.PageSize+5, 3)
	require.Equal(t, []byte("abc"), got)

	_, err = stable.NewWriterAt(stable.NewHeap(stable.WithMaxPages(1)), 2*stable.PageSize)
	require.Equal(t, errors.KindOutOfMemory, errors.KindOf(err))
}

func TestCursorArguments(t *testing.T) {
	mem := stable.NewHeap()

	_, err := stable.NewWriterAt(mem, -1)
	require.Equal(t, errors.KindInvalidArg, errors.KindOf(err))
	_, err = stable.NewReaderAt(mem, -1)
	require.Equal(t, errors.KindInvalidArg, errors.KindOf(err))
	_, err = stable.NewIOAt(nil, 0)
	require.Equal(t, errors.KindInvalidArg, errors.KindOf(err))

	w, err := stable.NewWriter(mem)
	require.NoError(t, err)
	_, err = w.Write(nil)
	require.Equal(t, errors.KindInvalidArg, errors.KindOf(err))

	n, err := w.Write([]byte{})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, int64(0), mem.Size())
}

func TestWriteOffsetOverflow(t *testing.T) {
	s, err := stable.NewIO(stable.NewHeap())
	require.NoError(t, err)
	_, err = s.Seek(math.MaxInt64-1, io.SeekStart)
	require.NoError(t, err)

	_, err = s.Write([]byte{1, 2, 3})
	require.Equal(t, errors.KindOutOfBounds, errors.KindOf(err))
}

func TestReaderStopsAtCachedCapacity(t *testing.T) {
	mem := stable.NewHeap()
	require.NoError(t, stable.Save(mem, []byte("hello")))

	r, err := stable.NewReaderAt(mem, stable.PageSize-2)
	require.NoError(t, err)

	// Growth after the reader was created is not visible to it.
	require.Equal(t, int64(1), mem.Grow(1))

	buf := make([]byte, 10)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = r.Read(buf)
	require.Equal(t, io.EOF, err)
	require.Zero(t, n)
}

func TestSeekThenRead(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("read after seek returns written bytes", prop.ForAll(
		func(data []byte, off int64) bool {
			if len(data) == 0 {
				return true
			}
			s, err := stable.NewIO(stable.NewHeap())
			if err != nil {
				return false
			}
			if _, err := s.Seek(off, io.SeekStart); err != nil {
				return false
			}
			if _, err := s.Write(data); err != nil {
				return false
			}
			if _, err := s.Seek(off, io.SeekStart); err != nil {
				return false
			}
			got := make([]byte, len(data))
			if _, err := io.ReadFull(s, got); err != nil {
				return false
			}
			return bytes.Equal(data, got)
		},
		gen.SliceOf(gen.UInt8()),
		gen.Int64Range(0, 4*stable.PageSize),
	))

	properties.TestingRun(t)
}

func TestSeekEndThenRead(t *testing.T) {
	mem := stable.NewHeap()
	require.NoError(t, stable.Save(mem, pattern(100)))

	s, err := stable.NewIO(mem)
	require.NoError(t, err)
	pos, err := s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(stable.PageSize), pos)

	n, err := s.Read(make([]byte, 16))
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
}

func TestSeek(t *testing.T) {
	mem := stable.NewHeap()
	require.Equal(t, int64(0), mem.Grow(2))

	tests := []struct {
		name   string
		start  int64
		offset int64
		whence int
		want   int64
		kind   errors.Kind
	}{
		{name: "set", offset: 10, whence: io.SeekStart, want: 10},
		{name: "current", start: 10, offset: 5, whence: io.SeekCurrent, want: 15},
		{name: "current back", start: 10, offset: -10, whence: io.SeekCurrent, want: 0},
		{name: "end", offset: -1, whence: io.SeekEnd, want: 2*stable.PageSize - 1},
		{name: "past end", offset: 7, whence: io.SeekEnd, want: 2*stable.PageSize + 7},
		{name: "negative set", offset: -1, whence: io.SeekStart, kind: errors.KindOutOfBounds},
		{name: "negative current", start: 3, offset: -4, whence: io.SeekCurrent, kind: errors.KindOutOfBounds},
		{name: "overflow", start: 10, offset: math.MaxInt64, whence: io.SeekCurrent, kind: errors.KindOutOfBounds},
		{name: "bad whence", offset: 0, whence: 3, kind: errors.KindInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := stable.NewIOAt(mem, tt.start)
			require.NoError(t, err)

			got, err := s.Seek(tt.offset, tt.whence)
			if tt.kind != errors.KindOK {
				require.Equal(t, tt.kind, errors.KindOf(err))
				require.Equal(t, tt.start, s.Offset())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want, s.Offset())
		})
	}
}

func TestSeekPastEndThenWriteGrows(t *testing.T) {
	mem := stable.NewHeap()
	s, err := stable.NewIO(mem)
	require.NoError(t, err)

	_, err = s.Seek(2*stable.PageSize+1, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), mem.Size())

	_, err = s.Write([]byte{0xAB})
	require.NoError(t, err)
	require.Equal(t, int64(3), mem.Size())
}

func TestSaveRestore(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			mem := b.open(t)

			empty, err := stable.Restore(mem)
			require.NoError(t, err)
			require.NotNil(t, empty)
			require.Empty(t, empty)

			data := pattern(1000)
			require.NoError(t, stable.Save(mem, data))

			got, err := stable.Restore(mem)
			require.NoError(t, err)
			require.Len(t, got, stable.PageSize)
			require.Equal(t, data, got[:len(data)])
			require.Equal(t, make([]byte, stable.PageSize-len(data)), got[len(data):])
		})
	}
}

func TestFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bin")

	f, err := stable.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, stable.Save(f, []byte("persisted")))
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	f, err = stable.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(1), f.Size())

	got := make([]byte, 9)
	stable.Read(f, got, 0, 9)
	require.Equal(t, "persisted", string(got))

	require.NoError(t, stable.Save(f, pattern(stable.PageSize+1)))
	_, err = stable.OpenFile(path, stable.WithMaxPages(1))
	require.Equal(t, errors.KindOutOfMemory, errors.KindOf(err))
}

func requireTrap(t *testing.T, fn func()) *stable.Trap {
	t.Helper()
	var tr *stable.Trap
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected trap")
			var ok bool
			tr, ok = r.(*stable.Trap)
			require.True(t, ok, "panic value %T", r)
		}()
		fn()
	}()
	return tr
}

func TestPrimitiveTraps(t *testing.T) {
	mem := stable.NewHeap()
	require.Equal(t, int64(0), mem.Grow(1))
	buf := make([]byte, 8)

	tr := requireTrap(t, func() { stable.Read(mem, buf, 0, -1) })
	require.Equal(t, "read", tr.Op)

	requireTrap(t, func() { stable.Write(mem, 0, nil, 4) })
	requireTrap(t, func() { stable.Read(mem, buf, stable.PageSize-4, 8) })
	requireTrap(t, func() { stable.Write(mem, -1, buf, 1) })
	requireTrap(t, func() { mem.Read(buf, stable.PageSize) })

	require.NotPanics(t, func() {
		stable.Read(mem, nil, 0, 0)
		stable.Write(mem, 1<<40, nil, 0)
	})
}

func TestHeapView(t *testing.T) {
	mem := stable.NewHeap()
	require.NoError(t, stable.Save(mem, []byte("view me")))

	v, ok := mem.View(0, 4)
	require.True(t, ok)
	require.Equal(t, "view", string(v))

	_, ok = mem.View(stable.PageSize-1, 2)
	require.False(t, ok)
}
