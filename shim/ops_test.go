package shim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/shim"
)

type fakeOps struct {
	logs     []string
	unmapped int
}

func (f *fakeOps) BlobSize(name string) (int64, error) {
	if name != "fake" {
		return 0, errors.NotFound(errors.PhaseShim, name)
	}
	return 4, nil
}

func (f *fakeOps) BlobRead(name string, offset int64, dst []byte) error {
	copy(dst, []byte("data")[offset:])
	return nil
}

func (f *fakeOps) Map(name string) (shim.Mapping, error) {
	return shim.Mapping{Data: []byte("data"), Kind: shim.MapMapped, Handle: 7}, nil
}

func (f *fakeOps) Unmap(m *shim.Mapping) {
	f.unmapped++
}

func (f *fakeOps) Log(msg string) {
	f.logs = append(f.logs, msg)
}

func (f *fakeOps) TimeNanos() uint64 {
	return 42
}

func (f *fakeOps) GetRandom(dst []byte) error {
	for i := range dst {
		dst[i] = 0xAA
	}
	return nil
}

func TestDefaultOpsIsNative(t *testing.T) {
	t.Cleanup(shim.ResetOps)

	_, ok := shim.GetOps().(*shim.Native)
	require.True(t, ok)

	shim.SetOps(&fakeOps{})
	shim.ResetOps()
	_, ok = shim.GetOps().(*shim.Native)
	require.True(t, ok)
}

func TestSetOpsRoutesCalls(t *testing.T) {
	t.Cleanup(shim.ResetOps)

	fake := &fakeOps{}
	shim.SetOps(fake)

	size, err := shim.BlobSize("fake")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	buf := make([]byte, 2)
	require.NoError(t, shim.BlobRead("fake", 2, buf))
	require.Equal(t, "ta", string(buf))

	m, err := shim.Map("fake")
	require.NoError(t, err)
	require.Equal(t, shim.MapMapped, m.Kind)
	shim.Unmap(&m)
	require.Equal(t, 1, fake.unmapped)
	require.Equal(t, shim.Mapping{}, m)

	shim.Log("hello")
	require.Equal(t, []string{"hello"}, fake.logs)
	require.Equal(t, uint64(42), shim.TimeNanos())

	rnd := make([]byte, 3)
	require.NoError(t, shim.GetRandom(rnd))
	require.Equal(t, []byte{0xAA, 0xAA, 0xAA}, rnd)
}

func TestNilOps(t *testing.T) {
	t.Cleanup(shim.ResetOps)
	shim.SetOps(nil)
	require.Nil(t, shim.GetOps())

	_, err := shim.BlobSize("x")
	require.Equal(t, errors.KindUnsupported, errors.KindOf(err))
	require.Equal(t, errors.KindUnsupported, errors.KindOf(shim.BlobRead("x", 0, nil)))
	_, err = shim.Map("x")
	require.Equal(t, errors.KindUnsupported, errors.KindOf(err))
	require.Equal(t, errors.KindUnsupported, errors.KindOf(shim.GetRandom(make([]byte, 1))))

	require.NotPanics(t, func() { shim.Log("dropped") })
	require.Zero(t, shim.TimeNanos())

	m := shim.Mapping{Data: []byte{1, 2}, Kind: shim.MapOwned}
	shim.Unmap(&m)
	require.Nil(t, m.Data)
	require.Equal(t, shim.MapBorrowed, m.Kind)

	shim.Unmap(nil)
}

func TestMapKindString(t *testing.T) {
	require.Equal(t, "borrowed", shim.MapBorrowed.String())
	require.Equal(t, "owned", shim.MapOwned.String())
	require.Equal(t, "mapped", shim.MapMapped.String())
	require.Equal(t, "unknown", shim.MapKind(9).String())
}
