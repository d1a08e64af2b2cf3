package shim_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/shim"
)

func TestBlobRegistryLifecycle(t *testing.T) {
	t.Cleanup(shim.ClearBlobs)

	require.NoError(t, shim.RegisterBlob("asset", 123, 456))

	off, n, err := shim.LookupBlob("asset")
	require.NoError(t, err)
	require.Equal(t, int64(123), off)
	require.Equal(t, int64(456), n)

	require.NoError(t, shim.UnregisterBlob("asset"))

	_, _, err = shim.LookupBlob("asset")
	require.Equal(t, errors.KindNotFound, errors.KindOf(err))
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRegistryReplace(t *testing.T) {
	r := shim.NewRegistry()
	require.NoError(t, r.Register("a", 1, 2))
	require.NoError(t, r.Register("a", 10, 20))
	require.Equal(t, 1, r.Len())

	b, err := r.Lookup("a")
	require.NoError(t, err)
	require.Equal(t, shim.Blob{Offset: 10, Length: 20}, b)
}

func TestRegistryErrors(t *testing.T) {
	r := shim.NewRegistry()

	tests := []struct {
		name   string
		blob   string
		offset int64
		length int64
	}{
		{"empty name", "", 0, 0},
		{"nul in name", "a\x00b", 0, 0},
		{"negative offset", "a", -1, 0},
		{"negative length", "a", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.blob, tt.offset, tt.length)
			require.Equal(t, errors.KindInvalidArg, errors.KindOf(err))
		})
	}
	require.Zero(t, r.Len())

	err := r.Unregister("missing")
	require.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestRegistryClearAndNames(t *testing.T) {
	r := shim.NewRegistry()
	require.NoError(t, r.Register("b", 0, 1))
	require.NoError(t, r.Register("a", 0, 1))
	require.NoError(t, r.Register("c", 0, 1))
	require.Equal(t, []string{"a", "b", "c"}, r.Names())

	r.Clear()
	require.Zero(t, r.Len())
	require.Empty(t, r.Names())
}

func TestRegistryLookupAfterRegister(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("lookup returns registered range until unregistered", prop.ForAll(
		func(name string, off, n int64) bool {
			r := shim.NewRegistry()
			if err := r.Register(name, off, n); err != nil {
				return false
			}
			b, err := r.Lookup(name)
			if err != nil || b.Offset != off || b.Length != n {
				return false
			}
			if err := r.Unregister(name); err != nil {
				return false
			}
			_, err = r.Lookup(name)
			return errors.KindOf(err) == errors.KindNotFound
		},
		gen.Identifier(),
		gen.Int64Range(0, 1<<48),
		gen.Int64Range(0, 1<<32),
	))

	properties.TestingRun(t)
}
