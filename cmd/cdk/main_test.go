package main

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/canister-cdk/candid"
)

func cdk(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"-log", "error"}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestEncodeDecode(t *testing.T) {
	out, err := cdk(t, "encode", "nat:42", "text:hello")
	require.NoError(t, err)
	require.Equal(t, "4449444c00027d712a0568656c6c6f\n", out)

	out, err = cdk(t, "decode", "44 49 44 4c 00 02 7d 71 2a 05 68 65 6c 6c 6f")
	require.NoError(t, err)
	require.Equal(t, "(42, \"hello\")\n", out)

	_, err = cdk(t, "decode", "4449444c0001")
	require.Error(t, err)
}

func TestDecodeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.bin")
	require.NoError(t, os.WriteFile(path, []byte("DIDL\x00\x01\x7e\x01"), 0o644))

	out, err := cdk(t, "decode", "@"+path)
	require.NoError(t, err)
	require.Equal(t, "(true)\n", out)
}

func TestPrincipalCommand(t *testing.T) {
	out, err := cdk(t, "principal", "ryjl3-tyaaa-aaaaa-aaaba-cai")
	require.NoError(t, err)
	require.Equal(t, "00000000000000020101\n", out)

	out, err = cdk(t, "principal", "00000000000000020101")
	require.NoError(t, err)
	require.Equal(t, "ryjl3-tyaaa-aaaaa-aaaba-cai\n", out)

	_, err = cdk(t, "principal", "not-a-principal")
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	out, err := cdk(t, "inspect", "4449444c016d7b01000203ff")
	require.NoError(t, err)
	require.Contains(t, out, "0: vec nat8")
	require.Contains(t, out, "blob \"\\03\\ff\"")

	out, err = cdk(t, "inspect", "4449444c00017d")
	require.Error(t, err)
	require.Contains(t, out, "error at offset")
}

func TestStableCommands(t *testing.T) {
	dir := t.TempDir()
	mem := filepath.Join(dir, "stable.bin")
	in := filepath.Join(dir, "in.bin")
	restored := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(in, []byte("canister state"), 0o644))

	_, err := cdk(t, "stable", "-file", mem, "save", in)
	require.NoError(t, err)

	out, err := cdk(t, "stable", "-file", mem, "info")
	require.NoError(t, err)
	require.Equal(t, "pages: 1\nbytes: 65536\n", out)

	out, err = cdk(t, "stable", "-file", mem, "-n", "16", "dump")
	require.NoError(t, err)
	require.Contains(t, out, "|canister state..|")

	_, err = cdk(t, "stable", "-file", mem, "restore", restored)
	require.NoError(t, err)
	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	require.Len(t, data, 65536)
	require.True(t, bytes.HasPrefix(data, []byte("canister state")))

	_, err = cdk(t, "stable", "-file", mem, "shrink")
	require.Error(t, err)
}

func TestPackCommand(t *testing.T) {
	dir := t.TempDir()
	mem := filepath.Join(dir, "stable.bin")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0o644))
	cfgPath := filepath.Join(dir, "cdk.yaml")
	cfg := "log_level: error\nstable:\n  path: " + mem + "\nblobs:\n  alpha: " + filepath.Join(dir, "a.txt") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := cdk(t, "-config", cfgPath, "pack", "beta="+filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "alpha"))
	require.Contains(t, lines[0], "offset=16")
	require.Contains(t, lines[1], "length=4")

	listed, err := cdk(t, "-config", cfgPath, "pack", "-list")
	require.NoError(t, err)
	require.Equal(t, out, listed)

	_, err = cdk(t, "pack", "-file", mem, "oops")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := cdk(t, "frobnicate")
	require.Error(t, err)
	_, err = cdk(t)
	require.Error(t, err)
}

func TestParseArg(t *testing.T) {
	a := candid.NewArena(0)
	defer a.Destroy()

	tests := []struct {
		in   string
		kind candid.Kind
	}{
		{"null", candid.KindNull},
		{"reserved", candid.KindReserved},
		{"bool:true", candid.KindBool},
		{"int:-7", candid.KindInt},
		{"nat8:255", candid.KindNat8},
		{"int16:-300", candid.KindInt16},
		{"nat64:18446744073709551615", candid.KindNat64},
		{"float32:1.5", candid.KindFloat32},
		{"text:a:b", candid.KindText},
		{"blob:00ff", candid.KindVec},
		{"principal:aaaaa-aa", candid.KindPrincipal},
		{"opt:nat:5", candid.KindOpt},
		{"none:text", candid.KindOpt},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			arg, err := parseArg(a, tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.kind, arg.Type.Kind())
			_, err = candid.Encode(arg)
			require.NoError(t, err)
		})
	}

	for _, bad := range []string{"nat8:256", "bool:maybe", "nat", "widget:1", "none:widget", "nat:-1", "blob:zz"} {
		_, err := parseArg(a, bad)
		require.Error(t, err, bad)
	}
}

func TestParseWideIntegers(t *testing.T) {
	a := candid.NewArena(0)
	defer a.Destroy()

	for _, s := range []string{"nat:1180591620717411303424", "int:-1180591620717411303424", "int:1180591620717411303424"} {
		arg, err := parseArg(a, s)
		require.NoError(t, err)

		data, err := candid.Encode(arg)
		require.NoError(t, err)
		_, values, err := candid.Decode(a, data)
		require.NoError(t, err)

		_, digits, _ := strings.Cut(s, ":")
		want, _ := new(big.Int).SetString(digits, 10)
		require.Zero(t, want.Cmp(values[0].Big()), s)
	}
}
