package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/candid"
	"github.com/wippyai/canister-cdk/principal"
	"github.com/wippyai/canister-cdk/shim"
	"github.com/wippyai/canister-cdk/stable"
)

func (a *app) encode(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("encode: no arguments")
	}
	arena := candid.NewArena(0)
	defer arena.Destroy()

	enc := candid.NewEncoder()
	for _, s := range args {
		arg, err := parseArg(arena, s)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		enc.Add(arg.Type, arg.Value)
	}
	out, err := enc.Encode()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, hex.EncodeToString(out))
	return nil
}

// readMessage accepts hex (spaces allowed) or @path for raw bytes.
func readMessage(arg string) ([]byte, error) {
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		return os.ReadFile(path)
	}
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' {
			return -1
		}
		return r
	}, arg)
	return hex.DecodeString(clean)
}

func (a *app) decode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("decode: expected one message")
	}
	data, err := readMessage(args[0])
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	arena := candid.NewArena(0)
	defer arena.Destroy()

	_, values, err := candid.Decode(arena, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, candid.FormatArgs(values))
	return nil
}

func (a *app) principal(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("principal: expected one value")
	}
	if p, err := principal.FromText(args[0]); err == nil {
		fmt.Fprintln(a.stdout, hex.EncodeToString(p.Bytes()))
		return nil
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("principal: %q is neither principal text nor hex", args[0])
	}
	p, err := principal.FromBytes(raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, p.Text())
	return nil
}

func (a *app) openStable(path string) (*stable.File, error) {
	if path == "" {
		path = a.cfg.Stable.Path
	}
	return stable.OpenFile(path, stable.WithMaxPages(a.cfg.Stable.MaxPages))
}

func (a *app) stable(args []string) error {
	fs := flag.NewFlagSet("stable", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		file  = fs.String("file", "", "Stable memory file (default from config)")
		limit = fs.Int("n", 256, "Bytes to show in dump (0 = all)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("stable: expected dump, info, save or restore")
	}

	mem, err := a.openStable(*file)
	if err != nil {
		return err
	}
	defer mem.Close()

	switch fs.Arg(0) {
	case "info":
		fmt.Fprintf(a.stdout, "pages: %d\nbytes: %d\n", mem.Size(), mem.Size()*stable.PageSize)
		return nil

	case "dump":
		data, err := stable.Bytes(mem)
		if err != nil {
			return err
		}
		if *limit > 0 && len(data) > *limit {
			data = data[:*limit]
		}
		_, err = io.WriteString(a.stdout, hex.Dump(data))
		return err

	case "save":
		if fs.NArg() != 2 {
			return fmt.Errorf("stable save: expected input file")
		}
		data, err := readInput(fs.Arg(1))
		if err != nil {
			return err
		}
		if err := stable.Save(mem, data); err != nil {
			return err
		}
		a.log.Info("stable saved", zap.Int("bytes", len(data)), zap.Int64("pages", mem.Size()))
		return mem.Sync()

	case "restore":
		if fs.NArg() != 2 {
			return fmt.Errorf("stable restore: expected output file")
		}
		data, err := stable.Restore(mem)
		if err != nil {
			return err
		}
		if fs.Arg(1) == "-" {
			_, err = a.stdout.Write(data)
			return err
		}
		return os.WriteFile(fs.Arg(1), data, 0o644)

	default:
		return fmt.Errorf("stable: unknown action %q", fs.Arg(0))
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func (a *app) pack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		file     = fs.String("file", "", "Stable memory file (default from config)")
		base     = fs.Int64("base", 0, "Offset of the blob directory")
		manifest = fs.String("manifest", "", "YAML blob manifest")
		list     = fs.Bool("list", false, "List the packed directory and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	mem, err := a.openStable(*file)
	if err != nil {
		return err
	}
	defer mem.Close()

	reg := shim.NewRegistry()
	if *list {
		dir, err := shim.LoadDirectory(mem, *base, reg)
		if err != nil {
			return err
		}
		a.printDirectory(dir)
		return nil
	}

	sources := make(map[string]string, len(a.cfg.Blobs))
	for name, path := range a.cfg.Blobs {
		sources[name] = path
	}
	if *manifest != "" {
		m, err := shim.LoadManifest(*manifest)
		if err != nil {
			return err
		}
		for name, path := range m {
			sources[name] = path
		}
	}
	for _, arg := range fs.Args() {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("pack: %q is not name=path", arg)
		}
		sources[name] = path
	}
	if len(sources) == 0 {
		return fmt.Errorf("pack: no blobs")
	}

	native := shim.NewNative(shim.WithManifest(sources), shim.WithLogger(a.log))
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)

	items := make([]shim.NamedBlob, 0, len(names))
	for _, name := range names {
		m, err := native.Map(name)
		if err != nil {
			return err
		}
		items = append(items, shim.NamedBlob{Name: name, Data: m.Data})
	}

	dir, err := shim.PackBlobs(mem, *base, reg, items...)
	if err != nil {
		return err
	}
	a.printDirectory(dir)
	return mem.Sync()
}

func (a *app) printDirectory(dir *shim.Directory) {
	for _, e := range dir.Entries {
		fmt.Fprintf(a.stdout, "%-24s offset=%-10d length=%d\n", e.Name, e.Offset, e.Length)
	}
}
