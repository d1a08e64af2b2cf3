package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/candid"
	"github.com/wippyai/canister-cdk/shim"
	"github.com/wippyai/canister-cdk/stable"
)

const usage = `Usage: cdk [-config file.yaml] [-log level] <command> [args]

Commands:
  encode   type:value ...          encode arguments, print hex
  decode   <hex|@file>             decode a Candid message
  inspect  [-i] <hex|@file>        show the type table and values
  principal <text|hex>             convert between text and bytes
  stable   [-file f] dump|info|save <in>|restore <out>
  pack     [-file f] [-base n] [-list] [name=path ...]
`

type app struct {
	cfg    config
	log    *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cdk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	var (
		configFile = fs.String("config", "", "YAML config file")
		logLevel   = fs.String("log", "", "Log level (debug, info, warn, error)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	candid.SetLogger(log.Named("candid"))
	stable.SetLogger(log.Named("stable"))
	shim.SetLogger(log.Named("shim"))
	shim.SetOps(shim.NewNative(shim.WithLogger(log.Named("canister")), shim.WithManifest(cfg.Blobs)))
	defer shim.ResetOps()

	a := &app{cfg: cfg, log: log, stdout: stdout, stderr: stderr}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "encode":
		return a.encode(rest)
	case "decode":
		return a.decode(rest)
	case "inspect":
		return a.inspect(rest)
	case "principal":
		return a.principal(rest)
	case "stable":
		return a.stable(rest)
	case "pack":
		return a.pack(rest)
	case "help":
		fs.Usage()
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
