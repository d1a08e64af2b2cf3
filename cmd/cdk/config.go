package main

import (
	"os"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/canister-cdk/errors"
)

// config is the optional YAML file passed with -config.
//
//	log_level: debug
//	stable:
//	  path: state.bin
//	  max_pages: 1024
//	blobs:
//	  model: weights/model.bin
type config struct {
	LogLevel string            `yaml:"log_level"`
	Stable   stableConfig      `yaml:"stable"`
	Blobs    map[string]string `yaml:"blobs"`
}

type stableConfig struct {
	Path     string `yaml:"path"`
	MaxPages int64  `yaml:"max_pages"`
}

func defaultConfig() config {
	return config{
		LogLevel: "warn",
		Stable:   stableConfig{Path: "stable.bin"},
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.IO(errors.PhaseConfig, err, "read "+path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArg, err, "parse "+path)
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArg, err, "log level")
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
