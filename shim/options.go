package shim

import (
	"crypto/rand"
	"io"
	"time"

	"go.uber.org/zap"
)

// Option configures a backend.
type Option func(*config)

type config struct {
	logger   *zap.Logger
	clock    func() time.Time
	random   io.Reader
	root     string
	manifest map[string]string
	registry *Registry
}

func newConfig(opts []Option) config {
	c := config{
		clock:  time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// log returns the configured logger, falling back to the package logger at
// call time so SetLogger applies to backends created before it.
func (c *config) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return Logger()
}

// WithLogger sets the logger that receives Log messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.clock = now
		}
	}
}

// WithRandom replaces the randomness source.
func WithRandom(r io.Reader) Option {
	return func(c *config) {
		if r != nil {
			c.random = r
		}
	}
}

// WithRoot resolves Native blob names relative to dir. Names cannot escape
// it.
func WithRoot(dir string) Option {
	return func(c *config) {
		c.root = dir
	}
}

// WithManifest maps Native blob names to file paths. Manifest entries take
// precedence over the root directory.
func WithManifest(m map[string]string) Option {
	return func(c *config) {
		c.manifest = m
	}
}

// WithRegistry makes the Stable backend resolve names in r instead of the
// process-wide registry.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}
