package shim

import (
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
)

// Native serves blobs from the local filesystem.
type Native struct {
	cfg config
}

// NewNative returns a filesystem backend. Without WithRoot or WithManifest
// blob names are used as paths.
func NewNative(opts ...Option) *Native {
	return &Native{cfg: newConfig(opts)}
}

// Manifest is the YAML file format accepted by LoadManifest.
//
//	blobs:
//	  model: weights/model.bin
//	  vocab: /srv/vocab.txt
//
// Relative paths are resolved against the manifest's directory.
type Manifest struct {
	Blobs map[string]string `yaml:"blobs"`
}

// LoadManifest reads a blob manifest from path.
func LoadManifest(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseConfig, err, "read manifest "+path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArg, err, "parse manifest "+path)
	}

	dir := filepath.Dir(path)
	out := make(map[string]string, len(m.Blobs))
	for name, p := range m.Blobs {
		if err := checkName(name); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		out[name] = p
	}
	return out, nil
}

func (n *Native) resolve(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if p, ok := n.cfg.manifest[name]; ok {
		return p, nil
	}
	if n.cfg.root != "" {
		return filepath.Join(n.cfg.root, filepath.Clean("/"+name)), nil
	}
	if n.cfg.manifest != nil {
		return "", errors.NotFound(errors.PhaseShim, "blob "+name)
	}
	return name, nil
}

func statErr(err error, name string) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return errors.NotFound(errors.PhaseShim, "blob "+name)
	}
	return errors.IO(errors.PhaseShim, err, "stat "+name)
}

// BlobSize returns the file size of name.
func (n *Native) BlobSize(name string) (int64, error) {
	path, err := n.resolve(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, statErr(err, name)
	}
	if !info.Mode().IsRegular() {
		return 0, errors.NotFound(errors.PhaseShim, "blob "+name)
	}
	return info.Size(), nil
}

// BlobRead reads len(dst) bytes of name at offset.
func (n *Native) BlobRead(name string, offset int64, dst []byte) error {
	size, err := n.BlobSize(name)
	if err != nil {
		return err
	}
	if err := checkRange(offset, int64(len(dst)), size); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}

	path, _ := n.resolve(name)
	f, err := os.Open(path)
	if err != nil {
		return statErr(err, name)
	}
	defer f.Close()

	if n, err := f.ReadAt(dst, offset); n != len(dst) {
		return errors.IO(errors.PhaseShim, err, "short read "+name)
	}
	return nil
}

// Map reads the whole file into an owned buffer.
func (n *Native) Map(name string) (Mapping, error) {
	size, err := n.BlobSize(name)
	if err != nil {
		return Mapping{}, err
	}
	buf := make([]byte, size)
	if err := n.BlobRead(name, 0, buf); err != nil {
		return Mapping{}, err
	}
	return Mapping{Data: buf, Kind: MapOwned}, nil
}

// Unmap drops owned buffers. Native never hands out other kinds.
func (n *Native) Unmap(m *Mapping) {
	if m != nil && m.Kind == MapOwned {
		m.Data = nil
	}
}

// Log writes msg at info level.
func (n *Native) Log(msg string) {
	n.cfg.log().Info(msg, zap.String("source", "canister"))
}

// TimeNanos returns the configured clock in Unix nanoseconds.
func (n *Native) TimeNanos() uint64 {
	ns := n.cfg.clock().UnixNano()
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

// GetRandom fills dst from the configured source, crypto/rand by default.
func (n *Native) GetRandom(dst []byte) error {
	return readRandom(n.cfg.random, dst)
}

func readRandom(r io.Reader, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, dst); err != nil {
		return errors.IO(errors.PhaseShim, err, "getrandom")
	}
	return nil
}

var _ Ops = (*Native)(nil)
