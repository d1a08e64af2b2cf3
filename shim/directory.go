package shim

import (
	"cmp"
	"encoding/binary"
	"io"
	"math"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/wippyai/canister-cdk/errors"
	"github.com/wippyai/canister-cdk/stable"
)

// Directory layout at the pack base offset:
//
//	+------+---------+---------+--------+-----+--------+----------------+
//	| CDKB | dir off | dir len | blob 0 | ... | blob n | CBOR directory |
//	| 4 B  | u64 LE  | u32 LE  |        |     |        |                |
//	+------+---------+---------+--------+-----+--------+----------------+
const (
	headerSize       = 16
	DirectoryVersion = 1
)

var directoryMagic = [4]byte{'C', 'D', 'K', 'B'}

// MaxDirectorySize bounds the CBOR directory read back by LoadDirectory.
const MaxDirectorySize = 16 << 20

// CBOREncMode produces deterministic directory bytes.
var CBOREncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

var cborDecMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Entry is one blob in a Directory. Offsets are absolute stable memory
// offsets.
type Entry struct {
	Name   string `cbor:"1,keyasint"`
	Offset int64  `cbor:"2,keyasint"`
	Length int64  `cbor:"3,keyasint"`
}

// Directory lists packed blobs, sorted by name.
type Directory struct {
	Version uint    `cbor:"1,keyasint"`
	Entries []Entry `cbor:"2,keyasint"`
}

// NamedBlob is input to PackBlobs.
type NamedBlob struct {
	Name string
	Data []byte
}

// PackBlobs writes blobs and their directory to mem starting at base and
// registers every blob in reg. Blobs are laid out in name order.
func PackBlobs(mem stable.Memory, base int64, reg *Registry, items ...NamedBlob) (*Directory, error) {
	if reg == nil {
		return nil, errors.InvalidArg(errors.PhaseShim, "nil registry")
	}
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b NamedBlob) int {
		return cmp.Compare(a.Name, b.Name)
	})

	dir := &Directory{Version: DirectoryVersion, Entries: make([]Entry, 0, len(sorted))}
	next := base + headerSize
	for i, b := range sorted {
		if err := checkName(b.Name); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].Name == b.Name {
			return nil, errors.InvalidArg(errors.PhaseShim, "duplicate blob %q", b.Name)
		}
		if next > math.MaxInt64-int64(len(b.Data)) {
			return nil, errors.OutOfBounds(errors.PhaseShim, next, int64(len(b.Data)), math.MaxInt64)
		}
		dir.Entries = append(dir.Entries, Entry{Name: b.Name, Offset: next, Length: int64(len(b.Data))})
		next += int64(len(b.Data))
	}

	encoded, err := CBOREncMode.Marshal(dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseShim, errors.KindInvalidArg, err, "encode directory")
	}
	if len(encoded) > MaxDirectorySize {
		return nil, errors.OutOfMemory(errors.PhaseShim, "directory is %d bytes", len(encoded))
	}

	w, err := stable.NewIOAt(mem, base)
	if err != nil {
		return nil, err
	}
	var header [headerSize]byte
	copy(header[:4], directoryMagic[:])
	binary.LittleEndian.PutUint64(header[4:12], uint64(next))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(encoded)))

	if _, err := w.Write(header[:]); err != nil {
		return nil, err
	}
	for _, b := range sorted {
		if len(b.Data) == 0 {
			continue
		}
		if _, err := w.Write(b.Data); err != nil {
			return nil, err
		}
	}
	if _, err := w.Write(encoded); err != nil {
		return nil, err
	}

	for _, e := range dir.Entries {
		if err := reg.Register(e.Name, e.Offset, e.Length); err != nil {
			return nil, err
		}
	}
	Logger().Debug("blobs packed",
		zap.Int("count", len(dir.Entries)),
		zap.Int64("base", base),
		zap.Int64("end", w.Offset()))
	return dir, nil
}

// LoadDirectory reads the directory written by PackBlobs at base, replaces
// the contents of reg with it and returns it.
func LoadDirectory(mem stable.Memory, base int64, reg *Registry) (*Directory, error) {
	if reg == nil {
		return nil, errors.InvalidArg(errors.PhaseShim, "nil registry")
	}
	r, err := stable.NewReaderAt(mem, base)
	if err != nil {
		return nil, err
	}
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.New(errors.PhaseShim, errors.KindInvalidArg).
			At(base).
			Cause(err).
			Detail("truncated directory header").
			Build()
	}
	if [4]byte(header[:4]) != directoryMagic {
		return nil, errors.New(errors.PhaseShim, errors.KindInvalidArg).
			At(base).
			Detail("bad directory magic % x", header[:4]).
			Build()
	}

	dirOff := binary.LittleEndian.Uint64(header[4:12])
	dirLen := binary.LittleEndian.Uint32(header[12:16])
	if dirOff > math.MaxInt64 || int64(dirOff) < base+headerSize {
		return nil, errors.InvalidArg(errors.PhaseShim, "directory offset %d out of range", dirOff)
	}
	if dirLen > MaxDirectorySize {
		return nil, errors.InvalidArg(errors.PhaseShim, "directory length %d exceeds limit", dirLen)
	}

	r, err = stable.NewReaderAt(mem, int64(dirOff))
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, dirLen)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return nil, errors.New(errors.PhaseShim, errors.KindInvalidArg).
			At(int64(dirOff)).
			Cause(err).
			Detail("truncated directory").
			Build()
	}

	var dir Directory
	if err := cborDecMode.Unmarshal(encoded, &dir); err != nil {
		return nil, errors.Wrap(errors.PhaseShim, errors.KindInvalidArg, err, "decode directory")
	}
	if dir.Version != DirectoryVersion {
		return nil, errors.Unsupported(errors.PhaseShim, "directory version")
	}
	for i, e := range dir.Entries {
		if err := checkName(e.Name); err != nil {
			return nil, err
		}
		if e.Offset < base+headerSize || e.Length < 0 || e.Offset > int64(dirOff)-e.Length {
			return nil, errors.InvalidArg(errors.PhaseShim, "entry %q outside blob area", e.Name)
		}
		if i > 0 && dir.Entries[i-1].Name >= e.Name {
			return nil, errors.InvalidArg(errors.PhaseShim, "entries not sorted at %q", e.Name)
		}
	}

	reg.Clear()
	for _, e := range dir.Entries {
		if err := reg.Register(e.Name, e.Offset, e.Length); err != nil {
			return nil, err
		}
	}
	Logger().Debug("blob directory loaded", zap.Int("count", len(dir.Entries)), zap.Int64("base", base))
	return &dir, nil
}
