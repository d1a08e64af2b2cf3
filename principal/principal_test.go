package principal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	cdkerrors "github.com/wippyai/canister-cdk/errors"
)

func TestKnownText(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		text  string
	}{
		{"management", nil, "aaaaa-aa"},
		{"anonymous", []byte{0x04}, "2vxsx-fae"},
		{"short", []byte{0xab, 0xcd, 0x01}, "em77e-bvlzu-aq"},
		{"ledger", []byte{0, 0, 0, 0, 0, 0, 0, 2, 1, 1}, "ryjl3-tyaaa-aaaaa-aaaba-cai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromBytes(tt.bytes)
			if err != nil {
				t.Fatal(err)
			}
			if got := p.Text(); got != tt.text {
				t.Errorf("Text() = %q, want %q", got, tt.text)
			}

			parsed, err := FromText(tt.text)
			if err != nil {
				t.Fatalf("FromText: %v", err)
			}
			if parsed != p {
				t.Errorf("FromText = %x, want %x", parsed.Bytes(), tt.bytes)
			}
		})
	}

	if Management().Text() != "aaaaa-aa" || !Management().IsManagement() {
		t.Error("management principal mismatch")
	}
	if Anonymous().Text() != "2vxsx-fae" {
		t.Error("anonymous principal mismatch")
	}
}

func TestTextEmbedsChecksum(t *testing.T) {
	b := []byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01, 0x02}
	p, err := FromBytes(b)
	if err != nil {
		t.Fatal(err)
	}
	text := p.Text()

	raw, err := encoding.DecodeString(strings.ReplaceAll(text, "-", ""))
	if err != nil {
		t.Fatal(err)
	}
	want := binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(b))
	want = append(want, b...)
	if !bytes.Equal(raw, want) {
		t.Errorf("decoded %x, want %x", raw, want)
	}

	parsed, err := FromText(text)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(p) {
		t.Error("round trip mismatch")
	}
}

func TestFromBytesLimits(t *testing.T) {
	if _, err := FromBytes(make([]byte, MaxLength)); err != nil {
		t.Errorf("max length rejected: %v", err)
	}
	if _, err := FromBytes(make([]byte, MaxLength+1)); !errors.Is(err, cdkerrors.ErrInvalidArg) {
		t.Errorf("oversized accepted: %v", err)
	}
}

func TestFromTextRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"bad character", "em77e-bvlzu-a1"},
		{"checksum", "em77e-bvlzu-aa"},
		{"trailing bits", "em77e-bvlzu-ar"},
		{"too short", "aaaaa"},
		{"whitespace", "em77e-bvlzu-aq\n"},
		{"too long", strings.Repeat("aaaaa-", 12) + "aa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromText(tt.text)
			if !errors.Is(err, cdkerrors.ErrInvalidArg) {
				t.Errorf("FromText(%q): expected invalid argument, got %v", tt.text, err)
			}
		})
	}
}

func TestFromTextCaseInsensitive(t *testing.T) {
	p, err := FromText("EM77E-BVLZU-AQ")
	if err != nil {
		t.Fatal(err)
	}
	if p.Text() != "em77e-bvlzu-aq" {
		t.Errorf("got %q", p.Text())
	}
}

func TestFromTextIgnoresDashes(t *testing.T) {
	want := MustFromText("ryjl3-tyaaa-aaaaa-aaaba-cai")

	for _, text := range []string{
		"ryjl3tyaaaaaaaaaaabacai",
		"RYJL3TYAAAAAAAAAAABACAI",
		"ryjl-3tyaa-aaaaa-aaaab-acai",
		"-ryjl3-tyaaa-aaaaa-aaaba-cai-",
		"r-y-j-l-3tyaaaaaaaaaaabacai",
	} {
		p, err := FromText(text)
		if err != nil {
			t.Fatalf("FromText(%q): %v", text, err)
		}
		if !p.Equal(want) {
			t.Errorf("FromText(%q) = %s, want %s", text, p, want)
		}
	}

	for _, text := range []string{"em77e-bvlzu-aq\n", "em77ebvlzuar", "ryjl3tyaaaaaaaaaaabacai="} {
		if _, err := FromText(text); !errors.Is(err, cdkerrors.ErrInvalidArg) {
			t.Errorf("FromText(%q): expected invalid argument, got %v", text, err)
		}
	}
}

func TestSingleCharacterMutation(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz234567-"

	for _, b := range [][]byte{nil, {0x04}, {0xab, 0xcd, 0x01}, bytes.Repeat([]byte{0x5a}, MaxLength)} {
		p, _ := FromBytes(b)
		text := p.Text()
		for i := 0; i < len(text); i++ {
			for _, c := range []byte(alphabet) {
				if c == text[i] {
					continue
				}
				mutated := text[:i] + string(c) + text[i+1:]
				if _, err := FromText(mutated); err == nil {
					t.Fatalf("mutation %q of %q accepted", mutated, text)
				}
			}
		}
	}
}

func TestTextMarshaling(t *testing.T) {
	p := Anonymous()
	text, err := p.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var q Principal
	if err := q.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if q != p {
		t.Error("unmarshal mismatch")
	}
	if err := q.UnmarshalText([]byte("nope")); err == nil {
		t.Error("expected error")
	}
}

func TestRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("bytes survive text", prop.ForAll(
		func(b []byte) bool {
			if len(b) > MaxLength {
				b = b[:MaxLength]
			}
			p, err := FromBytes(b)
			if err != nil {
				return false
			}
			q, err := FromText(p.Text())
			return err == nil && bytes.Equal(q.Bytes(), b)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestAllLengths(t *testing.T) {
	for n := 0; n <= MaxLength; n++ {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i*37 + n)
		}
		p, err := FromBytes(b)
		if err != nil {
			t.Fatal(err)
		}
		q, err := FromText(p.Text())
		if err != nil {
			t.Fatalf("length %d: %v", n, err)
		}
		if !bytes.Equal(q.Bytes(), b) {
			t.Fatalf("length %d: round trip mismatch", n)
		}
	}
}
