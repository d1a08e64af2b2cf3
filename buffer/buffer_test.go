package buffer

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	cdkerrors "github.com/wippyai/canister-cdk/errors"
)

var (
	_ io.Writer     = (*Buffer)(nil)
	_ io.ByteWriter = (*Buffer)(nil)
)

func TestAppend(t *testing.T) {
	var b Buffer
	if err := b.Append([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendByte(' '); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Bytes()); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if b.Cap() != initialCapacity {
		t.Errorf("Cap = %d, want %d", b.Cap(), initialCapacity)
	}
}

func TestGrowth(t *testing.T) {
	b := New(0)
	chunk := bytes.Repeat([]byte{0xab}, 100)
	for i := 0; i < 50; i++ {
		if err := b.Append(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if b.Len() != 5000 {
		t.Fatalf("Len = %d", b.Len())
	}
	if b.Cap() < b.Len() {
		t.Fatalf("Cap %d < Len %d", b.Cap(), b.Len())
	}
	if !bytes.Equal(b.Bytes(), bytes.Repeat([]byte{0xab}, 5000)) {
		t.Error("content mismatch after growth")
	}
}

func TestClearKeepsCapacity(t *testing.T) {
	b := New(16)
	_ = b.Append(make([]byte, 200))
	before := b.Cap()
	b.Clear()
	if b.Len() != 0 || b.Cap() != before {
		t.Errorf("after Clear: Len=%d Cap=%d, want 0/%d", b.Len(), b.Cap(), before)
	}
	b.Free()
	if b.Cap() != 0 {
		t.Errorf("after Free: Cap=%d", b.Cap())
	}
}

func TestInvalidInput(t *testing.T) {
	var b Buffer
	if err := b.Append(nil); !errors.Is(err, cdkerrors.ErrInvalidArg) {
		t.Errorf("Append(nil): got %v", err)
	}
	if err := b.Reserve(-1); !errors.Is(err, cdkerrors.ErrInvalidArg) {
		t.Errorf("Reserve(-1): got %v", err)
	}
	if n, err := b.Write(nil); n != 0 || err != nil {
		t.Errorf("Write(nil) = %d, %v", n, err)
	}
}

func TestLEB(t *testing.T) {
	var b Buffer
	_ = b.AppendUnsigned(624485)
	_ = b.AppendSigned(-123456)
	want := []byte{0xe5, 0x8e, 0x26, 0xc0, 0xbb, 0x78}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("got %x, want %x", b.Bytes(), want)
	}
}

func TestOverflowGuard(t *testing.T) {
	b := New(8)
	data := b.data
	b.size = math.MaxInt - 1

	err := b.Append(make([]byte, 16))
	if !errors.Is(err, cdkerrors.ErrBufferOverflow) {
		t.Fatalf("expected buffer overflow, got %v", err)
	}
	if &b.data[0] != &data[0] || len(b.data) != 8 {
		t.Error("storage changed on overflow")
	}
	if b.size != math.MaxInt-1 {
		t.Errorf("size changed to %d", b.size)
	}

	if err := b.Reserve(2); !errors.Is(err, cdkerrors.ErrBufferOverflow) {
		t.Errorf("Reserve: expected buffer overflow, got %v", err)
	}
}
