package execmem

import (
	"errors"
	"testing"
)

func TestReserveLayout(t *testing.T) {
	if !Supported {
		t.Skip("executable memory not supported on this platform")
	}
	r, err := Reserve("test", 100, 5000)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Release()

	page := pageSize()
	if r.Name() != "test" {
		t.Errorf("Name: got %q", r.Name())
	}
	if r.CodeStart() != page {
		t.Errorf("CodeStart: got %d, want %d", r.CodeStart(), page)
	}
	if got, want := r.Size(), page+roundUp(5000, page); got != want {
		t.Errorf("Size: got %d, want %d", got, want)
	}
	if r.CodeAddr()-r.Addr() != uintptr(r.CodeStart()) {
		t.Errorf("CodeAddr %#x inconsistent with Addr %#x", r.CodeAddr(), r.Addr())
	}
	if len(r.Data())+len(r.Code()) != r.Size() {
		t.Errorf("data %d + code %d != size %d", len(r.Data()), len(r.Code()), r.Size())
	}

	// The data part stays writable while the code part is executable.
	r.Data()[0] = 0x5A
	if r.Bytes()[0] != 0x5A {
		t.Errorf("data write not visible through Bytes")
	}
}

func TestWriteBracket(t *testing.T) {
	if !Supported {
		t.Skip("executable memory not supported on this platform")
	}
	r, err := Reserve("bracket", 0, 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := r.EndWrite(); !errors.Is(err, ErrWriteInactive) {
		t.Errorf("EndWrite without BeginWrite: got %v", err)
	}
	if err := r.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if !r.Writable() {
		t.Error("Writable: got false inside bracket")
	}
	if err := r.BeginWrite(); !errors.Is(err, ErrWriteActive) {
		t.Errorf("nested BeginWrite: got %v", err)
	}
	r.Code()[0] = 0xC3
	if err := r.EndWrite(); err != nil {
		t.Fatalf("EndWrite: %v", err)
	}
	if r.Writable() {
		t.Error("Writable: got true after EndWrite")
	}

	if err := r.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := r.BeginWrite(); !errors.Is(err, ErrReleased) {
		t.Errorf("BeginWrite after Release: got %v", err)
	}
	if err := r.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("double Release: got %v", err)
	}
}

func TestReserveInvalid(t *testing.T) {
	if _, err := Reserve("empty", 0, 0); err == nil {
		t.Error("Reserve with no code: expected error")
	}
}
