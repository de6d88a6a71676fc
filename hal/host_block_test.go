//go:build !tinygo

package hal

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestHostBlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	b, err := openHostBlock(path, 2*hostBlockEraseBytes)
	if err != nil {
		t.Fatalf("openHostBlock: %v", err)
	}

	want := []byte("block payload")
	if _, err := b.WriteAt(want, 512); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(want))
	if _, err := b.ReadAt(got, 512); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read %q, want %q", got, want)
	}

	if err := b.EraseBlocks(0, 1); err != nil {
		t.Fatalf("EraseBlocks: %v", err)
	}
	if _, err := b.ReadAt(got, 512); err != nil {
		t.Fatalf("ReadAt after erase: %v", err)
	}
	for i, c := range got {
		if c != 0xFF {
			t.Fatalf("byte %d = %#x after erase, want 0xFF", i, c)
		}
	}
}

func TestHostBlockRejectsUnalignedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	if _, err := openHostBlock(path, hostBlockEraseBytes+1); err == nil {
		t.Fatalf("unaligned size accepted")
	}
}

func TestHostBlockKeepsExistingImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	b, err := openHostBlock(path, 2*hostBlockEraseBytes)
	if err != nil {
		t.Fatalf("openHostBlock: %v", err)
	}
	if _, err := b.WriteAt([]byte{0x5A}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	b.f.Close()

	b2, err := openHostBlock(path, 2*hostBlockEraseBytes)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := make([]byte, 1)
	if _, err := b2.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if got[0] != 0x5A {
		t.Fatalf("existing image clobbered on reopen")
	}
}
