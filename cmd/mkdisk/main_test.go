//go:build !tinygo

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMkdiskWritesErasedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	if err := mkdisk(path, 2*eraseBytes, false); err != nil {
		t.Fatalf("mkdisk: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if len(raw) != 2*eraseBytes {
		t.Fatalf("image size=%d, want %d", len(raw), 2*eraseBytes)
	}
	for i, c := range raw {
		if c != 0xFF {
			t.Fatalf("byte %d = %#x, want 0xFF", i, c)
		}
	}
}

func TestMkdiskRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	if err := mkdisk(path, eraseBytes, false); err != nil {
		t.Fatalf("first mkdisk: %v", err)
	}
	if err := mkdisk(path, eraseBytes, false); err == nil {
		t.Fatalf("overwrite without -f succeeded")
	}
	if err := mkdisk(path, eraseBytes, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestMkdiskRejectsUnalignedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.bin")
	if err := mkdisk(path, eraseBytes+1, false); err == nil {
		t.Fatalf("unaligned size accepted")
	}
}
