//go:build !tinygo

// mkdisk pre-sizes and erases a block-device image for the host build,
// mirroring what a fresh SD card looks like to the bare-metal target.
package main

import (
	"flag"
	"fmt"
	"os"
)

const (
	defaultDiskPath  = "Disk.bin"
	defaultDiskBytes = 2 * 1024 * 1024
	eraseBytes       = 4096
)

func main() {
	var path string
	var size uint
	var force bool
	flag.StringVar(&path, "o", defaultDiskPath, "Output image path.")
	flag.UintVar(&size, "size", defaultDiskBytes, "Image size in bytes.")
	flag.BoolVar(&force, "f", false, "Overwrite an existing image.")
	flag.Parse()

	if err := mkdisk(path, uint32(size), force); err != nil {
		fmt.Fprintln(os.Stderr, "mkdisk:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes, erased)\n", path, size)
}

func mkdisk(path string, size uint32, force bool) error {
	if size == 0 || size%eraseBytes != 0 {
		return fmt.Errorf("size %d not a multiple of erase size %d", size, eraseBytes)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists (use -f to overwrite)", path)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	blank := make([]byte, eraseBytes)
	for i := range blank {
		blank[i] = 0xFF
	}
	for off := uint32(0); off < size; off += eraseBytes {
		if _, err := f.WriteAt(blank, int64(off)); err != nil {
			return fmt.Errorf("erase block at %d: %w", off, err)
		}
	}
	return nil
}
