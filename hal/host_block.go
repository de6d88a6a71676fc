//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

const (
	hostBlockDefaultBytes = 2 * 1024 * 1024
	hostBlockEraseBytes   = 4096
	hostBlockWriteBytes   = 512
)

// hostBlock is a file-backed tinyfs.BlockDevice.
type hostBlock struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

func openHostBlock(path string, size uint32) (*hostBlock, error) {
	if size == 0 {
		size = hostBlockDefaultBytes
	}
	if size%hostBlockEraseBytes != 0 {
		return nil, fmt.Errorf("block: size %d not multiple of erase size %d", size, hostBlockEraseBytes)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open block file %q: %w", path, err)
	}

	sz := int64(size)
	if st, err := f.Stat(); err == nil && st.Size() > 0 {
		sz = st.Size()
	} else if err := f.Truncate(sz); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate block file %q to %d: %w", path, sz, err)
	}

	return &hostBlock{f: f, size: sz}, nil
}

func (b *hostBlock) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.ReadAt(p, off)
}

func (b *hostBlock) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.WriteAt(p, off)
}

func (b *hostBlock) Size() int64           { return b.size }
func (b *hostBlock) WriteBlockSize() int64 { return hostBlockWriteBytes }
func (b *hostBlock) EraseBlockSize() int64 { return hostBlockEraseBytes }

func (b *hostBlock) EraseBlocks(start, n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	blank := make([]byte, hostBlockEraseBytes)
	for i := range blank {
		blank[i] = 0xFF
	}
	for i := int64(0); i < n; i++ {
		off := (start + i) * hostBlockEraseBytes
		if _, err := b.f.WriteAt(blank, off); err != nil {
			return fmt.Errorf("erase block %d: %w", start+i, err)
		}
	}
	return nil
}
