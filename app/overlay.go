package app

import (
	"encoding/binary"
	"fmt"

	"tinygo.org/x/tinyfs"
)

// Overlay images live in fixed slots on the block device: a small header
// (magic, id, length) followed by the code image. Load pages one slot into
// the single RAM window; the scheduler guarantees only one overlay is
// resident at a time.
const (
	overlaySlotBytes = 32 * 1024
	overlayMagic     = 0x4F564C59 // "OVLY"
	overlayHdrBytes  = 12
)

type blockLoader struct {
	dev    tinyfs.BlockDevice
	window []byte
	slots  uint16
}

func newBlockLoader(dev tinyfs.BlockDevice) *blockLoader {
	n := dev.Size() / overlaySlotBytes
	if n > 0xFFFF {
		n = 0xFFFF
	}
	return &blockLoader{
		dev:    dev,
		window: make([]byte, overlaySlotBytes-overlayHdrBytes),
		slots:  uint16(n),
	}
}

// Load pages overlay id into the window. Ids are 1-based; 0 means the
// resident kernel and never reaches the loader.
func (l *blockLoader) Load(id uint16) error {
	if id == 0 || id > l.slots {
		return fmt.Errorf("overlay %d out of range (1..%d)", id, l.slots)
	}
	off := int64(id-1) * overlaySlotBytes

	var hdr [overlayHdrBytes]byte
	if _, err := l.dev.ReadAt(hdr[:], off); err != nil {
		return fmt.Errorf("overlay %d header: %w", id, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:]) != overlayMagic {
		return fmt.Errorf("overlay %d: bad magic", id)
	}
	if binary.LittleEndian.Uint16(hdr[4:]) != id {
		return fmt.Errorf("overlay %d: slot holds overlay %d",
			id, binary.LittleEndian.Uint16(hdr[4:]))
	}
	length := binary.LittleEndian.Uint32(hdr[8:])
	if int(length) > len(l.window) {
		return fmt.Errorf("overlay %d: image %d bytes exceeds window", id, length)
	}

	if _, err := l.dev.ReadAt(l.window[:length], off+overlayHdrBytes); err != nil {
		return fmt.Errorf("overlay %d image: %w", id, err)
	}
	return nil
}
