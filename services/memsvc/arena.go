package memsvc

import "encoding/binary"

// The arena is one contiguous byte range serving every dynamic allocation
// in the system. It is a bump allocator with stack discipline: blocks are
// handed out from one end, space is only reclaimed from the tail, and
// freeing anything else leaves a hole that a later tail-free compacts
// away. Handles are byte offsets into the arena (0 = null), so blocks can
// be named across tasks without sharing pointers.
//
// Each block is preceded by a 16-byte header (little-endian):
//
//	u32 prev   offset of the previous block's header; noBlock for the first
//	u32 size   payload bytes, 8-aligned; 0 marks a hole
//	u32 owner  task id of the allocator
//	u32 tag    headerTag, a cheap corruption check
type Arena struct {
	buf  []byte
	last uint32 // header offset of the youngest block; noBlock when empty
	brk  uint32 // first untouched byte
}

const (
	headerBytes = 16
	alignBytes  = 8
	noBlock     = ^uint32(0)
	headerTag   = 0x4D454D4E // "MEMN"
)

// NewArena wraps a fixed buffer. The size is truncated to alignment.
func NewArena(size uint32) *Arena {
	size &^= alignBytes - 1
	return &Arena{buf: make([]byte, size), last: noBlock}
}

func align8(n uint32) uint32 {
	return (n + alignBytes - 1) &^ (alignBytes - 1)
}

func (a *Arena) header(off uint32) (prev, size, owner uint32) {
	h := a.buf[off : off+headerBytes]
	return binary.LittleEndian.Uint32(h[0:4]),
		binary.LittleEndian.Uint32(h[4:8]),
		binary.LittleEndian.Uint32(h[8:12])
}

func (a *Arena) setHeader(off, prev, size, owner uint32) {
	h := a.buf[off : off+headerBytes]
	binary.LittleEndian.PutUint32(h[0:4], prev)
	binary.LittleEndian.PutUint32(h[4:8], size)
	binary.LittleEndian.PutUint32(h[8:12], owner)
	binary.LittleEndian.PutUint32(h[12:16], headerTag)
}

func (a *Arena) tag(off uint32) uint32 {
	return binary.LittleEndian.Uint32(a.buf[off+12 : off+16])
}

func (a *Arena) clearHeader(off uint32) {
	prev, _, _ := a.header(off)
	a.setHeader(off, prev, 0, 0)
}

// FreeBytes returns the untouched remainder. O(1).
func (a *Arena) FreeBytes() uint32 {
	return uint32(len(a.buf)) - a.brk
}

// Alloc carves a fresh block off the tail. Returns 0 when the request
// would cross the arena boundary; never truncates silently.
func (a *Arena) Alloc(size uint32, owner uint8) uint32 {
	if size == 0 {
		return 0
	}
	size = align8(size)
	if uint64(a.brk)+headerBytes+uint64(size) > uint64(len(a.buf)) {
		return 0
	}
	h := a.brk
	a.setHeader(h, a.last, size, uint32(owner))
	a.last = h
	a.brk = h + headerBytes + size
	return h + headerBytes
}

// findHeader walks the prev chain for the header owning a handle. The
// chain is short and bounded by live block count. A header whose tag was
// overwritten ends the walk: the chain past it cannot be trusted.
func (a *Arena) findHeader(handle uint32) (uint32, bool) {
	if handle < headerBytes || handle > a.brk {
		return 0, false
	}
	want := handle - headerBytes
	for off := a.last; off != noBlock; {
		if a.tag(off) != headerTag {
			return 0, false
		}
		prev, _, _ := a.header(off)
		if off == want {
			return off, true
		}
		off = prev
	}
	return 0, false
}

// Free releases a block. Freeing the tail compacts backward through every
// contiguous hole in one pass; freeing anything else leaves a hole.
// Double frees and foreign handles are safe no-ops.
func (a *Arena) Free(handle uint32) {
	if handle == 0 {
		return
	}
	off, ok := a.findHeader(handle)
	if !ok {
		return
	}
	if _, size, _ := a.header(off); size == 0 {
		return
	}
	a.clearHeader(off)
	a.compact()
}

// compact advances the tail past every trailing hole.
func (a *Arena) compact() {
	for a.last != noBlock {
		prev, size, _ := a.header(a.last)
		if size != 0 {
			return
		}
		a.brk = a.last
		a.last = prev
	}
	a.brk = 0
}

// Resize implements the single allocation entry point:
//
//	size == 0          frees the block
//	handle == 0        allocates fresh
//	fits in place      returns the handle unchanged (size is not shrunk:
//	                   accepted internal fragmentation for a bump
//	                   allocator without coalescing)
//	tail with room     extends copy-free
//	otherwise          allocates, copies the smaller size, frees the old
//
// Returns 0 and ok=false when the arena cannot satisfy the request; the
// old block is left intact in that case.
func (a *Arena) Resize(handle, size uint32, owner uint8) (uint32, bool) {
	if size == 0 {
		a.Free(handle)
		return 0, true
	}
	if handle == 0 {
		h := a.Alloc(size, owner)
		return h, h != 0
	}

	off, ok := a.findHeader(handle)
	if !ok {
		return 0, false
	}
	_, cur, own := a.header(off)
	if cur == 0 {
		return 0, false
	}

	want := align8(size)
	if want <= cur {
		return handle, true
	}

	if off == a.last {
		grow := want - cur
		if uint64(a.brk)+uint64(grow) <= uint64(len(a.buf)) {
			prev, _, _ := a.header(off)
			a.setHeader(off, prev, want, own)
			a.brk += grow
			return handle, true
		}
	}

	fresh := a.Alloc(want, uint8(own))
	if fresh == 0 {
		return 0, false
	}
	copy(a.buf[fresh:fresh+cur], a.buf[handle:handle+cur])
	a.Free(handle)
	return fresh, true
}

// FreeOwnedBy releases every block the task owns, then compacts the tail.
// This is how the scheduler reclaims a dead task's memory without its
// cooperation.
func (a *Arena) FreeOwnedBy(owner uint8) {
	for off := a.last; off != noBlock; {
		prev, size, own := a.header(off)
		if size != 0 && own == uint32(owner) {
			a.clearHeader(off)
		}
		off = prev
	}
	a.compact()
}

// Bytes exposes a block's payload for in-kernel collaborators.
func (a *Arena) Bytes(handle uint32) ([]byte, bool) {
	off, ok := a.findHeader(handle)
	if !ok {
		return nil, false
	}
	_, size, _ := a.header(off)
	if size == 0 {
		return nil, false
	}
	return a.buf[handle : handle+size], true
}
