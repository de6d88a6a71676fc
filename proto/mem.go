package proto

import "encoding/binary"

// Memory requests carry the block handle in Message.Word; the requested
// size travels in the payload.

// MemResizePayload encodes the new size for a MsgMemResize request.
func MemResizePayload(size uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, size)
	return buf
}

// DecodeMemResize decodes a MsgMemResize payload.
func DecodeMemResize(payload []byte) (size uint32, ok bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(payload[0:4]), true
}
