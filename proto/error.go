package proto

import "encoding/binary"

// ErrCode is a generic error category for failed requests.
type ErrCode uint16

const (
	ErrUnknown ErrCode = iota
	ErrBadMessage
	ErrUnauthorized
	ErrNotFound
	ErrBusy
	ErrNoSlots
	ErrNoMemory
	ErrTooLarge
	ErrGone
	ErrInternal
)

func (c ErrCode) String() string {
	switch c {
	case ErrUnknown:
		return "unknown"
	case ErrBadMessage:
		return "bad_message"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not_found"
	case ErrBusy:
		return "busy"
	case ErrNoSlots:
		return "out of task slots"
	case ErrNoMemory:
		return "out of memory"
	case ErrTooLarge:
		return "too_large"
	case ErrGone:
		return "recipient gone"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ErrorPayload encodes a generic error response payload.
//
// Layout (little-endian):
//   - u16: code
//   - u16: ref kind (the request kind that failed)
//   - bytes: optional detail (service-defined)
func ErrorPayload(code ErrCode, ref Kind, detail []byte) []byte {
	buf := make([]byte, 4+len(detail))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(code))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(ref))
	copy(buf[4:], detail)
	return buf
}

// DecodeErrorPayload decodes an ErrorPayload.
func DecodeErrorPayload(payload []byte) (code ErrCode, ref Kind, detail []byte, ok bool) {
	if len(payload) < 4 {
		return 0, 0, nil, false
	}
	code = ErrCode(binary.LittleEndian.Uint16(payload[0:2]))
	ref = Kind(binary.LittleEndian.Uint16(payload[2:4]))
	return code, ref, payload[4:], true
}
