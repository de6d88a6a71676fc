// Package mem is the task-side client of the memory manager. Every call
// is a synchronous message round-trip: acquire a buffer, send, block on
// done, release.
package mem

import (
	"errors"

	"krill/kernel"
	"krill/proto"
)

var (
	ErrNoMemory = errors.New("mem: out of memory")
	ErrGone     = errors.New("mem: memory manager gone")
	ErrFailed   = errors.New("mem: request failed")
)

// Alloc requests a fresh block of n bytes and returns its handle.
func Alloc(tc *kernel.Context, n uint32) (uint32, error) {
	return Resize(tc, 0, n)
}

// Free releases a block. Freeing handle 0 is a no-op.
func Free(tc *kernel.Context, handle uint32) error {
	if handle == 0 {
		return nil
	}
	_, err := Resize(tc, handle, 0)
	return err
}

// Resize is the general entry point: grow, shrink, allocate (handle 0)
// or free (n 0).
func Resize(tc *kernel.Context, handle, n uint32) (uint32, error) {
	m, err := roundTrip(tc, uint16(proto.MsgMemResize), handle, proto.MemResizePayload(n))
	if err != nil {
		return 0, err
	}
	out := m.Word
	tc.Release(m)
	return out, nil
}

// FreeBytes reports the arena's untouched remainder.
func FreeBytes(tc *kernel.Context) (uint32, error) {
	m, err := roundTrip(tc, uint16(proto.MsgMemFreeBytes), 0, nil)
	if err != nil {
		return 0, err
	}
	out := m.Word
	tc.Release(m)
	return out, nil
}

func roundTrip(tc *kernel.Context, kind uint16, word uint32, payload []byte) (*kernel.Message, error) {
	m := tc.AcquireBlock()
	m.Kind = kind
	m.Word = word
	m.Waiting = true
	m.SetPayload(payload)

	for {
		res := tc.Send(kernel.TaskMem, m)
		if res == kernel.SendOK {
			break
		}
		if res == kernel.SendErrQueueFull {
			tc.Yield()
			continue
		}
		m.Waiting = false
		tc.Release(m)
		return nil, ErrGone
	}

	switch tc.WaitDone(m, 0) {
	case kernel.WaitCompleted:
		return m, nil
	case kernel.WaitFailed:
		err := ErrFailed
		if code, _, _, ok := proto.DecodeErrorPayload(m.Payload()); ok && code == proto.ErrNoMemory {
			err = ErrNoMemory
		}
		tc.Release(m)
		return nil, err
	default:
		tc.Release(m)
		return nil, ErrFailed
	}
}
