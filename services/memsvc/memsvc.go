// Package memsvc is the memory manager: a first-class scheduled task that
// owns the arena and serves allocation requests exclusively through the
// message protocol. There is no direct call path into the arena from
// outside; every header remembers its owning task, which lets the
// scheduler reclaim a dead task's blocks without its cooperation.
package memsvc

import (
	"krill/kernel"
	"krill/proto"
)

type Service struct {
	arena *Arena
}

// New sizes the arena once; it never grows.
func New(arenaBytes uint32) *Service {
	return &Service{arena: NewArena(arenaBytes)}
}

// Arena exposes the arena to boot-time collaborators and tests.
func (s *Service) Arena() *Arena { return s.arena }

// Run is the service task body: handle one request per wakeup, fully
// synchronously from the requester's point of view.
func (s *Service) Run(tc *kernel.Context) {
	for {
		m, res := tc.PopWait(0)
		if res != kernel.WaitCompleted {
			continue
		}
		s.handle(tc, m)
	}
}

func (s *Service) handle(tc *kernel.Context, m *kernel.Message) {
	switch proto.Kind(m.Kind) {
	case proto.MsgMemResize:
		// A request whose sender died in the queue would mint a block
		// no reclaim sweep could ever attribute.
		if int(m.Sender) >= kernel.MaxTasks {
			s.fail(tc, m, proto.ErrUnauthorized)
			return
		}
		size, ok := proto.DecodeMemResize(m.Payload())
		if !ok {
			s.fail(tc, m, proto.ErrBadMessage)
			return
		}
		handle, ok := s.arena.Resize(m.Word, size, uint8(m.Sender))
		if !ok && size != 0 {
			m.Word = 0
			s.fail(tc, m, proto.ErrNoMemory)
			return
		}
		m.Word = handle
		s.done(tc, m)

	case proto.MsgMemFree:
		s.arena.Free(m.Word)
		m.Word = 0
		s.done(tc, m)

	case proto.MsgMemFreeOwned:
		// Only the scheduler may bulk-release another task's memory.
		if m.Sender != kernel.TaskSched {
			s.fail(tc, m, proto.ErrUnauthorized)
			return
		}
		victim := uint8(m.Word)
		s.arena.FreeOwnedBy(victim)
		// Reuse the buffer as the confirmation pushed back to the kernel.
		m.Kind = uint16(proto.MsgMemReclaimed)
		m.Sender = tc.TaskID()
		if tc.Send(kernel.TaskSched, m) != kernel.SendOK {
			tc.Release(m)
		}

	case proto.MsgMemFreeBytes:
		m.Word = s.arena.FreeBytes()
		s.done(tc, m)

	default:
		s.fail(tc, m, proto.ErrBadMessage)
	}
}

func (s *Service) done(tc *kernel.Context, m *kernel.Message) {
	tc.Complete(m)
	if !m.Waiting {
		tc.Release(m)
	}
}

func (s *Service) fail(tc *kernel.Context, m *kernel.Message, code proto.ErrCode) {
	ref := proto.Kind(m.Kind)
	m.Kind = uint16(proto.MsgError)
	m.SetPayload(proto.ErrorPayload(code, ref, nil))
	tc.Fail(m)
	if !m.Waiting {
		tc.Release(m)
	}
}
