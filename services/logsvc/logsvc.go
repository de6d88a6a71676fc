// Package logsvc is the logger task: every other task logs by sending
// MsgLogLine here, keeping the output stream serialized without locks.
package logsvc

import (
	"krill/hal"
	"krill/kernel"
	"krill/proto"
)

type Service struct {
	log hal.Logger
}

func New(log hal.Logger) *Service {
	return &Service{log: log}
}

func (s *Service) Run(tc *kernel.Context) {
	for {
		m, res := tc.PopWait(0)
		if res != kernel.WaitCompleted {
			continue
		}
		if proto.Kind(m.Kind) == proto.MsgLogLine && s.log != nil {
			s.log.WriteLineBytes(m.Payload())
		}
		tc.Complete(m)
		if !m.Waiting {
			tc.Release(m)
		}
	}
}
