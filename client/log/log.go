// Package log is the task-side client of the logger service.
package log

import (
	"fmt"

	"krill/kernel"
	"krill/proto"
)

// Line sends one log line to the logger task.
//
// Best-effort: it retries buffer exhaustion by yielding, but drops the
// line if the logger itself is gone.
func Line(tc *kernel.Context, line string) kernel.SendResult {
	m := tc.AcquireBlock()
	m.Kind = uint16(proto.MsgLogLine)
	b := []byte(line)
	if len(b) > kernel.MaxMessageBytes {
		b = b[:kernel.MaxMessageBytes]
	}
	m.SetPayload(b)

	for {
		res := tc.Send(kernel.TaskLog, m)
		switch res {
		case kernel.SendOK:
			return res
		case kernel.SendErrQueueFull:
			tc.Yield()
		default:
			tc.Release(m)
			return res
		}
	}
}

// Linef formats and sends one log line.
func Linef(tc *kernel.Context, format string, args ...any) kernel.SendResult {
	return Line(tc, fmt.Sprintf(format, args...))
}
