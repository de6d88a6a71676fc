// Package kernctl is the task-side client of the kernel's own message
// queue: launching command lines, killing tasks, process listings, user
// ids, hostname.
package kernctl

import (
	"errors"

	"krill/kernel"
	"krill/proto"
)

var ErrFailed = errors.New("kernctl: request failed")

// RunCommand asks the kernel to launch a command line. Pipelines launch
// whole or not at all. Returns the id of the pipeline's last task.
func RunCommand(tc *kernel.Context, line string) (kernel.TaskID, error) {
	m, err := roundTrip(tc, proto.MsgRunCommand, 0, []byte(line))
	if err != nil {
		return kernel.TaskNone, err
	}
	id := kernel.TaskID(m.Word)
	tc.Release(m)
	return id, nil
}

// Exec replaces the calling task's program with the named one. On
// success the caller should return from its task function; the scheduler
// relaunches the slot with the new program, keeping id and owner.
func Exec(tc *kernel.Context, line string) error {
	m, err := roundTrip(tc, proto.MsgExec, 0, []byte(line))
	if err != nil {
		return err
	}
	tc.Release(m)
	return nil
}

// Kill terminates a task by id.
func Kill(tc *kernel.Context, id kernel.TaskID) error {
	m, err := roundTrip(tc, proto.MsgKillTask, uint32(id), nil)
	if err != nil {
		return err
	}
	tc.Release(m)
	return nil
}

// TaskCount reports how many table slots are live.
func TaskCount(tc *kernel.Context) (int, error) {
	m, err := roundTrip(tc, proto.MsgTaskCount, 0, nil)
	if err != nil {
		return 0, err
	}
	n := int(m.Word)
	tc.Release(m)
	return n, nil
}

// TaskInfos returns a snapshot of the live task table.
func TaskInfos(tc *kernel.Context) ([]proto.TaskInfo, error) {
	m, err := roundTrip(tc, proto.MsgTaskInfo, 0, nil)
	if err != nil {
		return nil, err
	}
	infos, ok := proto.DecodeTaskInfos(m.Payload())
	tc.Release(m)
	if !ok {
		return nil, ErrFailed
	}
	return infos, nil
}

// GetUID reports a task's owning user id.
func GetUID(tc *kernel.Context, id kernel.TaskID) (uint8, error) {
	m, err := roundTrip(tc, proto.MsgGetUID, uint32(id), nil)
	if err != nil {
		return kernel.UserNone, err
	}
	uid, ok := proto.DecodeSetUID(m.Payload())
	tc.Release(m)
	if !ok {
		return kernel.UserNone, ErrFailed
	}
	return uid, nil
}

// SetUID changes a task's owning user id, subject to kernel permission
// checks.
func SetUID(tc *kernel.Context, id kernel.TaskID, uid uint8) error {
	m, err := roundTrip(tc, proto.MsgSetUID, uint32(id), proto.SetUIDPayload(uid))
	if err != nil {
		return err
	}
	tc.Release(m)
	return nil
}

// CloseFDs drops every redirection of the calling task.
func CloseFDs(tc *kernel.Context) error {
	m, err := roundTrip(tc, proto.MsgCloseFDs, 0, nil)
	if err != nil {
		return err
	}
	tc.Release(m)
	return nil
}

// Hostname reports the configured host name.
func Hostname(tc *kernel.Context) (string, error) {
	m, err := roundTrip(tc, proto.MsgHostname, 0, nil)
	if err != nil {
		return "", err
	}
	name := string(m.Payload())
	tc.Release(m)
	return name, nil
}

func roundTrip(tc *kernel.Context, kind proto.Kind, word uint32, payload []byte) (*kernel.Message, error) {
	m := tc.AcquireBlock()
	m.Kind = uint16(kind)
	m.Word = word
	m.Waiting = true
	m.SetPayload(payload)

	for {
		res := tc.Send(kernel.TaskSched, m)
		if res == kernel.SendOK {
			break
		}
		if res == kernel.SendErrQueueFull {
			tc.Yield()
			continue
		}
		m.Waiting = false
		tc.Release(m)
		return nil, ErrFailed
	}

	if tc.WaitDone(m, 0) != kernel.WaitCompleted {
		err := replyError(m)
		tc.Release(m)
		return nil, err
	}
	return m, nil
}

// replyError turns a failed reply into an error carrying the kernel's
// error code when one was encoded.
func replyError(m *kernel.Message) error {
	if proto.Kind(m.Kind) != proto.MsgError {
		return ErrFailed
	}
	code, _, _, ok := proto.DecodeErrorPayload(m.Payload())
	if !ok {
		return ErrFailed
	}
	return errors.New("kernctl: " + code.String())
}
