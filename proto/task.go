package proto

// TaskState mirrors the queue a task currently belongs to.
type TaskState uint8

const (
	TaskRunning TaskState = iota
	TaskReady
	TaskWaiting
	TaskTimedWaiting
	TaskFree
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "run"
	case TaskReady:
		return "ready"
	case TaskWaiting:
		return "wait"
	case TaskTimedWaiting:
		return "timed"
	case TaskFree:
		return "free"
	default:
		return "unknown"
	}
}

// TaskInfo is one entry of a MsgTaskInfo snapshot.
type TaskInfo struct {
	ID    uint8
	State TaskState
	UID   uint8
	Name  string
}

const taskInfoNameMax = 12

// AppendTaskInfo appends one snapshot entry, returning false when the
// buffer cannot hold it.
//
// Entry layout (little-endian): u8 id, u8 state, u8 uid, u8 name length,
// name bytes. A snapshot is a bare concatenation of entries.
func AppendTaskInfo(buf []byte, max int, info TaskInfo) ([]byte, bool) {
	name := info.Name
	if len(name) > taskInfoNameMax {
		name = name[:taskInfoNameMax]
	}
	if len(buf)+4+len(name) > max {
		return buf, false
	}
	buf = append(buf, info.ID, uint8(info.State), info.UID, uint8(len(name)))
	buf = append(buf, name...)
	return buf, true
}

// DecodeTaskInfos decodes a MsgTaskInfo snapshot payload.
func DecodeTaskInfos(payload []byte) ([]TaskInfo, bool) {
	var out []TaskInfo
	for len(payload) > 0 {
		if len(payload) < 4 {
			return nil, false
		}
		n := int(payload[3])
		if len(payload) < 4+n {
			return nil, false
		}
		out = append(out, TaskInfo{
			ID:    payload[0],
			State: TaskState(payload[1]),
			UID:   payload[2],
			Name:  string(payload[4 : 4+n]),
		})
		payload = payload[4+n:]
	}
	return out, true
}

// SetUIDPayload encodes the new owner for a MsgSetUID request; the target
// task id travels in Message.Word.
func SetUIDPayload(uid uint8) []byte {
	return []byte{uid}
}

// DecodeSetUID decodes a MsgSetUID payload.
func DecodeSetUID(payload []byte) (uid uint8, ok bool) {
	if len(payload) < 1 {
		return 0, false
	}
	return payload[0], true
}
