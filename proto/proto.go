package proto

// Kind identifies the message type carried in kernel.Message.Kind.
type Kind uint16

const (
	MsgLogLine Kind = iota + 1
	MsgError

	// Kernel control surface.
	MsgRunCommand
	MsgExec
	MsgKillTask
	MsgTaskCount
	MsgTaskInfo
	MsgGetUID
	MsgSetUID
	MsgCloseFDs
	MsgHostname

	// Memory manager surface.
	MsgMemResize
	MsgMemFree
	MsgMemFreeOwned
	MsgMemFreeBytes
	MsgMemReclaimed

	// KindMax bounds the fixed handler dispatch tables.
	KindMax
)

func (k Kind) String() string {
	switch k {
	case MsgLogLine:
		return "log_line"
	case MsgError:
		return "error"
	case MsgRunCommand:
		return "run_command"
	case MsgExec:
		return "exec"
	case MsgKillTask:
		return "kill_task"
	case MsgTaskCount:
		return "task_count"
	case MsgTaskInfo:
		return "task_info"
	case MsgGetUID:
		return "get_uid"
	case MsgSetUID:
		return "set_uid"
	case MsgCloseFDs:
		return "close_fds"
	case MsgHostname:
		return "hostname"
	case MsgMemResize:
		return "mem_resize"
	case MsgMemFree:
		return "mem_free"
	case MsgMemFreeOwned:
		return "mem_free_owned"
	case MsgMemFreeBytes:
		return "mem_free_bytes"
	case MsgMemReclaimed:
		return "mem_reclaimed"
	default:
		return "unknown"
	}
}
