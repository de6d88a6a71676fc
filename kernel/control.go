package kernel

import (
	"github.com/google/shlex"

	"krill/proto"
)

// Kernel-directed commands. Handlers run between task resumptions; exactly
// one is dispatched per tick.

const kindMax = int(proto.KindMax)

const kindMemFreeOwned = uint16(proto.MsgMemFreeOwned)

func (k *Kernel) installControlHandlers() {
	k.Handle(uint16(proto.MsgRunCommand), handleRunCommand)
	k.Handle(uint16(proto.MsgExec), handleExec)
	k.Handle(uint16(proto.MsgKillTask), handleKillTask)
	k.Handle(uint16(proto.MsgTaskCount), handleTaskCount)
	k.Handle(uint16(proto.MsgTaskInfo), handleTaskInfo)
	k.Handle(uint16(proto.MsgGetUID), handleGetUID)
	k.Handle(uint16(proto.MsgSetUID), handleSetUID)
	k.Handle(uint16(proto.MsgCloseFDs), handleCloseFDs)
	k.Handle(uint16(proto.MsgHostname), handleHostname)
	k.Handle(uint16(proto.MsgMemReclaimed), handleMemReclaimed)
}

// reply finishes a kernel-handled request. Fire-and-forget buffers are
// released here; waited ones by the requester.
func (k *Kernel) reply(m *Message, failed bool) {
	k.complete(m, failed)
	if !m.Waiting {
		k.release(m)
	}
}

func (k *Kernel) replyErr(m *Message, code proto.ErrCode) {
	ref := proto.Kind(m.Kind)
	m.Kind = uint16(proto.MsgError)
	m.SetPayload(proto.ErrorPayload(code, ref, nil))
	k.reply(m, true)
}

// privileged reports whether a sender may act on tasks it does not own.
// Privilege follows the owning user, never the slot number: a reserved
// slot is only privileged while root owns it.
func (k *Kernel) privileged(id TaskID) bool {
	return int(id) < MaxTasks && k.tasks[id].uid == UserRoot
}

func handleRunCommand(k *Kernel, m *Message) {
	line := string(m.Payload())
	lead, code := k.launchCommandLine(line, m.Sender)
	if code != proto.ErrCode(0) {
		k.warnf("kernel: run %q: %s", line, code)
		k.replyErr(m, code)
		return
	}
	m.Word = uint32(lead)
	k.reply(m, false)
}

// launchCommandLine parses a shell line, resolves every pipeline segment,
// and launches all of them or none: a pipeline that does not fit in the
// free slots is rejected whole.
func (k *Kernel) launchCommandLine(line string, sender TaskID) (TaskID, proto.ErrCode) {
	fields, err := shlex.Split(line)
	if err != nil {
		return TaskNone, proto.ErrBadMessage
	}
	if len(fields) == 0 {
		return TaskNone, proto.ErrCode(0)
	}

	segs, ok := splitPipeline(fields)
	if !ok {
		return TaskNone, proto.ErrBadMessage
	}

	fns := make([]TaskFunc, len(segs))
	for i, seg := range segs {
		fn, ok := k.programs[seg[0]]
		if !ok {
			return TaskNone, proto.ErrNotFound
		}
		fns[i] = fn
	}

	if k.freeUsable() < len(segs) {
		return TaskNone, proto.ErrNoSlots
	}

	uid := UserNone
	env := []string(nil)
	senderFDs := &k.defaultFDs
	if int(sender) < MaxTasks {
		uid = k.tasks[sender].uid
		env = k.tasks[sender].env
		senderFDs = k.tasks[sender].fds
	}

	lead := TaskNone
	var carry FD // read end of the previous segment's pipe
	for i, seg := range segs {
		fds := *senderFDs
		fds.shared = false
		if i > 0 {
			fds.slots[FDStdin] = carry
		}
		if i < len(segs)-1 {
			r, w := pipePair()
			fds.slots[FDStdout] = w
			carry = r
		}
		id, ok := k.createTask(spawnSpec{
			name: seg[0],
			fn:   fns[i],
			uid:  uid,
			args: seg,
			env:  env,
			fds:  &fds,
		})
		if !ok {
			// freeUsable was checked above; hitting this means the table
			// changed under us, so give up on the remainder.
			return TaskNone, proto.ErrNoSlots
		}
		lead = id
	}
	return lead, proto.ErrCode(0)
}

func splitPipeline(fields []string) ([][]string, bool) {
	var segs [][]string
	cur := []string{}
	for _, f := range fields {
		if f == "|" {
			if len(cur) == 0 {
				return nil, false
			}
			segs = append(segs, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, f)
	}
	if len(cur) == 0 {
		return nil, false
	}
	return append(segs, cur), true
}

// freeUsable counts free slots not awaiting memory reclaim.
func (k *Kernel) freeUsable() int {
	n := 0
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.queue == queueFree && !t.reaping {
			n++
		}
	}
	return n
}

func handleExec(k *Kernel, m *Message) {
	sender := m.Sender
	if !k.alive(sender) {
		k.reply(m, true)
		return
	}
	fields, err := shlex.Split(string(m.Payload()))
	if err != nil || len(fields) == 0 {
		k.replyErr(m, proto.ErrBadMessage)
		return
	}
	for _, f := range fields {
		if f == "|" { // exec replaces one task; pipelines go through run
			k.replyErr(m, proto.ErrBadMessage)
			return
		}
	}
	fn, ok := k.programs[fields[0]]
	if !ok {
		k.replyErr(m, proto.ErrNotFound)
		return
	}
	k.tasks[sender].pendingExec = &execRequest{name: fields[0], fn: fn, args: fields}
	k.reply(m, false)
}

func handleKillTask(k *Kernel, m *Message) {
	// Word is range-checked before narrowing so an oversized id cannot
	// alias a low slot.
	if m.Word >= MaxTasks {
		k.replyErr(m, proto.ErrNotFound)
		return
	}
	victim := TaskID(m.Word)
	if !k.alive(victim) {
		k.replyErr(m, proto.ErrNotFound)
		return
	}
	// The sender may have died while this request sat queued; a dead
	// sender has no identity to authorize with.
	if int(m.Sender) >= MaxTasks {
		k.replyErr(m, proto.ErrUnauthorized)
		return
	}
	if !k.privileged(m.Sender) && k.tasks[victim].uid != k.tasks[m.Sender].uid {
		k.replyErr(m, proto.ErrUnauthorized)
		return
	}
	if !k.Kill(victim) {
		k.replyErr(m, proto.ErrInternal)
		return
	}
	k.reply(m, false)
}

func handleTaskCount(k *Kernel, m *Message) {
	m.Word = uint32(MaxTasks - k.free.len())
	k.reply(m, false)
}

func handleTaskInfo(k *Kernel, m *Message) {
	buf := make([]byte, 0, MaxMessageBytes)
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.queue == queueFree && t.id != TaskSched {
			continue
		}
		buf, _ = proto.AppendTaskInfo(buf, MaxMessageBytes, proto.TaskInfo{
			ID:    uint8(t.id),
			State: taskState(t.queue),
			UID:   t.uid,
			Name:  t.name,
		})
	}
	m.SetPayload(buf)
	k.reply(m, false)
}

func taskState(q queueID) proto.TaskState {
	switch q {
	case queueReady:
		return proto.TaskReady
	case queueWaiting:
		return proto.TaskWaiting
	case queueTimed:
		return proto.TaskTimedWaiting
	case queueFree:
		return proto.TaskFree
	default:
		return proto.TaskRunning
	}
}

func handleGetUID(k *Kernel, m *Message) {
	if m.Word >= MaxTasks {
		k.replyErr(m, proto.ErrNotFound)
		return
	}
	m.SetPayload([]byte{k.tasks[m.Word].uid})
	k.reply(m, false)
}

func handleSetUID(k *Kernel, m *Message) {
	uid, ok := proto.DecodeSetUID(m.Payload())
	if m.Word >= MaxTasks || !ok {
		k.replyErr(m, proto.ErrBadMessage)
		return
	}
	target := TaskID(m.Word)
	t := &k.tasks[target]
	owned := t.uid != UserNone
	if owned && target != m.Sender && !k.privileged(m.Sender) {
		k.replyErr(m, proto.ErrUnauthorized)
		return
	}
	t.uid = uid
	k.reply(m, false)
}

func handleCloseFDs(k *Kernel, m *Message) {
	if int(m.Sender) < MaxTasks {
		k.closeFDs(m.Sender)
	}
	k.reply(m, false)
}

func handleHostname(k *Kernel, m *Message) {
	m.SetPayload([]byte(k.cfg.Hostname))
	k.reply(m, false)
}

func handleMemReclaimed(k *Kernel, m *Message) {
	if m.Sender != TaskMem {
		k.warnf("kernel: reclaim confirmation from non-memory task %d", m.Sender)
		k.release(m)
		return
	}
	if m.Word < MaxTasks {
		k.tasks[m.Word].reaping = false
	}
	k.release(m)
}
