package kernel

// execRequest is a pending exec-replace for a task slot.
type execRequest struct {
	name string
	fn   TaskFunc
	args []string
}

// taskDesc is one slot of the task table. Slots are populated once at boot
// and reinitialized in place; they are never individually allocated.
type taskDesc struct {
	id   TaskID
	name string
	uid  uint8

	// ec is the suspendable execution context, owned exclusively by this
	// descriptor. nil for empty slots and for the scheduler.
	ec *execContext

	queue    queueID
	wakeAt   uint64 // absolute deadline while on the timed queue
	waitKind uint16 // message kind that wakes this task; see waitAnyKind

	overlay uint16 // code overlay this task runs from; 0 = resident kernel
	env     []string
	args    []string
	fds     *fdTable

	msgq    msgRing
	handoff *Message // scheduler-originated message delivered at next resume

	// shell marks a protected slot: on exit it is relaunched as login or
	// shell instead of being freed.
	shell   bool
	loginFn TaskFunc
	shellFn TaskFunc

	// reaping slots sit on the free queue but are not reused until the
	// memory manager confirms their blocks were reclaimed.
	reaping bool

	pendingExec *execRequest

	joiners []TaskID // tasks blocked on this task's completion
}

// spawnSpec carries everything needed to initialize a slot.
type spawnSpec struct {
	name    string
	fn      TaskFunc
	uid     uint8
	overlay uint16
	args    []string
	env     []string
	fds     *fdTable
}

// createTask reinitializes a free slot and makes it ready. It fails when
// every free slot is still awaiting memory reclaim, or none is free.
func (k *Kernel) createTask(spec spawnSpec) (TaskID, bool) {
	n := k.free.len()
	id := TaskNone
	for i := 0; i < n; i++ {
		got, _ := k.dequeue(&k.free)
		if k.tasks[got].reaping || id != TaskNone {
			k.enqueue(&k.free, got)
			continue
		}
		id = got
	}
	if id == TaskNone {
		return TaskNone, false
	}

	t := &k.tasks[id]
	t.name = spec.name
	t.uid = spec.uid
	t.overlay = spec.overlay
	t.args = spec.args
	t.env = spec.env
	t.fds = spec.fds
	if t.fds == nil {
		t.fds = &k.defaultFDs
	}
	t.msgq = msgRing{}
	t.handoff = nil
	t.wakeAt = 0
	t.waitKind = 0
	t.pendingExec = nil
	t.joiners = nil
	t.ec = newExecContext(k, id, spec.fn)

	k.enqueue(&k.ready, id)
	return id, true
}

// reserveSlot pins a service or shell program to a specific free slot.
// Boot-time only.
func (k *Kernel) reserveSlot(id TaskID, spec spawnSpec) bool {
	if !k.remove(&k.free, id) {
		return false
	}
	t := &k.tasks[id]
	t.name = spec.name
	t.uid = spec.uid
	t.args = spec.args
	t.env = spec.env
	t.fds = spec.fds
	if t.fds == nil {
		t.fds = &k.defaultFDs
	}
	t.ec = newExecContext(k, id, spec.fn)
	k.enqueue(&k.ready, id)
	return true
}

// AddService pins fn to a reserved service slot and makes it ready. The
// slot starts unowned; boot wiring hands system services to root through
// Chown.
func (k *Kernel) AddService(id TaskID, name string, fn TaskFunc) bool {
	if id == TaskSched || int(id) >= MaxTasks || fn == nil {
		return false
	}
	return k.reserveSlot(id, spawnSpec{name: name, fn: fn, uid: UserNone})
}

// Chown reassigns a slot's owning user directly, without the message
// round-trip. Boot wiring only; running tasks go through MsgSetUID.
func (k *Kernel) Chown(id TaskID, uid uint8) bool {
	if int(id) >= MaxTasks {
		return false
	}
	k.tasks[id].uid = uid
	return true
}

// AddShellSlot reserves a protected console slot. The slot relaunches as
// login while unowned and as shell once a user id is set; exiting the
// shell clears the owner and falls back to login.
func (k *Kernel) AddShellSlot(name string, login, shell TaskFunc) TaskID {
	if login == nil || shell == nil {
		return TaskNone
	}
	id, ok := k.createTask(spawnSpec{name: name, fn: login, uid: UserNone})
	if !ok {
		return TaskNone
	}
	t := &k.tasks[id]
	t.shell = true
	t.loginFn = login
	t.shellFn = shell
	return id
}

// clearSlot wipes a descriptor's identity after teardown. Queue membership
// is the caller's business.
func (k *Kernel) clearSlot(id TaskID) {
	t := &k.tasks[id]
	t.name = ""
	t.uid = UserNone
	t.ec = nil
	t.overlay = 0
	t.args = nil
	t.env = nil
	t.fds = &k.defaultFDs
	t.msgq = msgRing{}
	t.handoff = nil
	t.waitKind = 0
	t.pendingExec = nil
	t.joiners = nil
}

// wakeJoiners readies every task blocked on this slot's completion.
func (k *Kernel) wakeJoiners(id TaskID) {
	t := &k.tasks[id]
	for _, j := range t.joiners {
		k.readyTask(j)
	}
	t.joiners = nil
}

// readyTask moves a blocked task to the ready queue. Spurious wakes are
// allowed; waiters re-check their condition.
func (k *Kernel) readyTask(id TaskID) {
	if int(id) >= MaxTasks {
		return
	}
	t := &k.tasks[id]
	if t.queue != queueWaiting && t.queue != queueTimed {
		return
	}
	k.unqueue(id)
	t.waitKind = 0
	k.enqueue(&k.ready, id)
}
