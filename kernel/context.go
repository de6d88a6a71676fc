package kernel

// Context provides task-local access to kernel operations. Every method
// runs on the task's own execution context; the blocking ones suspend the
// task and hand control back to the scheduler.
type Context struct {
	k  *Kernel
	id TaskID
	ec *execContext

	// direct holds a scheduler-originated message delivered at resume.
	// Pop consumes it ahead of the regular queue.
	direct *Message
}

// WaitResult distinguishes the three outcomes of a blocking wait.
type WaitResult uint8

const (
	WaitCompleted WaitResult = iota
	WaitFailed
	WaitTimeout
	WaitErr
)

func (r WaitResult) String() string {
	switch r {
	case WaitCompleted:
		return "completed"
	case WaitFailed:
		return "failed"
	case WaitTimeout:
		return "timeout"
	case WaitErr:
		return "error"
	default:
		return "unknown"
	}
}

// TaskID returns the current task id.
func (tc *Context) TaskID() TaskID { return tc.id }

// UID returns the current task's owning user id.
func (tc *Context) UID() uint8 { return tc.k.tasks[tc.id].uid }

// Name returns the current task's display name.
func (tc *Context) Name() string { return tc.k.tasks[tc.id].name }

// Args returns the command-line arguments the task was launched with.
func (tc *Context) Args() []string { return tc.k.tasks[tc.id].args }

// Env returns the task's environment strings.
func (tc *Context) Env() []string { return tc.k.tasks[tc.id].env }

// Now returns the kernel timebase in ticks.
func (tc *Context) Now() uint64 { return tc.k.now() }

// checkPreempt yields if the quantum timer fired since the last suspend
// point. Forced yields land on kernel-API calls: a goroutine cannot be
// interrupted between them.
func (tc *Context) checkPreempt() {
	if tc.ec.preempt.Swap(false) {
		tc.park(yield{reason: yieldReady})
	}
}

// Yield hands control back to the scheduler, staying runnable.
func (tc *Context) Yield() {
	tc.ec.preempt.Store(false)
	tc.park(yield{reason: yieldReady})
}

// Sleep suspends the task for at least d ticks.
func (tc *Context) Sleep(d uint32) {
	deadline := tc.k.now() + uint64(d)
	for tc.k.now() < deadline {
		tc.park(yield{reason: yieldTimed, deadline: deadline})
	}
}

// Acquire takes a message buffer from the static pool, or nil under
// contention. Callers retry after yielding; exhaustion is transient.
func (tc *Context) Acquire() *Message {
	tc.checkPreempt()
	return tc.k.acquire(tc.id)
}

// AcquireBlock takes a message buffer, yielding until one frees up.
func (tc *Context) AcquireBlock() *Message {
	for {
		if m := tc.Acquire(); m != nil {
			return m
		}
		tc.park(yield{reason: yieldReady})
	}
}

// Send pushes a message onto the target task's queue.
func (tc *Context) Send(to TaskID, m *Message) SendResult {
	tc.checkPreempt()
	return tc.k.send(to, m)
}

// Release returns a message buffer to the pool.
func (tc *Context) Release(m *Message) {
	tc.k.release(m)
}

// Complete marks a request handled, waking its blocked sender.
func (tc *Context) Complete(m *Message) {
	tc.checkPreempt()
	tc.k.complete(m, false)
}

// Fail marks a request handled with an error, waking its blocked sender.
func (tc *Context) Fail(m *Message) {
	tc.checkPreempt()
	tc.k.complete(m, true)
}

// Pop removes the head of the task's own message queue.
func (tc *Context) Pop() (*Message, bool) {
	tc.checkPreempt()
	if m := tc.direct; m != nil {
		tc.direct = nil
		return m, true
	}
	return tc.k.popMsg(tc.id)
}

// PopWait blocks until a message arrives on the task's queue. deadline is
// absolute in ticks; 0 waits indefinitely. Wakes are advisory: the queue
// is re-checked after every resume.
func (tc *Context) PopWait(deadline uint64) (*Message, WaitResult) {
	for {
		if m, ok := tc.Pop(); ok {
			return m, WaitCompleted
		}
		if deadline != 0 && tc.k.now() >= deadline {
			return nil, WaitTimeout
		}
		tc.parkForMessage(waitAnyKind, deadline)
	}
}

// WaitDone suspends until the message's done flag is set or the deadline
// elapses. The message must have been sent with Waiting set.
func (tc *Context) WaitDone(m *Message, deadline uint64) WaitResult {
	if m == nil {
		return WaitErr
	}
	for {
		if m.done {
			if m.failed {
				return WaitFailed
			}
			return WaitCompleted
		}
		if deadline != 0 && tc.k.now() >= deadline {
			// The wait is over; drop the waiter claim so the handler's
			// release can free the buffer.
			m.Waiting = false
			return WaitTimeout
		}
		tc.parkForMessage(0, deadline)
	}
}

// WaitKind suspends until a message of the given kind appears on the
// task's own queue; used for request/reply round-trips where the reply is
// a distinct message.
func (tc *Context) WaitKind(kind uint16, deadline uint64) (*Message, WaitResult) {
	for {
		tc.checkPreempt()
		if m, ok := tc.k.popMsgKind(tc.id, kind); ok {
			return m, WaitCompleted
		}
		if deadline != 0 && tc.k.now() >= deadline {
			return nil, WaitTimeout
		}
		tc.parkForMessage(kind, deadline)
	}
}

// WaitTask blocks until the given task terminates. Returns WaitErr if the
// task does not exist.
func (tc *Context) WaitTask(id TaskID, deadline uint64) WaitResult {
	if int(id) >= MaxTasks || id == tc.id {
		return WaitErr
	}
	for {
		if !tc.k.alive(id) {
			return WaitCompleted
		}
		if deadline != 0 && tc.k.now() >= deadline {
			return WaitTimeout
		}
		tc.k.tasks[id].joiners = append(tc.k.tasks[id].joiners, tc.id)
		tc.parkForMessage(0, deadline)
	}
}

func (tc *Context) parkForMessage(kind uint16, deadline uint64) {
	if deadline != 0 {
		tc.park(yield{reason: yieldTimed, deadline: deadline, waitKind: kind})
		return
	}
	tc.park(yield{reason: yieldWait, waitKind: kind})
}
