package kernel

// Message is one fixed-size envelope from the static pool.
//
// Lifecycle: acquire -> initialize -> push onto a task's queue -> handler
// marks it done (optionally rewriting it as the reply, often pushed back
// onto the sender's queue in the same buffer) -> release. Exactly one
// party releases a message: the requester when it set the waiting flag,
// otherwise the handler. Release after done is idempotent.
type Message struct {
	Kind uint16
	Len  uint16
	Data [MaxMessageBytes]byte

	// Word carries a handle-sized value: memory block offsets, task ids,
	// counts. Zero when unused.
	Word uint32

	Sender TaskID

	// Waiting marks that the sender blocks until the message is done.
	// Set before send, never after.
	Waiting bool

	done   bool
	failed bool
	inUse  bool

	// queued is the task responsible for the buffer: the one whose queue
	// holds it, or the one handling it after a pop. TaskNone while the
	// sender still holds it or after release.
	queued TaskID
}

// Payload returns the inline payload, clamped to the declared length.
func (m *Message) Payload() []byte {
	n := m.Len
	if n > MaxMessageBytes {
		n = MaxMessageBytes
	}
	return m.Data[:n]
}

// SetPayload copies b inline, reporting false if it does not fit.
func (m *Message) SetPayload(b []byte) bool {
	if len(b) > MaxMessageBytes {
		return false
	}
	copy(m.Data[:], b)
	m.Len = uint16(len(b))
	return true
}

// Done reports whether a handler finished with the message.
func (m *Message) Done() bool { return m.done }

// Failed reports whether the handler (or the kernel, on teardown of the
// recipient) completed the message with an error.
func (m *Message) Failed() bool { return m.failed }

// msgRing is a per-task FIFO of pool indexes.
type msgRing struct {
	head  uint8
	tail  uint8
	slots [msgSlots]uint8
}

func (r *msgRing) len() int { return int(r.head - r.tail) }

func (r *msgRing) push(idx uint8) bool {
	if r.head-r.tail >= msgSlots {
		return false
	}
	r.slots[r.head%msgSlots] = idx
	r.head++
	return true
}

func (r *msgRing) pop() (uint8, bool) {
	if r.tail == r.head {
		return 0, false
	}
	idx := r.slots[r.tail%msgSlots]
	r.tail++
	return idx, true
}

// waitAnyKind wakes a blocked receiver on any inbound message.
const waitAnyKind uint16 = 0xFFFF

// SendResult describes the outcome of a send attempt.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendErrGone
	SendErrQueueFull
	SendErrNilMessage
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrGone:
		return "recipient gone"
	case SendErrQueueFull:
		return "queue full"
	case SendErrNilMessage:
		return "nil message"
	default:
		return "unknown"
	}
}

// acquire scans the pool for an unused slot. Returns nil under contention;
// callers yield and retry, bounded by scheduler fairness.
func (k *Kernel) acquire(sender TaskID) *Message {
	for i := range k.pool {
		m := &k.pool[i]
		if m.inUse {
			continue
		}
		*m = Message{inUse: true, Sender: sender, queued: TaskNone}
		return m
	}
	return nil
}

// release returns a message to the pool. It is a no-op while the sender
// still waits on it, and idempotent after done.
func (k *Kernel) release(m *Message) {
	if m == nil {
		return
	}
	if m.Waiting && !m.done {
		return
	}
	m.inUse = false
	m.queued = TaskNone
}

// poolIndex maps a message back to its pool slot.
func (k *Kernel) poolIndex(m *Message) (uint8, bool) {
	for i := range k.pool {
		if &k.pool[i] == m {
			return uint8(i), true
		}
	}
	return 0, false
}

// send pushes a message onto the target task's queue, waking the target
// if it blocks on inbound messages.
func (k *Kernel) send(to TaskID, m *Message) SendResult {
	if m == nil || !m.inUse {
		return SendErrNilMessage
	}
	if !k.alive(to) {
		return SendErrGone
	}
	idx, ok := k.poolIndex(m)
	if !ok {
		return SendErrNilMessage
	}

	t := &k.tasks[to]
	if !t.msgq.push(idx) {
		return SendErrQueueFull
	}
	m.queued = to

	if to != TaskSched && (t.waitKind == waitAnyKind || (t.waitKind != 0 && t.waitKind == m.Kind)) {
		k.readyTask(to)
	}
	return SendOK
}

// sendDirect stages a kernel-originated command for delivery at the
// target's next resume, ahead of its message queue. Only for service
// tasks that drain messages in a loop; one direct slot per task.
func (k *Kernel) sendDirect(to TaskID, m *Message) SendResult {
	if m == nil || !m.inUse {
		return SendErrNilMessage
	}
	if !k.alive(to) {
		return SendErrGone
	}
	t := &k.tasks[to]
	if t.handoff != nil {
		return SendErrQueueFull
	}
	t.handoff = m

	if t.waitKind == waitAnyKind || (t.waitKind != 0 && t.waitKind == m.Kind) {
		k.readyTask(to)
	}
	return SendOK
}

// complete marks a message handled and readies its blocked sender, if any.
// This is the substrate callback that makes blocking waits interoperate
// with the queue model without polling.
func (k *Kernel) complete(m *Message, failed bool) {
	if m == nil || m.done {
		return
	}
	m.done = true
	m.failed = failed
	if m.Waiting {
		k.readyTask(m.Sender)
	}
}

// popMsg removes the head of a task's queue. The message stays attributed
// to the popper until release, so teardown can tell a buffer mid-handling
// from one its dead sender never sent.
func (k *Kernel) popMsg(id TaskID) (*Message, bool) {
	idx, ok := k.tasks[id].msgq.pop()
	if !ok {
		return nil, false
	}
	return &k.pool[idx], true
}

// popMsgKind removes the first queued message of the given kind, leaving
// the rest in order.
func (k *Kernel) popMsgKind(id TaskID, kind uint16) (*Message, bool) {
	r := &k.tasks[id].msgq
	n := r.len()
	var found *Message
	for i := 0; i < n; i++ {
		idx, _ := r.pop()
		m := &k.pool[idx]
		if found == nil && m.Kind == kind {
			found = m
			continue
		}
		r.push(idx)
	}
	return found, found != nil
}

// dropQueued pulls a message back out of the recipient queue holding it,
// reporting false when the recipient already popped it.
func (k *Kernel) dropQueued(m *Message) bool {
	to := m.queued
	if int(to) >= MaxTasks {
		return false
	}
	idx, ok := k.poolIndex(m)
	if !ok {
		return false
	}
	r := &k.tasks[to].msgq
	found := false
	n := r.len()
	for i := 0; i < n; i++ {
		got, _ := r.pop()
		if got == idx {
			found = true
			continue
		}
		r.push(got)
	}
	if found {
		m.queued = TaskNone
	}
	return found
}

// failMessagesFor tears a dead task out of the protocol: everything queued
// to it or in its hands completes with an error so blocked senders wake,
// its unserved synchronous requests are pulled back so no handler works
// for a ghost, and every buffer only the dead task referenced returns to
// the pool. Fire-and-forget messages it already sent stay queued; their
// recipients release them as usual.
func (k *Kernel) failMessagesFor(id TaskID) {
	for i := range k.pool {
		m := &k.pool[i]
		if !m.inUse {
			continue
		}
		if m.queued == id {
			m.queued = TaskNone
			k.complete(m, true)
			if !m.Waiting {
				k.release(m)
			}
		}
		if !m.inUse || m.Sender != id {
			continue
		}
		m.Sender = TaskNone
		switch {
		case m.Waiting && !m.done:
			// A request nobody is left to read the reply of. Still
			// queued: pull it back and free it. Already in a handler's
			// hands: the handler releases once the waiter claim is gone.
			m.Waiting = false
			if k.dropQueued(m) {
				k.complete(m, true)
				k.release(m)
			}
		case m.Waiting:
			m.Waiting = false
			k.release(m)
		case m.queued == TaskNone && !m.done:
			// Acquired but never sent; only the dead task knew about it.
			k.release(m)
		}
	}
	k.tasks[id].msgq = msgRing{}
	if h := k.tasks[id].handoff; h != nil {
		k.tasks[id].handoff = nil
		k.complete(h, true)
		if !h.Waiting {
			k.release(h)
		}
	}
}
