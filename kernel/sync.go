package kernel

// User-level blocking primitives the kernel exposes to tasks. The kernel
// itself needs no locks: cooperative scheduling serializes all mutation.
// Unlock and Signal move their wakees to the ready queue synchronously,
// which is how these primitives interoperate with the queue model without
// the scheduler polling them.

// Mutex is a task-level lock with FIFO handoff.
type Mutex struct {
	k       *Kernel
	owner   TaskID
	waiters msgRing // ring of TaskIDs, reusing the small index ring
}

// NewMutex returns a mutex usable by any task of this kernel.
func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{k: k, owner: TaskNone}
}

// Lock blocks the calling task until it owns the mutex.
func (m *Mutex) Lock(tc *Context) {
	tc.checkPreempt()
	if m.owner == TaskNone {
		m.owner = tc.id
		return
	}
	m.waiters.push(uint8(tc.id))
	for m.owner != tc.id {
		tc.park(yield{reason: yieldWait})
	}
}

// TryLock acquires the mutex without blocking.
func (m *Mutex) TryLock(tc *Context) bool {
	tc.checkPreempt()
	if m.owner != TaskNone {
		return false
	}
	m.owner = tc.id
	return true
}

// Unlock hands the mutex to the longest-waiting live task, or frees it.
// Unlocking a mutex the caller does not own is a no-op.
func (m *Mutex) Unlock(tc *Context) {
	if m.owner != tc.id {
		return
	}
	m.handoff()
}

func (m *Mutex) handoff() {
	for {
		w, ok := m.waiters.pop()
		if !ok {
			m.owner = TaskNone
			return
		}
		id := TaskID(w)
		// Waiters killed while parked are skipped.
		if !m.k.alive(id) {
			continue
		}
		m.owner = id
		m.k.readyTask(id)
		return
	}
}

// Cond is a condition variable tied to a Mutex.
type Cond struct {
	k       *Kernel
	waiters msgRing
}

// NewCond returns a condition variable usable by any task of this kernel.
func (k *Kernel) NewCond() *Cond {
	return &Cond{k: k}
}

// Wait atomically releases mu and suspends the calling task; on wake it
// reacquires mu before returning. Wakes can be spurious: callers re-check
// their condition in a loop.
func (c *Cond) Wait(tc *Context, mu *Mutex) {
	c.waiters.push(uint8(tc.id))
	mu.Unlock(tc)
	tc.park(yield{reason: yieldWait})
	c.drop(tc.id)
	mu.Lock(tc)
}

// Signal readies the longest-waiting task, if any.
func (c *Cond) Signal() {
	for {
		w, ok := c.waiters.pop()
		if !ok {
			return
		}
		id := TaskID(w)
		if !c.k.alive(id) {
			continue
		}
		c.k.readyTask(id)
		return
	}
}

// Broadcast readies every waiting task.
func (c *Cond) Broadcast() {
	n := c.waiters.len()
	for i := 0; i < n; i++ {
		c.Signal()
	}
}

// drop removes one id from the wait ring, for waiters that woke some
// other way.
func (c *Cond) drop(id TaskID) {
	n := c.waiters.len()
	for i := 0; i < n; i++ {
		w, _ := c.waiters.pop()
		if TaskID(w) == id {
			continue
		}
		c.waiters.push(w)
	}
}
