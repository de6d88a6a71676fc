package kernel

// One scheduling tick: resume the ready head, reclassify it by how it
// yielded, relaunch protected shell slots, promote expired timed waits,
// and drain one kernel-directed message. The scheduler is the one
// execution context that always makes progress: it is never queued and
// never enters a wait state.
func (k *Kernel) Tick() {
	k.ticks++

	id, ok := k.dequeue(&k.ready)
	if ok {
		k.runOne(id)
	}

	k.sweepTimed()
	k.retryReaps()
	k.drainOne()
}

func (k *Kernel) runOne(id TaskID) {
	t := &k.tasks[id]

	// A corrupted saved context must not take the kernel down with it.
	if !t.ec.healthy() {
		k.warnf("kernel: task %d %q failed context check, tearing down", id, t.name)
		k.teardown(id)
		return
	}

	// Code-paging tasks need their overlay resident before they run.
	if t.overlay != 0 && t.overlay != k.resident {
		if k.loader == nil {
			k.warnf("kernel: task %d needs overlay %d but no loader is attached", id, t.overlay)
			k.teardown(id)
			return
		}
		if err := k.loader.Load(t.overlay); err != nil {
			k.warnf("kernel: overlay %d load failed: %v", t.overlay, err)
			k.teardown(id)
			return
		}
		k.resident = t.overlay
	}

	if k.timer != nil && k.cfg.Quantum > 0 {
		ec := t.ec
		k.timer.Start(k.cfg.Quantum, func() { ec.preempt.Store(true) })
	}

	handoff := t.handoff
	t.handoff = nil

	k.current = id
	y := t.ec.resume(handoff)
	k.current = TaskSched

	if k.timer != nil {
		k.timer.Cancel()
	}

	switch y.reason {
	case yieldReady:
		k.enqueue(&k.ready, id)
	case yieldWait:
		t.waitKind = y.waitKind
		k.enqueue(&k.waiting, id)
	case yieldTimed:
		t.waitKind = y.waitKind
		t.wakeAt = y.deadline
		k.enqueue(&k.timed, id)
	case yieldDone:
		if t.ec.fault.Load() {
			k.teardown(id)
			return
		}
		k.finish(id)
	}
}

// finish retires a task that returned normally: exec-replacement first,
// then shell-slot relaunch, otherwise teardown into the free queue.
func (k *Kernel) finish(id TaskID) {
	t := &k.tasks[id]

	if req := t.pendingExec; req != nil {
		t.pendingExec = nil
		k.failMessagesFor(id)
		k.wakeJoiners(id)
		t.name = req.name
		t.args = req.args
		t.ec = newExecContext(k, id, req.fn)
		k.enqueue(&k.ready, id)
		return
	}

	if t.shell {
		k.relaunchShell(id)
		return
	}

	k.teardown(id)
}

// relaunchShell re-queues a protected slot as a login prompt or a shell,
// depending on whether the slot currently has an owning user.
func (k *Kernel) relaunchShell(id TaskID) {
	t := &k.tasks[id]
	k.failMessagesFor(id)
	k.wakeJoiners(id)
	fn := t.loginFn
	if t.uid != UserNone {
		fn = t.shellFn
	}
	t.ec = newExecContext(k, id, fn)
	k.enqueue(&k.ready, id)
}

// teardown removes a task from the system: its in-flight messages fail so
// blocked peers wake with an error, completion waiters are notified, and
// its memory is reclaimed through the memory manager. The slot joins the
// free queue but is not reused until the allocator confirms the reclaim.
func (k *Kernel) teardown(id TaskID) {
	t := &k.tasks[id]

	if t.queue != queueNone {
		k.unqueue(id)
	}
	if t.ec != nil {
		t.ec.shutdown()
	}

	k.failMessagesFor(id)
	k.wakeJoiners(id)
	k.closeFDs(id)

	if t.shell {
		k.relaunchShell(id)
		return
	}

	needsReap := k.alive(TaskMem) && id != TaskMem
	k.clearSlot(id)
	if needsReap {
		t.reaping = true
		k.requestReap(id)
	}
	k.enqueue(&k.free, id)
}

// Kill forcibly terminates a task. Blocked tasks are searched for in the
// waiting queue first: a hung task is more likely blocked than looping.
func (k *Kernel) Kill(id TaskID) bool {
	if id == TaskSched || int(id) >= MaxTasks || id == k.current {
		return false
	}
	t := &k.tasks[id]
	if t.ec == nil || t.queue == queueFree {
		return false
	}

	switch {
	case k.remove(&k.waiting, id):
	case k.remove(&k.ready, id):
	case k.remove(&k.timed, id):
	default:
		return false
	}
	k.teardown(id)
	return true
}

// sweepTimed promotes expired deadlines to ready. Expiry never implies the
// awaited condition holds; wakers re-check after resume.
func (k *Kernel) sweepTimed() {
	now := k.now()
	n := k.timed.len()
	for i := 0; i < n; i++ {
		id, _ := k.dequeue(&k.timed)
		t := &k.tasks[id]
		if t.wakeAt <= now {
			t.waitKind = 0
			k.enqueue(&k.ready, id)
			continue
		}
		k.enqueue(&k.timed, id)
	}
}

// requestReap asks the memory manager to free everything the dead task
// owned. Buffer exhaustion defers the request to a later tick instead of
// dropping it.
func (k *Kernel) requestReap(id TaskID) {
	m := k.acquire(TaskSched)
	if m == nil {
		if !k.reapWarned {
			k.warnf("kernel: message pool exhausted, deferring memory reclaim")
			k.reapWarned = true
		}
		return
	}
	m.Kind = kindMemFreeOwned
	m.Word = uint32(id)
	switch k.sendDirect(TaskMem, m) {
	case SendOK:
	case SendErrQueueFull:
		// Direct slot taken by an earlier reclaim; retried next tick.
		k.release(m)
	default:
		k.release(m)
		k.tasks[id].reaping = false
	}
}

// retryReaps re-issues deferred reclaim requests once per tick.
func (k *Kernel) retryReaps() {
	for i := range k.tasks {
		t := &k.tasks[i]
		if !t.reaping || t.ec != nil {
			continue
		}
		// A slot is mid-reap when reaping is set; re-send only if no
		// request is outstanding for it.
		if k.reapOutstanding(t.id) {
			continue
		}
		k.requestReap(t.id)
	}
}

func (k *Kernel) reapOutstanding(id TaskID) bool {
	for i := range k.pool {
		m := &k.pool[i]
		if m.inUse && m.Kind == kindMemFreeOwned && m.Word == uint32(id) {
			return true
		}
	}
	return false
}

// drainOne pops and dispatches exactly one pending kernel-directed
// message through the fixed handler table.
func (k *Kernel) drainOne() {
	m, ok := k.popMsg(TaskSched)
	if !ok {
		return
	}
	var fn KernelHandler
	if int(m.Kind) < len(k.handlers) {
		fn = k.handlers[m.Kind]
	}
	if fn == nil {
		k.warnf("kernel: dropping message of unknown kind %d", m.Kind)
		k.complete(m, true)
		if !m.Waiting {
			k.release(m)
		}
		return
	}
	fn(k, m)
}

// Idle reports whether no task is ready and nothing is pending for the
// kernel; hosts may sleep between ticks when idle.
func (k *Kernel) Idle() bool {
	return k.ready.len() == 0 && k.tasks[TaskSched].msgq.len() == 0
}
