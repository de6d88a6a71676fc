package kernel

import (
	"runtime"
	"sync/atomic"
)

// The execution primitive: each task owns a suspendable context with a
// resume(input) -> yield contract. Exactly one context runs at any
// instant; the scheduler and a task hand control back and forth over a
// pair of unbuffered channels, so there is no true concurrency anywhere
// in the kernel.

// yieldReason classifies how a task handed control back.
type yieldReason uint8

const (
	yieldReady yieldReason = iota // voluntary yield, still runnable
	yieldWait                     // blocked indefinitely
	yieldTimed                    // blocked with an absolute deadline
	yieldDone                     // task function returned (or faulted)
)

// yield is the value a task hands to the scheduler when it suspends.
type yield struct {
	reason   yieldReason
	deadline uint64 // ticks, for yieldTimed
	waitKind uint16 // message kind that should wake this wait; 0 = none
}

// resumeMsg is the value the scheduler hands to a task when it resumes.
// kill asks the parked context to unwind and exit instead of continuing.
type resumeMsg struct {
	m    *Message
	kill bool
}

const ctxMagic uint32 = 0x4B524C31

type execContext struct {
	in  chan resumeMsg
	out chan yield

	fn TaskFunc
	tc *Context

	// magic is a cheap saved-state sanity check; the scheduler refuses to
	// resume a context whose magic no longer matches.
	magic uint32

	started bool
	ended   atomic.Bool
	preempt atomic.Bool
	fault   atomic.Bool
}

func newExecContext(k *Kernel, id TaskID, fn TaskFunc) *execContext {
	c := &execContext{
		in:    make(chan resumeMsg),
		out:   make(chan yield),
		fn:    fn,
		magic: ctxMagic,
	}
	c.tc = &Context{k: k, id: id, ec: c}
	return c
}

// healthy reports whether the saved context can be resumed safely.
func (c *execContext) healthy() bool {
	return c != nil && c.magic == ctxMagic && !c.fault.Load()
}

// resume hands control to the task until its next yield. Called only by
// the scheduler.
func (c *execContext) resume(m *Message) yield {
	if !c.started {
		c.started = true
		go c.run()
	}
	c.in <- resumeMsg{m: m}
	return <-c.out
}

// shutdown unwinds a parked, never-running-again context. The parked
// goroutine runs its deferred cleanup and exits; shutdown returns once it
// has. No-op for contexts that never started or already finished.
func (c *execContext) shutdown() {
	if !c.started || c.ended.Load() {
		return
	}
	c.in <- resumeMsg{kill: true}
	<-c.out
}

func (c *execContext) run() {
	defer func() {
		if r := recover(); r != nil {
			c.fault.Store(true)
			c.tc.k.reportPanic(c.tc.id, r, panicTrace())
		}
		c.ended.Store(true)
		c.out <- yield{reason: yieldDone}
	}()

	rm := <-c.in
	if rm.kill {
		return
	}
	c.tc.direct = rm.m
	c.fn(c.tc)
}

// park suspends the calling task until the scheduler resumes it. Runs on
// the task goroutine.
func (tc *Context) park(y yield) {
	rm := yieldTo(tc.ec, y)
	if rm.kill {
		// Unwind through the task's own defers; run's deferred handler
		// delivers the final done yield to the scheduler.
		runtime.Goexit()
	}
	if rm.m != nil {
		tc.direct = rm.m
	}
}

func yieldTo(c *execContext, y yield) resumeMsg {
	c.out <- y
	return <-c.in
}

func (k *Kernel) reportPanic(id TaskID, v any, stack []byte) {
	k.warnf("kernel: task %d %q panic: %v", id, k.tasks[id].name, v)
	if k.log != nil && len(stack) > 0 {
		k.log.WriteLineBytes(stack)
	}
}
