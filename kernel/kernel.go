// Package kernel implements the scheduling and resource-coordination core:
// the fixed task table and its four queues, the synchronous message
// protocol, and the round-robin cooperative scheduler. The memory manager
// and all other services are ordinary tasks reached only through messages.
package kernel

import (
	"fmt"

	"krill/hal"
)

const (
	// MaxTasks bounds the task table. Slot 0 is the scheduler itself.
	MaxTasks = 16

	// msgSlots bounds the static message pool. This is a global
	// concurrency limit, not a per-task one.
	msgSlots = 16

	// MaxMessageBytes is the maximum inline payload size.
	//
	// Larger transfers go through the memory manager and pass a block
	// handle in Message.Word instead.
	MaxMessageBytes = 64
)

// TaskID indexes the task table. IDs are stable for a task's lifetime and
// reused only after the slot is explicitly released.
type TaskID uint8

const (
	// TaskSched is the scheduler's own slot. It is never queued and never
	// waits; its message queue is the kernel-directed command queue.
	TaskSched TaskID = 0

	// TaskMem is the memory manager's reserved slot.
	TaskMem TaskID = 1

	// TaskLog is the logger service's reserved slot.
	TaskLog TaskID = 2

	// TaskNone is the "unset" sentinel.
	TaskNone TaskID = 0xFF
)

// User ids. The kernel only distinguishes root, unowned, and everyone else.
const (
	UserRoot uint8 = 0
	UserNone uint8 = 0xFF
)

// TaskFunc is the body of a task. It runs on the task's own execution
// context and must eventually yield back to the scheduler through one of
// the Context primitives (or by returning).
type TaskFunc func(tc *Context)

// OverlayLoader pages a user program's code into the single resident
// window. Load blocks the scheduler; it is only invoked between task
// resumptions.
type OverlayLoader interface {
	Load(id uint16) error
}

// KernelHandler handles one kernel-directed message. Handlers run on the
// scheduler between task resumptions and must not block.
type KernelHandler func(k *Kernel, m *Message)

// Config carries boot parameters and the HAL surfaces the kernel consumes.
type Config struct {
	Hostname string
	Quantum  uint32 // preemption quantum in ticks; 0 disables preemption

	Clock  hal.Clock  // nil = use the scheduler's own tick counter
	Timer  hal.Timer  // nil = purely cooperative scheduling
	Log    hal.Logger // nil = diagnostics dropped
	Serial hal.Serial // backs the default fd table; may be nil
	Loader OverlayLoader
}

// Kernel is the whole-system state: task table, queues, message pool, and
// the scheduler that owns them. All mutation happens on the scheduler's
// goroutine between task resumptions; tasks reach the kernel only through
// the Context handed to them.
type Kernel struct {
	cfg    Config
	clock  hal.Clock
	timer  hal.Timer
	log    hal.Logger
	serial hal.Serial
	loader OverlayLoader

	tasks [MaxTasks]taskDesc

	ready   taskQueue
	waiting taskQueue
	timed   taskQueue
	free    taskQueue

	// current is the task being resumed right now, or TaskSched between
	// resumptions.
	current TaskID

	pool [msgSlots]Message

	handlers [int(kindMax)]KernelHandler

	programs map[string]TaskFunc

	resident uint16 // overlay currently in the code window; 0 = none

	ticks uint64 // fallback timebase when no clock is configured

	reapWarned bool

	defaultFDs fdTable
}

// New builds a kernel with every non-scheduler slot on the free queue.
func New(cfg Config) *Kernel {
	k := &Kernel{
		cfg:      cfg,
		clock:    cfg.Clock,
		timer:    cfg.Timer,
		log:      cfg.Log,
		serial:   cfg.Serial,
		loader:   cfg.Loader,
		current:  TaskSched,
		programs: make(map[string]TaskFunc),
	}
	if cfg.Quantum == 0 {
		k.timer = nil
	}

	k.ready.id = queueReady
	k.waiting.id = queueWaiting
	k.timed.id = queueTimed
	k.free.id = queueFree

	k.defaultFDs = newSerialFDs()

	for i := range k.tasks {
		t := &k.tasks[i]
		t.id = TaskID(i)
		t.uid = UserNone
		t.fds = &k.defaultFDs
		if t.id != TaskSched {
			k.enqueue(&k.free, t.id)
		}
	}
	k.tasks[TaskSched].name = "sched"

	k.installControlHandlers()
	return k
}

// now returns the kernel timebase in ticks.
func (k *Kernel) now() uint64 {
	if k.clock != nil {
		return k.clock.Now()
	}
	return k.ticks
}

// Handle installs a kernel message handler for one kind, replacing any
// previous one. Unhandled kinds are dropped.
func (k *Kernel) Handle(kind uint16, fn KernelHandler) {
	if int(kind) >= len(k.handlers) {
		return
	}
	k.handlers[kind] = fn
}

// RegisterProgram makes a task function launchable by name through the
// run-command and exec messages.
func (k *Kernel) RegisterProgram(name string, fn TaskFunc) {
	if name == "" || fn == nil {
		return
	}
	k.programs[name] = fn
}

// Hostname reports the configured host name.
func (k *Kernel) Hostname() string { return k.cfg.Hostname }

func (k *Kernel) warnf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

// alive reports whether a task can still receive messages.
func (k *Kernel) alive(id TaskID) bool {
	if id == TaskSched {
		return true
	}
	if int(id) >= MaxTasks {
		return false
	}
	t := &k.tasks[id]
	return t.ec != nil && t.queue != queueFree
}
