package kernel

import (
	"testing"

	"krill/proto"
)

// Test scaffolding shared across this package's tests: a kernel with no
// HAL surfaces (tick counter timebase, diagnostics dropped) and a memory
// manager stub that acknowledges reclaim requests so slots become
// reusable.

func testKernel() *Kernel {
	return New(Config{Hostname: "testbox"})
}

func spawn(t *testing.T, k *Kernel, name string, fn TaskFunc) TaskID {
	t.Helper()
	id, ok := k.createTask(spawnSpec{name: name, fn: fn, uid: UserNone})
	if !ok {
		t.Fatalf("createTask %q: no free slot", name)
	}
	return id
}

func tick(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.Tick()
	}
}

// addMemStub installs a minimal memory manager that confirms every
// reclaim request, mirroring the real service's buffer reuse.
func addMemStub(t *testing.T, k *Kernel) {
	t.Helper()
	ok := k.AddService(TaskMem, "memd", func(tc *Context) {
		for {
			m, res := tc.PopWait(0)
			if res != WaitCompleted {
				continue
			}
			if m.Kind == kindMemFreeOwned {
				m.Kind = uint16(proto.MsgMemReclaimed)
				m.Sender = tc.TaskID()
				if tc.Send(TaskSched, m) != SendOK {
					tc.Release(m)
				}
				continue
			}
			tc.Complete(m)
			if !m.Waiting {
				tc.Release(m)
			}
		}
	})
	if !ok {
		t.Fatalf("memory stub: slot %d taken", TaskMem)
	}
}

// checkConservation asserts every slot is accounted for in exactly one
// queue, plus the scheduler. Valid only between ticks.
func checkConservation(t *testing.T, k *Kernel) {
	t.Helper()
	total := k.ready.len() + k.waiting.len() + k.timed.len() + k.free.len() + 1
	if total != MaxTasks {
		t.Fatalf("queue conservation broken: ready=%d waiting=%d timed=%d free=%d, total=%d want %d",
			k.ready.len(), k.waiting.len(), k.timed.len(), k.free.len(), total, MaxTasks)
	}
}
