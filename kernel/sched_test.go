package kernel

import (
	"testing"

	"krill/proto"
)

func TestRoundRobinFairness(t *testing.T) {
	k := testKernel()
	var counts [3]int
	for i := 0; i < 3; i++ {
		i := i
		spawn(t, k, "worker", func(tc *Context) {
			for {
				counts[i]++
				tc.Yield()
			}
		})
	}

	tick(k, 9)

	for i, n := range counts {
		if n != 3 {
			t.Fatalf("task %d ran %d times in 9 ticks, want 3", i, n)
		}
	}
	checkConservation(t, k)
}

func TestSleepWakesAfterDeadline(t *testing.T) {
	k := testKernel()
	var woke bool
	spawn(t, k, "napper", func(tc *Context) {
		tc.Sleep(5)
		woke = true
	})

	tick(k, 5)
	if woke {
		t.Fatalf("task woke before its deadline")
	}
	tick(k, 5)
	if !woke {
		t.Fatalf("task still asleep past its deadline")
	}
	checkConservation(t, k)
}

func TestKillWakesBlockedSender(t *testing.T) {
	k := testKernel()

	victim := spawn(t, k, "victim", func(tc *Context) {
		for {
			tc.Yield()
		}
	})

	var (
		res      WaitResult = WaitErr
		released bool
	)
	spawn(t, k, "requester", func(tc *Context) {
		m := tc.AcquireBlock()
		m.Kind = 42
		m.Waiting = true
		if got := tc.Send(victim, m); got != SendOK {
			return
		}
		res = tc.WaitDone(m, 0)
		tc.Release(m)
		released = !m.inUse
	})

	tick(k, 4)
	if !k.Kill(victim) {
		t.Fatalf("Kill(%d) failed", victim)
	}
	tick(k, 4)

	if res != WaitFailed {
		t.Fatalf("blocked sender woke with %v, want %v", res, WaitFailed)
	}
	if !released {
		t.Fatalf("buffer not reclaimed after the failed round-trip")
	}
	checkConservation(t, k)
}

func TestKillRefusesProtectedIDs(t *testing.T) {
	k := testKernel()
	if k.Kill(TaskSched) {
		t.Fatalf("Kill(scheduler) succeeded")
	}
	if k.Kill(7) {
		t.Fatalf("Kill of an empty slot succeeded")
	}
}

func TestShellSlotRelaunch(t *testing.T) {
	k := testKernel()
	var loginRuns, shellRuns int

	id := k.AddShellSlot("console",
		func(tc *Context) {
			loginRuns++
			k.tasks[tc.TaskID()].uid = 2
		},
		func(tc *Context) {
			shellRuns++
			k.tasks[tc.TaskID()].uid = UserNone
		})
	if id == TaskNone {
		t.Fatalf("AddShellSlot failed")
	}

	tick(k, 3)

	if loginRuns != 2 || shellRuns != 1 {
		t.Fatalf("login=%d shell=%d after 3 ticks, want 2/1", loginRuns, shellRuns)
	}
	if k.tasks[id].queue == queueFree {
		t.Fatalf("protected slot was freed")
	}
	checkConservation(t, k)
}

func TestShellSlotSurvivesKill(t *testing.T) {
	k := testKernel()
	var loginRuns int
	id := k.AddShellSlot("console",
		func(tc *Context) {
			loginRuns++
			for {
				tc.Yield()
			}
		},
		func(tc *Context) {})

	tick(k, 2)
	if !k.Kill(id) {
		t.Fatalf("Kill(shell slot) failed")
	}
	tick(k, 2)

	if loginRuns != 2 {
		t.Fatalf("login ran %d times, want 2 (once per launch)", loginRuns)
	}
	checkConservation(t, k)
}

func TestPanicIsContained(t *testing.T) {
	k := testKernel()
	addMemStub(t, k)

	bad := spawn(t, k, "bad", func(tc *Context) {
		panic("boom")
	})
	var aliveTicks int
	spawn(t, k, "bystander", func(tc *Context) {
		for {
			aliveTicks++
			tc.Yield()
		}
	})

	tick(k, 10)

	if k.tasks[bad].queue != queueFree {
		t.Fatalf("panicked task in queue %v, want free", k.tasks[bad].queue)
	}
	if aliveTicks == 0 {
		t.Fatalf("bystander starved after a peer panic")
	}
	checkConservation(t, k)
}

func TestCorruptContextIsTornDown(t *testing.T) {
	k := testKernel()
	id := spawn(t, k, "corrupt", func(tc *Context) {
		for {
			tc.Yield()
		}
	})
	k.tasks[id].ec.magic = 0

	tick(k, 2)

	if k.tasks[id].queue != queueFree {
		t.Fatalf("corrupt task in queue %v, want free", k.tasks[id].queue)
	}
	checkConservation(t, k)
}

func TestExecReplacesProgramInPlace(t *testing.T) {
	k := testKernel()
	var secondID TaskID = TaskNone
	k.RegisterProgram("second", func(tc *Context) {
		secondID = tc.TaskID()
	})

	driver := spawn(t, k, "first", func(tc *Context) {
		m := tc.AcquireBlock()
		m.Kind = uint16(proto.MsgExec)
		m.Waiting = true
		m.SetPayload([]byte("second"))
		if tc.Send(TaskSched, m) != SendOK {
			return
		}
		tc.WaitDone(m, 0)
		tc.Release(m)
	})

	tick(k, 6)

	if secondID != driver {
		t.Fatalf("replacement ran on slot %d, want %d", secondID, driver)
	}
	checkConservation(t, k)
}

// firingTimer fires its callback the moment it is armed, so every resume
// starts with the quantum already expired.
type firingTimer struct {
	started int
}

func (ft *firingTimer) Start(ticks uint32, fn func()) {
	ft.started++
	fn()
}
func (ft *firingTimer) Cancel()           {}
func (ft *firingTimer) Remaining() uint32 { return 0 }

func TestPreemptionForcesYield(t *testing.T) {
	ft := &firingTimer{}
	k := New(Config{Hostname: "testbox", Quantum: 5, Timer: ft})

	var n int
	spawn(t, k, "hog", func(tc *Context) {
		for {
			n++
			if m := tc.Acquire(); m != nil {
				tc.Release(m)
			}
		}
	})

	tick(k, 3)

	if n != 3 {
		t.Fatalf("hog made %d iterations in 3 ticks, want 3 (one per quantum)", n)
	}
	if ft.started != 3 {
		t.Fatalf("timer armed %d times, want 3", ft.started)
	}
	checkConservation(t, k)
}

func TestSlotReuseWaitsForReclaim(t *testing.T) {
	k := testKernel()
	addMemStub(t, k)

	id := spawn(t, k, "transient", func(tc *Context) {})
	tick(k, 1) // stub boots
	tick(k, 1) // transient runs and exits

	if !k.tasks[id].reaping {
		t.Fatalf("dead slot not marked reaping")
	}
	if got := k.freeUsable(); got != MaxTasks-3 {
		t.Fatalf("freeUsable=%d during reap, want %d", got, MaxTasks-3)
	}

	tick(k, 6) // stub confirms, kernel clears the mark

	if k.tasks[id].reaping {
		t.Fatalf("reclaim confirmation not processed")
	}
	if _, ok := k.createTask(spawnSpec{name: "reuse", fn: func(tc *Context) {}}); !ok {
		t.Fatalf("createTask failed after reclaim")
	}
	checkConservation(t, k)
}

func TestIdleReportsQuiescence(t *testing.T) {
	k := testKernel()
	if !k.Idle() {
		t.Fatalf("fresh kernel not idle")
	}
	spawn(t, k, "busy", func(tc *Context) {
		for {
			tc.Yield()
		}
	})
	if k.Idle() {
		t.Fatalf("kernel idle with a ready task")
	}
}

func TestConservationThroughChurn(t *testing.T) {
	k := testKernel()
	addMemStub(t, k)

	spawn(t, k, "yielder", func(tc *Context) {
		for {
			tc.Yield()
		}
	})
	spawn(t, k, "napper", func(tc *Context) {
		for {
			tc.Sleep(3)
		}
	})
	victim := spawn(t, k, "victim", func(tc *Context) {
		for {
			tc.Yield()
		}
	})
	spawn(t, k, "transient", func(tc *Context) {})

	for i := 0; i < 20; i++ {
		k.Tick()
		checkConservation(t, k)
		if i == 10 {
			k.Kill(victim)
			checkConservation(t, k)
		}
	}
}
